package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token_screener/internal/domain/entity"
)

const (
	SourceRPC = "solana-rpc"

	mintAccountSize = 82
)

// SolanaRPC is the subset of *rpc.Client the fallback source needs.
type SolanaRPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenLargestAccounts(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error)
	GetTokenSupply(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

// RPCSource derives what it can from chain state. It has no candle history.
type RPCSource struct {
	rpc    SolanaRPC
	logger *zap.Logger
}

func NewRPCSource(rpcURL string, logger *zap.Logger) *RPCSource {
	return newRPCSource(rpc.New(rpcURL), logger)
}

func newRPCSource(c SolanaRPC, logger *zap.Logger) *RPCSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCSource{rpc: c, logger: logger.Named("AnalyticsRPC")}
}

func (s *RPCSource) Source() string { return SourceRPC }

func (s *RPCSource) Candles(context.Context, string, string, int) ([]entity.Candle, error) {
	return nil, fmt.Errorf("%w: price history needs an analytics API key", entity.ErrFeatureUnavailable)
}

func (s *RPCSource) Security(ctx context.Context, address string) (entity.SecurityFlags, error) {
	mintKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return entity.SecurityFlags{}, fmt.Errorf("%w: %v", entity.ErrInvalidAddress, err)
	}

	info, err := s.rpc.GetAccountInfo(ctx, mintKey)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return entity.SecurityFlags{}, entity.ErrTokenNotFound
		}
		return entity.SecurityFlags{}, fmt.Errorf("get mint account: %w", err)
	}
	if info == nil || info.Value == nil || info.Value.Data == nil {
		return entity.SecurityFlags{}, entity.ErrTokenNotFound
	}

	data := info.Value.Data.GetBinary()
	if len(data) < mintAccountSize {
		return entity.SecurityFlags{}, fmt.Errorf("%w: account %s is not a token mint", entity.ErrInvalidInput, address)
	}
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data[:mintAccountSize])); err != nil {
		return entity.SecurityFlags{}, fmt.Errorf("decode mint account: %w", err)
	}

	flags := entity.SecurityFlags{Source: SourceRPC}
	if mint.MintAuthority != nil && !mint.MintAuthority.IsZero() {
		flags.Mintable = true
		flags.MintAuthority = mint.MintAuthority.String()
	}
	if mint.FreezeAuthority != nil && !mint.FreezeAuthority.IsZero() {
		flags.Freezable = true
		flags.FreezeAuthority = mint.FreezeAuthority.String()
	}
	return flags, nil
}

// Holders ranks the largest token accounts. Accounts are not owners, so coverage is partial
// and the holder count is unknown.
func (s *RPCSource) Holders(ctx context.Context, address string) (entity.HolderStats, error) {
	mintKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return entity.HolderStats{}, fmt.Errorf("%w: %v", entity.ErrInvalidAddress, err)
	}

	var (
		largest *rpc.GetTokenLargestAccountsResult
		supply  *rpc.GetTokenSupplyResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		largest, err = s.rpc.GetTokenLargestAccounts(gctx, mintKey, rpc.CommitmentConfirmed)
		if err != nil {
			return fmt.Errorf("get largest accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		supply, err = s.rpc.GetTokenSupply(gctx, mintKey, rpc.CommitmentConfirmed)
		if err != nil {
			return fmt.Errorf("get token supply: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return entity.HolderStats{}, err
	}

	var total float64
	if supply != nil && supply.Value != nil {
		total, _ = strconv.ParseFloat(supply.Value.Amount, 64)
	}

	stats := entity.HolderStats{Source: SourceRPC, PartialCoverage: true, TopHolders: []entity.TopHolder{}}
	if largest == nil {
		return stats, nil
	}
	for _, acc := range largest.Value {
		if acc == nil {
			continue
		}
		raw, err := strconv.ParseFloat(acc.Amount, 64)
		if err != nil {
			s.logger.Debug("skipping account with unparsable amount", zap.String("account", acc.Address.String()))
			continue
		}
		h := entity.TopHolder{Address: acc.Address.String()}
		if acc.UiAmount != nil {
			h.Amount = *acc.UiAmount
		}
		if total > 0 {
			h.Percent = raw / total * 100
		}
		stats.TopHolders = append(stats.TopHolders, h)
	}
	sort.SliceStable(stats.TopHolders, func(i, j int) bool {
		return stats.TopHolders[i].Amount > stats.TopHolders[j].Amount
	})
	if len(stats.TopHolders) > topHoldersToShow {
		stats.TopHolders = stats.TopHolders[:topHoldersToShow]
	}
	for _, h := range stats.TopHolders {
		stats.Top10Percent += h.Percent
	}
	return stats, nil
}
