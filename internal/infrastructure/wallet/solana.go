package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SolanaRPC is the subset of *rpc.Client the Solana reader needs.
type SolanaRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string  `json:"amount"`
				Decimals uint8   `json:"decimals"`
				UIAmount float64 `json:"uiAmount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// SolanaReader reads SOL and SPL token balances.
type SolanaReader struct {
	rpc            SolanaRPC
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
	logger         *zap.Logger
}

func NewSolanaReader(c SolanaRPC, netDef entity.NetworkDefinition, rpcCallTimeout time.Duration, logger *zap.Logger) *SolanaReader {
	if rpcCallTimeout <= 0 {
		rpcCallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolanaReader{rpc: c, netDef: netDef, rpcCallTimeout: rpcCallTimeout, logger: logger.Named("SolanaReader")}
}

func (r *SolanaReader) Network() entity.NetworkDefinition { return r.netDef }

// ReadHoldings returns the lamport balance and every non-empty SPL token account.
// Accounts for the same mint are summed.
func (r *SolanaReader) ReadHoldings(ctx context.Context, wallet string) (entity.WalletHoldings, error) {
	if err := utils.ValidateSolanaAddress(wallet); err != nil {
		return entity.WalletHoldings{}, err
	}
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return entity.WalletHoldings{}, fmt.Errorf("%w: %v", entity.ErrInvalidAddress, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.rpcCallTimeout)
	defer cancel()

	bal, err := r.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return entity.WalletHoldings{}, fmt.Errorf("get balance: %w", err)
	}
	holdings := entity.WalletHoldings{Wallet: wallet, NativeBalance: new(big.Int).SetUint64(bal.Value)}

	accounts, err := r.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return entity.WalletHoldings{}, fmt.Errorf("get token accounts: %w", err)
	}

	index := make(map[string]int)
	for _, acc := range accounts.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			r.logger.Debug("skipping undecodable token account", zap.String("account", acc.Pubkey.String()), zap.Error(err))
			continue
		}
		info := parsed.Parsed.Info
		amount, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok || amount.Sign() == 0 || info.Mint == "" {
			continue
		}

		if i, seen := index[info.Mint]; seen {
			h := &holdings.Tokens[i]
			h.Amount = new(big.Int).Add(h.Amount, amount)
			h.FormattedBalance, _ = utils.FormatBigInt(h.Amount, h.Decimals)
			h.UIAmount, _ = utils.ToFloat(h.Amount, h.Decimals).Float64()
			continue
		}
		formatted, _ := utils.FormatBigInt(amount, info.TokenAmount.Decimals)
		ui, _ := utils.ToFloat(amount, info.TokenAmount.Decimals).Float64()
		index[info.Mint] = len(holdings.Tokens)
		holdings.Tokens = append(holdings.Tokens, entity.Holding{
			Mint:             info.Mint,
			Decimals:         info.TokenAmount.Decimals,
			Amount:           amount,
			FormattedBalance: formatted,
			UIAmount:         ui,
		})
	}
	return holdings, nil
}
