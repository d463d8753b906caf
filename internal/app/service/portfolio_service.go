package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/utils"
)

// PortfolioService values a wallet's holdings at canonical-pair prices.
type PortfolioService struct {
	reader port.WalletReader
	prices *TokenPriceService
	logger port.Logger

	mu       sync.RWMutex
	holdings map[string]struct{}
}

func NewPortfolioService(reader port.WalletReader, prices *TokenPriceService, logger port.Logger) *PortfolioService {
	return &PortfolioService{
		reader:   reader,
		prices:   prices,
		logger:   logger,
		holdings: map[string]struct{}{},
	}
}

// Portfolio reads and values walletAddress. Missing prices are reported in Errors and
// count as zero value.
func (s *PortfolioService) Portfolio(ctx context.Context, walletAddress string) (entity.Portfolio, error) {
	netDef := s.reader.Network()
	if err := utils.ValidateAddress(netDef.Kind, walletAddress); err != nil {
		return entity.Portfolio{}, err
	}

	s.logger.Debug("Fetching portfolio for wallet", "wallet_address", walletAddress, "network", netDef.Identifier)
	raw, err := s.reader.ReadHoldings(ctx, walletAddress)
	if err != nil {
		s.logger.Error("Failed to read wallet holdings", "wallet", walletAddress, "network", netDef.Name, "error", err)
		return entity.Portfolio{}, fmt.Errorf("read holdings for %s: %w", walletAddress, err)
	}

	addresses := make([]string, 0, len(raw.Tokens)+1)
	for _, h := range raw.Tokens {
		addresses = append(addresses, h.Mint)
	}
	if netDef.WrappedNativeAddress != "" {
		addresses = append(addresses, netDef.WrappedNativeAddress)
	}
	quotes, quoteErr := s.prices.Quotes(ctx, addresses)
	if quoteErr != nil {
		s.logger.Warn("Some token prices could not be fetched", "wallet", walletAddress, "error", quoteErr)
	}

	nativeBalance, _ := utils.FormatBigInt(raw.NativeBalance, netDef.Decimals)
	p := entity.Portfolio{
		Wallet:        walletAddress,
		Network:       netDef.Identifier,
		NativeSymbol:  netDef.NativeSymbol,
		NativeBalance: nativeBalance,
		Holdings:      make([]entity.Holding, 0, len(raw.Tokens)),
	}

	if q, ok := quotes[netDef.WrappedNativeAddress]; ok && netDef.WrappedNativeAddress != "" {
		p.NativePriceUSD = q.PriceUSD
		p.NativeValueUSD, _ = utils.CalculateValueUSD(raw.NativeBalance, netDef.Decimals, q.PriceUSD)
	} else if raw.NativeBalance != nil && raw.NativeBalance.Sign() > 0 {
		p.Errors = append(p.Errors, entity.PortfolioError{IsNative: true, TokenSymbol: netDef.NativeSymbol, Message: "price unavailable"})
	}
	p.TotalValueUSD = p.NativeValueUSD

	for _, h := range raw.Tokens {
		q, ok := quotes[h.Mint]
		if !ok {
			p.Errors = append(p.Errors, entity.PortfolioError{TokenAddress: h.Mint, TokenSymbol: h.Symbol, Message: "price unavailable"})
		} else {
			h.PriceUSD = q.PriceUSD
			if h.Symbol == "" {
				h.Symbol = q.Symbol
			}
			if h.Name == "" {
				h.Name = q.Name
			}
			value, err := utils.CalculateValueUSD(h.Amount, h.Decimals, q.PriceUSD)
			if err != nil {
				s.logger.Error("Failed to calculate valueUSD", "wallet", walletAddress, "token", h.Mint, "price", q.PriceUSD, "error", err)
			} else {
				h.ValueUSD = value
			}
		}
		p.Holdings = append(p.Holdings, h)
		p.TotalValueUSD += h.ValueUSD
	}
	sort.SliceStable(p.Holdings, func(i, j int) bool { return p.Holdings[i].ValueUSD > p.Holdings[j].ValueUSD })

	s.rememberHoldings(p.Mints())
	s.logger.Info("Successfully fetched portfolio for wallet", "address", walletAddress, "holdings", len(p.Holdings), "total_usd", p.TotalValueUSD)
	return p, nil
}

func (s *PortfolioService) rememberHoldings(mints []string) {
	set := make(map[string]struct{}, len(mints))
	for _, m := range mints {
		set[m] = struct{}{}
	}
	s.mu.Lock()
	s.holdings = set
	s.mu.Unlock()
}

// HoldingAddresses returns the mints of the most recently loaded portfolio. It feeds the
// "portfolio" view.
func (s *PortfolioService) HoldingAddresses() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.holdings))
	for k := range s.holdings {
		out[k] = struct{}{}
	}
	return out
}
