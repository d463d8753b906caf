package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
	"token_screener/internal/pkg/logger"
)

func newPortfolioService(market *fakeMarket, wallet *fakeWallet) *PortfolioService {
	prices := NewTokenPriceService(market, "solana", time.Minute, logger.Nop())
	return NewPortfolioService(wallet, prices, logger.Nop())
}

func TestPortfolioService_ValuesHoldings(t *testing.T) {
	market := newFakeMarket()
	market.add(
		pair(entity.Solana.WrappedNativeAddress, "SOL", 150, 1e6),
		pair("MintA", "AAA", 2, 1000),
	)
	wallet := &fakeWallet{
		network: entity.Solana,
		holdings: entity.WalletHoldings{
			NativeBalance: big.NewInt(2_000_000_000),
			Tokens: []entity.Holding{
				{Mint: "MintB", Decimals: 6, Amount: big.NewInt(1_000_000)},
				{Mint: "MintA", Decimals: 6, Amount: big.NewInt(5_000_000)},
			},
		},
	}
	svc := newPortfolioService(market, wallet)
	owner := solana.NewWallet().PublicKey().String()

	p, err := svc.Portfolio(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, owner, p.Wallet)
	assert.Equal(t, "SOL", p.NativeSymbol)
	assert.InDelta(t, 300.0, p.NativeValueUSD, 1e-9)
	require.Len(t, p.Holdings, 2)
	assert.Equal(t, "MintA", p.Holdings[0].Mint, "holdings are ordered by value")
	assert.Equal(t, "AAA", p.Holdings[0].Symbol)
	assert.InDelta(t, 10.0, p.Holdings[0].ValueUSD, 1e-9)
	assert.InDelta(t, 310.0, p.TotalValueUSD, 1e-9)

	require.Len(t, p.Errors, 1)
	assert.Equal(t, "MintB", p.Errors[0].TokenAddress)

	held := svc.HoldingAddresses()
	assert.Contains(t, held, "MintA")
	assert.Contains(t, held, "MintB")
}

func TestPortfolioService_RejectsBadAddress(t *testing.T) {
	svc := newPortfolioService(newFakeMarket(), &fakeWallet{network: entity.Solana})
	_, err := svc.Portfolio(context.Background(), "not-a-wallet")
	assert.ErrorIs(t, err, entity.ErrInvalidAddress)
}

func TestPortfolioService_ReaderFailure(t *testing.T) {
	svc := newPortfolioService(newFakeMarket(), &fakeWallet{network: entity.Solana, err: errors.New("rpc down")})
	_, err := svc.Portfolio(context.Background(), solana.NewWallet().PublicKey().String())
	require.Error(t, err)
	assert.Empty(t, svc.HoldingAddresses())
}
