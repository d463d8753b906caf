package port

import (
	"context"

	"token_screener/internal/domain/entity"
)

// WalletReader reads native and token balances of a wallet on one network.
type WalletReader interface {
	ReadHoldings(ctx context.Context, wallet string) (entity.WalletHoldings, error)
	Network() entity.NetworkDefinition
}
