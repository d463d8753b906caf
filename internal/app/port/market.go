package port

import (
	"context"

	dex "token_screener/internal/entity"
)

// MarketDataClient fetches raw trading pairs from a DexScreener-compatible API.
// A response without pairs is an empty slice, not an error.
type MarketDataClient interface {
	// GetTokensByChain lists the pairs the upstream surfaces for a chain.
	GetTokensByChain(ctx context.Context, chain string) ([]dex.PairData, error)

	// Search runs a free-text pair search.
	Search(ctx context.Context, query string) ([]dex.PairData, error)

	// GetTokenPairs returns every pair that trades the given token.
	GetTokenPairs(ctx context.Context, address string) ([]dex.PairData, error)

	// GetTokenPairsByAddresses returns pairs for up to 30 token addresses on one chain.
	GetTokenPairsByAddresses(ctx context.Context, chain string, addresses []string) ([]dex.PairData, error)
}
