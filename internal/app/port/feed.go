package port

import "token_screener/internal/domain/entity"

// PriceFeed streams price batches for a mutable set of token addresses.
type PriceFeed interface {
	// SetAddresses replaces the subscribed address set.
	SetAddresses(addresses []string)

	// Updates is closed when the feed is closed.
	Updates() <-chan entity.PriceBatch

	// Transport names the active transport ("push" or "polling").
	Transport() string

	// Close is safe to call more than once.
	Close() error
}
