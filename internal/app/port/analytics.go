package port

import (
	"context"

	"token_screener/internal/domain/entity"
)

// AnalyticsProvider serves per-token analytics. Capabilities missing from the active
// source return entity.ErrFeatureUnavailable.
type AnalyticsProvider interface {
	Candles(ctx context.Context, address, interval string, limit int) ([]entity.Candle, error)
	Holders(ctx context.Context, address string) (entity.HolderStats, error)
	Security(ctx context.Context, address string) (entity.SecurityFlags, error)
	Source() string
}
