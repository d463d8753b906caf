package pricefeed

import (
	"context"

	"go.uber.org/zap"

	"token_screener/internal/app/port"
	"token_screener/internal/infrastructure/metrics"
)

type Options struct {
	Push    PushConfig
	Polling PollingConfig
}

// Select picks the transport once. An API key enables the push stream; a failed first
// dial hands the session to polling.
func Select(ctx context.Context, opts Options, fetcher PairFetcher, logger *zap.Logger, m *metrics.Metrics) port.PriceFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Push.APIKey != "" {
		feed, err := DialPushFeed(ctx, opts.Push, logger, m)
		if err == nil {
			logger.Info("price feed using push transport", zap.String("url", opts.Push.URL))
			return feed
		}
		logger.Warn("push price feed unavailable, falling back to polling", zap.Error(err))
	}
	logger.Info("price feed using polling transport", zap.Duration("interval", opts.Polling.Interval))
	return NewPollingFeed(fetcher, opts.Polling, logger, m)
}

var (
	_ port.PriceFeed = (*PollingFeed)(nil)
	_ port.PriceFeed = (*PushFeed)(nil)
)
