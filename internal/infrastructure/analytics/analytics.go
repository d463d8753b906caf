// Package analytics serves candles, holder concentration and mint security flags, from a
// keyed API when one is configured and from Solana RPC otherwise.
package analytics

import (
	"time"

	"go.uber.org/zap"

	"token_screener/internal/app/port"
	"token_screener/internal/infrastructure/metrics"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Chain    string
	RPCURL   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// New picks the source once and wraps it in a cache.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) port.AnalyticsProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner port.AnalyticsProvider
	if cfg.APIKey != "" {
		inner = NewAPIClient(cfg.BaseURL, cfg.APIKey, cfg.Chain, cfg.Timeout, logger, m)
	} else {
		inner = NewRPCSource(cfg.RPCURL, logger)
	}
	logger.Info("analytics source selected", zap.String("source", inner.Source()))
	return NewCached(inner, cfg.CacheTTL)
}

var (
	_ port.AnalyticsProvider = (*APIClient)(nil)
	_ port.AnalyticsProvider = (*RPCSource)(nil)
	_ port.AnalyticsProvider = (*Cached)(nil)
)
