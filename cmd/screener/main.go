package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"token_screener/internal/app/port"
	"token_screener/internal/app/service"
	dexclient "token_screener/internal/client"
	"token_screener/internal/infrastructure/analytics"
	"token_screener/internal/infrastructure/blobstore"
	"token_screener/internal/infrastructure/claimstore"
	"token_screener/internal/infrastructure/configloader"
	"token_screener/internal/infrastructure/kvstore"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/infrastructure/notify"
	"token_screener/internal/infrastructure/pricefeed"
	"token_screener/internal/infrastructure/restapi"
	"token_screener/internal/infrastructure/tokenloader"
	"token_screener/internal/infrastructure/wallet"
	"token_screener/internal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := configloader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLogger); err != nil {
		logger.Fatal("Token screener stopped with an error", "error", err)
	}
	logger.Info("Token screener stopped.")
}

func run(ctx context.Context, cfg *configloader.Config, zapLogger *zap.Logger) error {
	appLogger := logger.NewSlogAdapter()
	logger.Info("Token screener is starting...", "chain", cfg.DEXScreener.Chain, "storage", cfg.Storage.Backend)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	kv, closeKV, err := openKeyValueStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	market := dexclient.NewDEXScreenerClient(cfg.DEXScreener.BaseURL, zapLogger, dexclient.Options{
		Timeout:        cfg.DEXScreenerTimeout(),
		RequestsPerSec: cfg.DEXScreener.RequestsPerSecond,
		Burst:          cfg.DEXScreener.Burst,
		SearchCacheTTL: time.Duration(cfg.DEXScreener.SearchCacheTTLSeconds) * time.Second,
		Metrics:        m,
	})

	persister := service.NewPersister(kv, logger.Named("Persister"), m)
	history := service.NewSearchHistory(ctx, kv, persister, appLogger, nil)
	filters := service.NewFilterStore(ctx, kv, persister, appLogger)
	sound := service.NewSoundPreferenceStore(ctx, kv, persister, appLogger)
	watchlist := service.NewWatchlistStore(ctx, kv, persister, logger.Named("Watchlist"), nil)

	events := notify.NewBroadcaster(zapLogger)
	defer events.Close()
	alerts := service.NewAlertEngine(ctx, service.AlertEngineDeps{
		KV:        kv,
		Persister: persister,
		Notifier:  notify.Multi{notify.NewConsole(os.Stdout), events},
		Audio:     notify.NewBell(os.Stdout),
		Sound:     sound,
		Logger:    logger.Named("AlertEngine"),
		Metrics:   m,
	})

	prices := service.NewTokenPriceService(market, cfg.DEXScreener.Chain,
		time.Duration(cfg.Wallet.PriceCacheTTLSeconds)*time.Second, logger.Named("TokenPriceService"))
	tokens := service.NewTokenService(market, cfg.DEXScreener.Chain, history, prices, cfg.DetailInterval(), logger.Named("TokenService"))

	candidates, err := tokenloader.NewTokenLoader(cfg.Wallet.TokenListDir, logger.Named("TokenLoader")).
		CandidateTokens(cfg.Wallet.Network, cfg.Wallet.CandidateTokens)
	if err != nil {
		logger.Warn("Token list unreadable, using configured candidates only", "error", err)
		candidates = cfg.Wallet.CandidateTokens
	}

	var portfolio *service.PortfolioService
	reader, err := wallet.NewReader(ctx, wallet.Config{
		Network:         cfg.Wallet.Network,
		CandidateTokens: candidates,
		RPCCallTimeout:  time.Duration(cfg.Wallet.RPCCallTimeoutMillis) * time.Millisecond,
		MaxConcurrent:   cfg.Wallet.MaxConcurrentCalls,
	}, zapLogger)
	if err != nil {
		logger.Warn("Wallet reader unavailable, portfolio view disabled", "network", cfg.Wallet.Network.Name, "error", err)
	} else {
		portfolio = service.NewPortfolioService(reader, prices, logger.Named("PortfolioService"))
	}

	insights := analytics.New(analytics.Config{
		BaseURL:  cfg.Analytics.BaseURL,
		APIKey:   cfg.Analytics.APIKey,
		Chain:    cfg.DEXScreener.Chain,
		RPCURL:   cfg.Wallet.Network.RPCURL,
		Timeout:  time.Duration(cfg.Analytics.RequestTimeoutMillis) * time.Millisecond,
		CacheTTL: time.Duration(cfg.Analytics.CacheTTLSeconds) * time.Second,
	}, zapLogger, m)

	claims, closeClaims, err := openClaims(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeClaims()

	var feed port.PriceFeed
	if cfg.PriceFeed.Enabled {
		feed = pricefeed.Select(ctx, pricefeed.Options{
			Push: pricefeed.PushConfig{
				URL:            cfg.PriceFeed.WebSocketURL,
				APIKey:         cfg.PriceFeed.APIKey,
				ReconnectDelay: time.Duration(cfg.PriceFeed.ReconnectDelayMillis) * time.Millisecond,
			},
			Polling: pricefeed.PollingConfig{
				Chain:     cfg.DEXScreener.Chain,
				Interval:  time.Duration(cfg.PriceFeed.PollIntervalSeconds) * time.Second,
				BatchSize: cfg.PriceFeed.BatchSize,
			},
		}, market, zapLogger, m)
	}

	poller := service.NewFeedPoller(tokens.FetchList, service.FeedPollerConfig{
		Name:     "list",
		Interval: cfg.ListInterval(),
		Logger:   logger.Named("FeedPoller"),
		Metrics:  m,
	})
	screener := service.NewScreener(service.ScreenerDeps{
		Poller:    poller,
		Feed:      feed,
		Watchlist: watchlist,
		Alerts:    alerts,
		Filters:   filters,
		Portfolio: portfolio,
		Persister: persister,
		Events:    events,
		Logger:    logger.Named("Screener"),
		Metrics:   m,
	})
	if err := screener.Start(ctx); err != nil {
		return fmt.Errorf("start screener: %w", err)
	}

	opts := restapi.Options{CORSOrigins: cfg.Server.CORSOrigins}
	if cfg.Swagger.Enabled {
		opts.SwaggerSpec = cfg.Swagger.SpecPath
	}
	router := restapi.NewRouter(restapi.Deps{
		Screener:  screener,
		Tokens:    tokens,
		Analytics: insights,
		Portfolio: portfolio,
		Claims:    claims,
		Filters:   filters,
		History:   history,
		Sound:     sound,
		Events:    events,
		Metrics:   m,
		Logger:    zapLogger,
	}, opts)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("Token screener is running. Press Ctrl+C to stop.")
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := screener.Stop(shutdownCtx); err != nil {
		logger.Error("Screener shutdown failed", "error", err)
	}
	return runErr
}

func openKeyValueStore(ctx context.Context, cfg *configloader.Config) (port.KeyValueStore, func(), error) {
	switch cfg.Storage.Backend {
	case configloader.StorageRedis:
		r := cfg.Storage.Redis
		store, err := kvstore.NewRedisStore(ctx, r.Addr, r.Password, r.DB, r.Prefix)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis key/value store", "addr", r.Addr)
		return store, func() { _ = store.Close() }, nil
	case configloader.StorageMemory:
		logger.Warn("Using in-memory key/value store, preferences will not survive a restart")
		return kvstore.NewMemoryStore(), func() {}, nil
	default:
		store, err := kvstore.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file key/value store", "dir", cfg.Storage.Dir)
		return store, func() {}, nil
	}
}

func openClaims(ctx context.Context, cfg *configloader.Config, log port.Logger) (*service.ClaimService, func(), error) {
	if !cfg.Claims.Enabled {
		return nil, func() {}, nil
	}
	blobs, err := blobstore.NewFileStore(cfg.Claims.BlobDir, cfg.Claims.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Claims.DatabaseURL == "" {
		return service.NewClaimService(claimstore.NewMemoryStore(nil), blobs, cfg.Claims.MaxImageBytes, log), func() {}, nil
	}
	pool, err := claimstore.NewPool(ctx, cfg.Claims.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate claim store: %w", err)
	}
	logger.Info("Claim store ready", "backend", "postgres")
	return service.NewClaimService(claimstore.NewPostgresStore(pool), blobs, cfg.Claims.MaxImageBytes, log), pool.Close, nil
}
