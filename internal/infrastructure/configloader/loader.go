package configloader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"token_screener/internal/domain/entity"
)

// Environment variables overlaid on top of the YAML file. They are the only place
// secrets are read from.
const (
	EnvAnalyticsAPIKey = "SCREENER_ANALYTICS_API_KEY"
	EnvDatabaseURL     = "SCREENER_DATABASE_URL"
	EnvRedisAddr       = "SCREENER_REDIS_ADDR"
	EnvRPCURL          = "SCREENER_RPC_URL"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string   `yaml:"port"`
	ReadTimeout  int      `yaml:"readTimeout"`  // seconds
	WriteTimeout int      `yaml:"writeTimeout"` // seconds
	IdleTimeout  int      `yaml:"idleTimeout"`  // seconds
	CORSOrigins  []string `yaml:"corsOrigins"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// DEXScreenerConfig holds the configuration for the market data client.
type DEXScreenerConfig struct {
	BaseURL               string  `yaml:"baseURL"`
	Chain                 string  `yaml:"chain"`
	RequestTimeoutMillis  int64   `yaml:"requestTimeoutMillis"`
	RequestsPerSecond     float64 `yaml:"requestsPerSecond"`
	Burst                 int     `yaml:"burst"`
	SearchCacheTTLSeconds int     `yaml:"searchCacheTTLSeconds"`
}

// PollerConfig holds the fetch cadences.
type PollerConfig struct {
	ListIntervalSeconds   int `yaml:"listIntervalSeconds"`
	DetailIntervalSeconds int `yaml:"detailIntervalSeconds"`
}

// PriceFeedConfig holds the realtime price feed configuration.
type PriceFeedConfig struct {
	Enabled              bool   `yaml:"enabled"`
	WebSocketURL         string `yaml:"webSocketURL"`
	APIKey               string `yaml:"-"`
	PollIntervalSeconds  int    `yaml:"pollIntervalSeconds"`
	ReconnectDelayMillis int64  `yaml:"reconnectDelayMillis"`
	BatchSize            int    `yaml:"batchSize"`
}

// AnalyticsConfig holds the optional analytics API configuration.
type AnalyticsConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"-"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLSeconds      int    `yaml:"cacheTTLSeconds"`
}

// RedisConfig holds the Redis connection used by the redis storage backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StorageConfig selects the durable key/value backend.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
}

// WalletConfig describes the network whose wallets the portfolio view reads.
type WalletConfig struct {
	Network              entity.NetworkDefinition `yaml:"network"`
	CandidateTokens      []string                 `yaml:"candidateTokens"`
	TokenListDir         string                   `yaml:"tokenListDir"`
	RPCCallTimeoutMillis int64                    `yaml:"rpcCallTimeoutMillis"`
	MaxConcurrentCalls   int                      `yaml:"maxConcurrentCalls"`
	PriceCacheTTLSeconds int                      `yaml:"priceCacheTTLSeconds"`
}

// ClaimsConfig holds the token-claim workflow configuration.
type ClaimsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DatabaseURL   string `yaml:"-"`
	BlobDir       string `yaml:"blobDir"`
	PublicBaseURL string `yaml:"publicBaseURL"`
	MaxImageBytes int64  `yaml:"maxImageBytes"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// SwaggerConfig holds configuration for Swagger UI.
type SwaggerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"specPath"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	Poller      PollerConfig      `yaml:"poller"`
	PriceFeed   PriceFeedConfig   `yaml:"priceFeed"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Storage     StorageConfig     `yaml:"storage"`
	Wallet      WalletConfig      `yaml:"wallet"`
	Claims      ClaimsConfig      `yaml:"claims"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Swagger     SwaggerConfig     `yaml:"swagger"`
}

// Load reads the YAML configuration at path, applies defaults and overlays secrets
// from the environment. A .env file in the working directory is loaded first when
// present. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	loadDotEnv(".env")

	var cfg Config
	if path != "" {
		logrus.Infof("Loading configuration from path: %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("Failed to read config file %s: %v", path, err)
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	} else {
		logrus.Info("No configuration file given, using defaults")
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("Failed to load %s: %v", path, err)
		}
		return
	}
	logrus.Infof("Loaded environment overrides from %s", path)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", cfg.DEXScreener.BaseURL)
	}
	if cfg.DEXScreener.Chain == "" {
		cfg.DEXScreener.Chain = entity.Solana.Identifier
		logrus.Infof("DEXScreener.Chain not set, defaulting to %s", cfg.DEXScreener.Chain)
	}
	if cfg.DEXScreener.RequestTimeoutMillis == 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 10000
		logrus.Infof("DEXScreener.RequestTimeoutMillis not set, defaulting to %d ms", cfg.DEXScreener.RequestTimeoutMillis)
	}
	if cfg.DEXScreener.RequestsPerSecond == 0 {
		cfg.DEXScreener.RequestsPerSecond = 5
	}
	if cfg.DEXScreener.Burst == 0 {
		cfg.DEXScreener.Burst = 5
	}
	if cfg.DEXScreener.SearchCacheTTLSeconds == 0 {
		cfg.DEXScreener.SearchCacheTTLSeconds = 30
	}

	if cfg.Poller.ListIntervalSeconds == 0 {
		cfg.Poller.ListIntervalSeconds = 30
		logrus.Infof("Poller.ListIntervalSeconds not set, defaulting to %d", cfg.Poller.ListIntervalSeconds)
	}
	if cfg.Poller.DetailIntervalSeconds == 0 {
		cfg.Poller.DetailIntervalSeconds = 15
	}

	if cfg.PriceFeed.WebSocketURL == "" {
		cfg.PriceFeed.WebSocketURL = "wss://public-api.birdeye.so/socket/solana"
	}
	if cfg.PriceFeed.PollIntervalSeconds == 0 {
		cfg.PriceFeed.PollIntervalSeconds = 5
	}
	if cfg.PriceFeed.ReconnectDelayMillis == 0 {
		cfg.PriceFeed.ReconnectDelayMillis = 3000
	}
	if cfg.PriceFeed.BatchSize == 0 {
		cfg.PriceFeed.BatchSize = 30
	}

	if cfg.Analytics.BaseURL == "" {
		cfg.Analytics.BaseURL = "https://public-api.birdeye.so"
	}
	if cfg.Analytics.RequestTimeoutMillis == 0 {
		cfg.Analytics.RequestTimeoutMillis = 10000
	}
	if cfg.Analytics.CacheTTLSeconds == 0 {
		cfg.Analytics.CacheTTLSeconds = 60
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
		logrus.Infof("Storage.Backend not set, defaulting to %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data/store"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "screener:"
	}

	def := entity.Solana
	n := &cfg.Wallet.Network
	if n.Kind == "" {
		n.Kind = def.Kind
	}
	if n.Kind == entity.NetworkSolana {
		if n.Identifier == "" {
			n.Identifier = def.Identifier
		}
		if n.Name == "" {
			n.Name = def.Name
		}
		if n.NativeSymbol == "" {
			n.NativeSymbol = def.NativeSymbol
		}
		if n.Decimals == 0 {
			n.Decimals = def.Decimals
		}
		if n.RPCURL == "" {
			n.RPCURL = def.RPCURL
		}
		if n.WrappedNativeAddress == "" {
			n.WrappedNativeAddress = def.WrappedNativeAddress
		}
	}
	if n.Kind == entity.NetworkEVM && n.Decimals == 0 {
		n.Decimals = 18
	}
	if cfg.Wallet.RPCCallTimeoutMillis == 0 {
		cfg.Wallet.RPCCallTimeoutMillis = 10000
	}
	if cfg.Wallet.MaxConcurrentCalls == 0 {
		cfg.Wallet.MaxConcurrentCalls = 5
	}
	if cfg.Wallet.PriceCacheTTLSeconds == 0 {
		cfg.Wallet.PriceCacheTTLSeconds = 60
	}

	if cfg.Claims.BlobDir == "" {
		cfg.Claims.BlobDir = "data/blobs"
	}
	if cfg.Claims.PublicBaseURL == "" {
		cfg.Claims.PublicBaseURL = "/api/v1/claims/blobs"
	}
	if cfg.Claims.MaxImageBytes == 0 {
		cfg.Claims.MaxImageBytes = 2 << 20
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "token_screener"
	}
	if cfg.Swagger.SpecPath == "" {
		cfg.Swagger.SpecPath = "docs/swagger.yaml"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAnalyticsAPIKey)); v != "" {
		cfg.Analytics.APIKey = v
		cfg.PriceFeed.APIKey = v
		logrus.Infof("%s set, analytics API and push price feed enabled", EnvAnalyticsAPIKey)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Claims.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		cfg.Wallet.Network.RPCURL = v
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Poller.ListIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("poller.listIntervalSeconds must be at least 1"))
	}
	if c.Poller.DetailIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("poller.detailIntervalSeconds must be at least 1"))
	}
	if c.PriceFeed.PollIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("priceFeed.pollIntervalSeconds must be at least 1"))
	}
	if c.PriceFeed.BatchSize < 1 || c.PriceFeed.BatchSize > 30 {
		errs = append(errs, fmt.Errorf("priceFeed.batchSize must be between 1 and 30"))
	}
	if c.DEXScreener.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("dexScreener.requestsPerSecond must not be negative"))
	}
	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("storage.redis.addr (or %s) is required for the redis backend", EnvRedisAddr))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of file, redis, memory", c.Storage.Backend))
	}
	switch c.Wallet.Network.Kind {
	case entity.NetworkSolana:
	case entity.NetworkEVM:
		if c.Wallet.Network.RPCURL == "" {
			errs = append(errs, fmt.Errorf("wallet.network.rpcUrl (or %s) is required for evm networks", EnvRPCURL))
		}
	default:
		errs = append(errs, fmt.Errorf("wallet.network.kind %q is not one of solana, evm", c.Wallet.Network.Kind))
	}
	if c.Claims.Enabled && c.Claims.DatabaseURL == "" {
		logrus.Warnf("Claims enabled without %s, using the in-memory claim store", EnvDatabaseURL)
	}
	return errors.Join(errs...)
}

// ListInterval is the main list poll cadence.
func (c *Config) ListInterval() time.Duration {
	return time.Duration(c.Poller.ListIntervalSeconds) * time.Second
}

// DetailInterval is the detail view poll cadence.
func (c *Config) DetailInterval() time.Duration {
	return time.Duration(c.Poller.DetailIntervalSeconds) * time.Second
}

// DEXScreenerTimeout is the per-request market data timeout.
func (c *Config) DEXScreenerTimeout() time.Duration {
	return time.Duration(c.DEXScreener.RequestTimeoutMillis) * time.Millisecond
}
