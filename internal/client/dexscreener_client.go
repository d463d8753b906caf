package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"token_screener/internal/entity"
	"token_screener/internal/infrastructure/metrics"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxAddressesPerRequest is the upstream limit of the multi-token endpoint.
const MaxAddressesPerRequest = 30

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// DEXScreenerClient talks to a DexScreener-compatible market data API.
type DEXScreenerClient struct {
	client      *fasthttp.Client
	baseURL     string
	timeout     time.Duration
	logger      *zap.Logger
	limiter     *rate.Limiter
	searchCache *gocache.Cache
	metrics     *metrics.Metrics
}

// Options tunes a DEXScreenerClient. Zero values pick defaults.
type Options struct {
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	SearchCacheTTL time.Duration
	Metrics        *metrics.Metrics
}

// NewDEXScreenerClient creates a new client for baseURL.
func NewDEXScreenerClient(baseURL string, logger *zap.Logger, opts Options) *DEXScreenerClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.SearchCacheTTL <= 0 {
		opts.SearchCacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DEXScreenerClient{
		client:      &fasthttp.Client{Name: "token_screener"},
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     opts.Timeout,
		logger:      logger.Named("DEXScreenerClient"),
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		searchCache: gocache.New(opts.SearchCacheTTL, 2*opts.SearchCacheTTL),
		metrics:     opts.Metrics,
	}
}

// GetTokensByChain lists the pairs the upstream surfaces for chain.
func (c *DEXScreenerClient) GetTokensByChain(ctx context.Context, chain string) ([]entity.PairData, error) {
	if strings.TrimSpace(chain) == "" {
		return nil, fmt.Errorf("chain cannot be empty")
	}
	return c.getPairs(ctx, "tokens_by_chain", fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(chain)))
}

// Search runs a free-text search. Results are cached briefly per normalized query.
func (c *DEXScreenerClient) Search(ctx context.Context, query string) ([]entity.PairData, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []entity.PairData{}, nil
	}
	key := strings.ToLower(q)
	if cached, ok := c.searchCache.Get(key); ok {
		c.logger.Debug("Search cache hit", zap.String("query", q))
		return cached.([]entity.PairData), nil
	}

	pairs, err := c.getPairs(ctx, "search", fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(q)))
	if err != nil {
		return nil, err
	}
	c.searchCache.SetDefault(key, pairs)
	return pairs, nil
}

// GetTokenPairs returns every pair trading the token at address.
func (c *DEXScreenerClient) GetTokenPairs(ctx context.Context, address string) ([]entity.PairData, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	return c.getPairs(ctx, "token_pairs", fmt.Sprintf("%s/tokens/%s", c.baseURL, url.PathEscape(address)))
}

// GetTokenPairsByAddresses returns pairs for up to MaxAddressesPerRequest tokens on one chain.
func (c *DEXScreenerClient) GetTokenPairsByAddresses(ctx context.Context, chain string, tokenAddresses []string) ([]entity.PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > MaxAddressesPerRequest {
		c.logger.Warn("Number of token addresses exceeds the per-request limit",
			zap.Int("requestedCount", len(tokenAddresses)),
			zap.Int("maxAllowed", MaxAddressesPerRequest))
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), MaxAddressesPerRequest)
	}
	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, url.PathEscape(chain), strings.Join(tokenAddresses, ","))
	return c.getPairs(ctx, "tokens_by_addresses", requestURL)
}

func (c *DEXScreenerClient) getPairs(ctx context.Context, endpoint, requestURL string) ([]entity.PairData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	c.logger.Debug("Requesting pairs from DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	start := time.Now()
	if err := Do(ctx, c.client, c.timeout, req, resp); err != nil {
		c.metrics.ObserveUpstream(endpoint, "error", time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("Failed to execute request to DEX Screener", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}
	c.metrics.ObserveUpstream(endpoint, strconv.Itoa(resp.StatusCode()), time.Since(start))

	rawBody := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.logger.Error("DEX Screener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", Truncate(rawBody, 512)),
		)
		return nil, &StatusError{URL: requestURL, StatusCode: resp.StatusCode(), Body: string(Truncate(rawBody, 512))}
	}

	pairs, err := decodePairs(rawBody)
	if err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", Truncate(rawBody, 512)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal DEX Screener response from %s: %w", requestURL, err)
	}

	c.logger.Debug("Successfully unmarshalled DEX Screener response",
		zap.String("endpoint", endpoint),
		zap.Int("pairCount", len(pairs)))
	return pairs, nil
}

// decodePairs accepts both {"pairs":[...]} and a bare array. A wrapped object without
// pairs means no results.
func decodePairs(body []byte) ([]entity.PairData, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []entity.PairData{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var direct []entity.PairData
		if err := json.Unmarshal(body, &direct); err != nil {
			return nil, err
		}
		if direct == nil {
			direct = []entity.PairData{}
		}
		return direct, nil
	}

	var wrapper entity.DEXTokenPair
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	switch {
	case wrapper.Pairs != nil:
		return wrapper.Pairs, nil
	case wrapper.Pair != nil:
		return []entity.PairData{*wrapper.Pair}, nil
	default:
		return []entity.PairData{}, nil
	}
}

// IsStatus reports whether err is an upstream StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
