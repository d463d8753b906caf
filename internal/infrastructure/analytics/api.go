package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token_screener/internal/client"
	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	SourceAPI = "analytics-api"

	apiKeyHeader     = "X-API-KEY"
	chainHeader      = "x-chain"
	defaultLimit     = 100
	maxCandleLimit   = 1000
	topHoldersToShow = 10
)

// intervals maps accepted interval names to the provider's bar type and bar width.
var intervals = map[string]struct {
	kind  string
	width time.Duration
}{
	"1m":  {"1m", time.Minute},
	"5m":  {"5m", 5 * time.Minute},
	"15m": {"15m", 15 * time.Minute},
	"1h":  {"1H", time.Hour},
	"4h":  {"4H", 4 * time.Hour},
	"1d":  {"1D", 24 * time.Hour},
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
}

type ohlcvData struct {
	Items []struct {
		Open     float64 `json:"o"`
		High     float64 `json:"h"`
		Low      float64 `json:"l"`
		Close    float64 `json:"c"`
		Volume   float64 `json:"v"`
		UnixTime int64   `json:"unixTime"`
	} `json:"items"`
}

type holderData struct {
	Items []struct {
		Owner    string  `json:"owner"`
		UIAmount float64 `json:"ui_amount"`
	} `json:"items"`
}

type overviewData struct {
	Holder int     `json:"holder"`
	Supply float64 `json:"supply"`
}

type securityData struct {
	MintAuthority   *string `json:"mintAuthority"`
	FreezeAuthority *string `json:"freezeAuthority"`
	Freezeable      *bool   `json:"freezeable"`
}

// APIClient reads analytics from a keyed HTTP API.
type APIClient struct {
	hc      *fasthttp.Client
	baseURL string
	apiKey  string
	chain   string
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAPIClient(baseURL, apiKey, chain string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		hc:      &fasthttp.Client{Name: "token_screener"},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		chain:   chain,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.Named("AnalyticsAPIClient"),
		metrics: m,
	}
}

func (c *APIClient) Source() string { return SourceAPI }

func (c *APIClient) Candles(ctx context.Context, address, interval string, limit int) ([]entity.Candle, error) {
	iv, ok := intervals[strings.ToLower(interval)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", entity.ErrInvalidInput, interval)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	to := c.now()
	from := to.Add(-time.Duration(limit) * iv.width)

	q := url.Values{}
	q.Set("address", address)
	q.Set("type", iv.kind)
	q.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	var data ohlcvData
	if err := c.get(ctx, "ohlcv", "/defi/ohlcv", q, &data); err != nil {
		return nil, err
	}
	out := make([]entity.Candle, 0, len(data.Items))
	for _, it := range data.Items {
		out = append(out, entity.Candle{
			Time:   time.Unix(it.UnixTime, 0).UTC(),
			Open:   it.Open,
			High:   it.High,
			Low:    it.Low,
			Close:  it.Close,
			Volume: it.Volume,
		})
	}
	return out, nil
}

func (c *APIClient) Holders(ctx context.Context, address string) (entity.HolderStats, error) {
	var (
		holders  holderData
		overview overviewData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := url.Values{}
		q.Set("address", address)
		q.Set("offset", "0")
		q.Set("limit", strconv.Itoa(topHoldersToShow))
		return c.get(gctx, "holders", "/defi/v3/token/holder", q, &holders)
	})
	g.Go(func() error {
		q := url.Values{}
		q.Set("address", address)
		return c.get(gctx, "overview", "/defi/token_overview", q, &overview)
	})
	if err := g.Wait(); err != nil {
		return entity.HolderStats{}, err
	}

	stats := entity.HolderStats{Holders: overview.Holder, Source: SourceAPI, TopHolders: []entity.TopHolder{}}
	for _, it := range holders.Items {
		h := entity.TopHolder{Address: it.Owner, Amount: it.UIAmount}
		if overview.Supply > 0 {
			h.Percent = it.UIAmount / overview.Supply * 100
		}
		stats.TopHolders = append(stats.TopHolders, h)
		stats.Top10Percent += h.Percent
	}
	return stats, nil
}

func (c *APIClient) Security(ctx context.Context, address string) (entity.SecurityFlags, error) {
	q := url.Values{}
	q.Set("address", address)
	var data securityData
	if err := c.get(ctx, "security", "/defi/token_security", q, &data); err != nil {
		return entity.SecurityFlags{}, err
	}

	flags := entity.SecurityFlags{Source: SourceAPI}
	if data.MintAuthority != nil && *data.MintAuthority != "" {
		flags.Mintable = true
		flags.MintAuthority = *data.MintAuthority
	}
	if data.FreezeAuthority != nil && *data.FreezeAuthority != "" {
		flags.Freezable = true
		flags.FreezeAuthority = *data.FreezeAuthority
	}
	if data.Freezeable != nil && *data.Freezeable {
		flags.Freezable = true
	}
	return flags, nil
}

func (c *APIClient) get(ctx context.Context, endpoint, path string, q url.Values, dst any) error {
	requestURL := c.baseURL + path + "?" + q.Encode()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	if c.chain != "" {
		req.Header.Set(chainHeader, c.chain)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	start := time.Now()
	if err := client.Do(ctx, c.hc, c.timeout, req, resp); err != nil {
		c.metrics.ObserveUpstream("analytics_"+endpoint, "error", time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("analytics request %s: %w", endpoint, err)
	}
	c.metrics.ObserveUpstream("analytics_"+endpoint, strconv.Itoa(resp.StatusCode()), time.Since(start))

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.logger.Warn("Analytics API request failed",
			zap.String("endpoint", endpoint),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", client.Truncate(body, 512)))
		return &client.StatusError{URL: c.baseURL + path, StatusCode: resp.StatusCode(), Body: string(client.Truncate(body, 512))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode analytics %s response: %w", endpoint, err)
	}
	if !env.Success {
		return fmt.Errorf("analytics %s: %s", endpoint, env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return entity.ErrTokenNotFound
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode analytics %s data: %w", endpoint, err)
	}
	return nil
}
