package restapi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/app/service"
	"token_screener/internal/domain/entity"
	dex "token_screener/internal/entity"
	"token_screener/internal/infrastructure/blobstore"
	"token_screener/internal/infrastructure/claimstore"
	"token_screener/internal/infrastructure/kvstore"
	"token_screener/internal/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type stubMarket struct {
	pairs []dex.PairData
}

func (m *stubMarket) GetTokensByChain(context.Context, string) ([]dex.PairData, error) {
	return m.pairs, nil
}

func (m *stubMarket) Search(context.Context, string) ([]dex.PairData, error) {
	return m.pairs, nil
}

func (m *stubMarket) GetTokenPairs(_ context.Context, address string) ([]dex.PairData, error) {
	var out []dex.PairData
	for _, p := range m.pairs {
		if p.BaseToken.Address == address {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *stubMarket) GetTokenPairsByAddresses(ctx context.Context, _ string, addresses []string) ([]dex.PairData, error) {
	var out []dex.PairData
	for _, a := range addresses {
		pairs, _ := m.GetTokenPairs(ctx, a)
		out = append(out, pairs...)
	}
	return out, nil
}

type stubAnalytics struct{}

func (stubAnalytics) Candles(context.Context, string, string, int) ([]entity.Candle, error) {
	return nil, entity.ErrFeatureUnavailable
}

func (stubAnalytics) Holders(context.Context, string) (entity.HolderStats, error) {
	return entity.HolderStats{Holders: 42, Source: "stub"}, nil
}

func (stubAnalytics) Security(context.Context, string) (entity.SecurityFlags, error) {
	panic("security backend exploded")
}

func (stubAnalytics) Source() string { return "stub" }

func testPair(addr string, price, liquidity, volume float64) dex.PairData {
	return dex.PairData{
		ChainID:     "solana",
		PairAddress: "pair-" + addr,
		BaseToken:   dex.DEXToken{Address: addr, Symbol: addr},
		PriceUsd:    dex.FlexFloat{Value: price, Valid: true},
		Liquidity:   &dex.DEXLiquidity{Usd: &liquidity},
		Volume:      &dex.PairVolume{H24: &volume},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *service.Screener) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := logger.Nop()

	market := &stubMarket{pairs: []dex.PairData{
		testPair("MintA", 1.0, 50_000, 1_000),
		testPair("MintB", 2.0, 80_000, 9_000),
	}}
	kv := kvstore.NewMemoryStore()
	persister := service.NewPersister(kv, log, nil)
	history := service.NewSearchHistory(ctx, kv, persister, log, nil)
	prices := service.NewTokenPriceService(market, "solana", time.Minute, log)
	tokens := service.NewTokenService(market, "solana", history, prices, time.Minute, log)
	alerts := service.NewAlertEngine(ctx, service.AlertEngineDeps{KV: kv, Persister: persister, Logger: log})
	watchlist := service.NewWatchlistStore(ctx, kv, persister, log, nil)
	filters := service.NewFilterStore(ctx, kv, persister, log)
	poller := service.NewFeedPoller(tokens.FetchList, service.FeedPollerConfig{Interval: time.Hour, Logger: log})
	screener := service.NewScreener(service.ScreenerDeps{
		Poller:    poller,
		Watchlist: watchlist,
		Alerts:    alerts,
		Filters:   filters,
		Persister: persister,
		Logger:    log,
	})
	require.NoError(t, screener.Start(ctx))
	t.Cleanup(func() { _ = screener.Stop(context.Background()) })
	require.Eventually(t, func() bool { return screener.Snapshot().TokenCount == 2 }, time.Second, 5*time.Millisecond)
	<-alerts.Ready()
	<-watchlist.Ready()

	blobs, err := blobstore.NewFileStore(t.TempDir(), "/api/v1/claims/blobs")
	require.NoError(t, err)

	router := NewRouter(Deps{
		Screener:  screener,
		Tokens:    tokens,
		Analytics: stubAnalytics{},
		Claims:    service.NewClaimService(claimstore.NewMemoryStore(nil), blobs, 1024, log),
		Filters:   filters,
		History:   history,
		Sound:     service.NewSoundPreferenceStore(ctx, kv, persister, log),
	}, Options{})
	return router, screener
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data  T      `json:"data"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func TestRouter_ListTokens(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/tokens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[TokenListResponse](t, w)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "MintB", body.Rows[0].Address)
	assert.Equal(t, 2, body.Totals.Count)
	assert.True(t, body.MembershipLoaded)
	assert.Equal(t, entity.DefaultSort, body.Sort)

	w = do(t, r, http.MethodGet, "/api/v1/tokens?sort=price&dir=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[TokenListResponse](t, w)
	assert.Equal(t, "MintA", body.Rows[0].Address)
	assert.Equal(t, entity.SortSpec{Field: entity.SortPrice, Direction: entity.SortAsc}, body.Sort)

	w = do(t, r, http.MethodGet, "/api/v1/tokens?view=gainers&sort=price&dir=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.SortSpec{Field: entity.SortPriceChange24h, Direction: entity.SortDesc}, decode[TokenListResponse](t, w).Sort,
		"the response reports the forced view sort")

	w = do(t, r, http.MethodGet, "/api/v1/tokens?preset=hot&sort=liquidity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[TokenListResponse](t, w)
	assert.Equal(t, "hot", body.Preset)
	assert.Equal(t, entity.SortSpec{Field: entity.SortLiquidity, Direction: entity.SortDesc}, body.Sort)

	w = do(t, r, http.MethodGet, "/api/v1/tokens?preset=safe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[TokenListResponse](t, w).Rows, "no token meets the safe liquidity floor")

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/tokens?view=bogus", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/tokens?preset=bogus", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/tokens?sort=bogus", nil).Code)
}

func TestRouter_TokenDetailAndRecovery(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/tokens/MintA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[TokenDetailResponse](t, w)
	assert.Equal(t, "MintA", detail.Token.Address)
	assert.False(t, detail.Watched)
	assert.True(t, detail.WatchlistLoaded)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/v1/tokens/Nope", nil).Code)
	assert.Equal(t, http.StatusNotImplemented, do(t, r, http.MethodGet, "/api/v1/tokens/MintA/candles", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/tokens/MintA/candles?limit=-1", nil).Code)

	w = do(t, r, http.MethodGet, "/api/v1/tokens/MintA/holders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, decode[entity.HolderStats](t, w).Holders)

	w = do(t, r, http.MethodGet, "/api/v1/tokens/MintA/security", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "panics inside the detail group are recovered")
}

func TestRouter_WatchlistAndAlerts(t *testing.T) {
	r, screener := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/watchlist/toggle", entity.WatchlistItem{Address: "MintA"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ToggleResponse](t, w).Member)

	w = do(t, r, http.MethodGet, "/api/v1/tokens?view=watchlist", nil)
	rows := decode[TokenListResponse](t, w).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "MintA", rows[0].Address)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/watchlist", entity.WatchlistItem{}).Code)
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/v1/watchlist", nil).Code)
	assert.Empty(t, screener.WatchlistItems())

	bad := entity.NewAlertInput{TokenAddress: "MintA", Condition: entity.AlertAbove, TargetPrice: 0.5}
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/alerts", bad).Code)

	unknown := entity.NewAlertInput{TokenAddress: "Ghost", Condition: entity.AlertAbove, TargetPrice: 5}
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/alerts", unknown).Code)

	good := entity.NewAlertInput{TokenAddress: "MintA", Condition: entity.AlertAbove, TargetPrice: 1.5}
	w = do(t, r, http.MethodPost, "/api/v1/alerts", good)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alert := decode[entity.PriceAlert](t, w)

	w = do(t, r, http.MethodGet, "/api/v1/tokens?view=alerts", nil)
	assert.Len(t, decode[TokenListResponse](t, w).Rows, 1)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/v1/alerts/"+alert.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/api/v1/alerts/"+alert.ID, nil).Code)
}

func TestRouter_FiltersAndSettings(t *testing.T) {
	r, _ := newTestRouter(t)

	minLiq := 60_000.0
	maxAge := "6h"
	w := do(t, r, http.MethodPut, "/api/v1/filters", FiltersBody{MinLiquidity: &minLiq, MaxAge: &maxAge})
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode[FiltersBody](t, w)
	require.NotNil(t, saved.MaxAge)
	assert.Equal(t, "6h0m0s", *saved.MaxAge)

	badAge := "soon"
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPut, "/api/v1/filters", FiltersBody{MaxAge: &badAge}).Code)

	w = do(t, r, http.MethodPut, "/api/v1/settings/sound", entity.SoundPreference{Enabled: false})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/settings/sound", nil)
	assert.False(t, decode[entity.SoundPreference](t, w).Enabled)

	w = do(t, r, http.MethodGet, "/api/v1/search?q=mint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/search/recent", nil)
	entries := decode[[]entity.SearchEntry](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, "mint", entries[0].Query)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/search", nil).Code)

	w = do(t, r, http.MethodGet, "/api/v1/status", nil)
	status := decode[StatusResponse](t, w)
	assert.Equal(t, 2, status.TokenCount)
	assert.Equal(t, "stub", status.AnalyticsSource)
	assert.True(t, status.ClaimsEnabled)

	assert.Equal(t, http.StatusNotImplemented, do(t, r, http.MethodGet, "/api/v1/portfolio/x", nil).Code)
}

func TestRouter_ClaimFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	key := solana.NewWallet().PrivateKey
	wallet := key.PublicKey().String()

	w := do(t, r, http.MethodGet, "/api/v1/claims/message?token=MintA&wallet="+wallet, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[ClaimMessagesResponse](t, w)

	claimSig, err := key.Sign([]byte(msgs.Claim))
	require.NoError(t, err)
	w = do(t, r, http.MethodPost, "/api/v1/claims", service.ClaimRequest{TokenAddress: "MintA", Wallet: wallet, Signature: claimSig.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/v1/claims/profiles/MintA", service.ProfileUpdate{Wallet: wallet, Signature: claimSig.String()})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "claim signature does not authorize edits")

	editSig, err := key.Sign([]byte(msgs.Profile))
	require.NoError(t, err)
	w = do(t, r, http.MethodPut, "/api/v1/claims/profiles/MintA", service.ProfileUpdate{Wallet: wallet, Signature: editSig.String(), Twitter: "@minta"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "@minta", decode[entity.TokenProfile](t, w).Twitter)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	require.NoError(t, mw.WriteField("wallet", wallet))
	require.NoError(t, mw.WriteField("signature", editSig.String()))
	fw, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/profiles/MintA/images/logo", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	logo := decode[entity.TokenProfile](t, w).LogoURL
	assert.Equal(t, "/api/v1/claims/blobs/MintA-logo.png", logo)

	w = do(t, r, http.MethodGet, logo, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/v1/claims/blobs/missing.png", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/claims/blobs/secret.txt", nil).Code)
}
