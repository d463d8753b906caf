package restapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"token_screener/internal/domain/entity"
	"token_screener/internal/domain/view"
)

// membershipWait bounds how long a request waits for the watchlist and alerts to load.
const membershipWait = 2 * time.Second

// TokenListResponse is the body of GET /tokens. MembershipLoaded false marks the
// watchlist and alerts views as provisional.
type TokenListResponse struct {
	View             entity.View       `json:"view"`
	Preset           string            `json:"preset,omitempty"`
	Sort             entity.SortSpec   `json:"sort"`
	Rows             []entity.Token    `json:"rows"`
	Totals           entity.ViewTotals `json:"totals"`
	MembershipLoaded bool              `json:"membershipLoaded"`
	Loading          bool              `json:"loading"`
	Refreshing       bool              `json:"refreshing"`
	LastUpdated      time.Time         `json:"lastUpdated"`
	Err              string            `json:"error,omitempty"`
}

// TokenDetailResponse is the body of GET /tokens/:address. WatchlistLoaded false
// means Watched is provisional.
type TokenDetailResponse struct {
	Token           entity.Token        `json:"token"`
	LivePrice       *entity.PriceUpdate `json:"livePrice,omitempty"`
	Watched         bool                `json:"watched"`
	WatchlistLoaded bool                `json:"watchlistLoaded"`
}

// ListTokens derives the requested view over the latest snapshot.
func (h *Handler) ListTokens(c *gin.Context) {
	v, err := entity.ParseView(c.Query("view"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var preset *view.Preset
	if name := c.Query("preset"); name != "" {
		p, found := view.LookupPreset(name)
		if !found {
			badRequest(c, "unknown preset "+strconv.Quote(name))
			return
		}
		preset = &p
	}
	// An explicit sort or dir wins over the preset's sort.
	sortSpec, err := view.ResolveSort(c.Query("sort"), c.Query("dir"), preset)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), membershipWait)
	defer cancel()
	res := h.Screener.View(ctx, v, sortSpec, preset)
	st := h.Screener.Snapshot()
	body := TokenListResponse{
		View:             v,
		Sort:             res.Sort,
		Rows:             res.Rows,
		Totals:           res.Totals,
		MembershipLoaded: res.MembershipLoaded,
		Loading:          st.Loading,
		Refreshing:       st.Refreshing,
		LastUpdated:      st.LastUpdated,
		Err:              st.Err,
	}
	if preset != nil {
		body.Preset = preset.Name
	}
	ok(c, body)
}

// RefreshTokens runs a manual fetch and returns the resulting state.
func (h *Handler) RefreshTokens(c *gin.Context) {
	if err := h.Screener.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, h.Screener.Snapshot(), "Token list refreshed")
}

// TokenDetail returns the token built from its canonical pair.
func (h *Handler) TokenDetail(c *gin.Context) {
	addr := c.Param("address")
	tok, err := h.Tokens.Detail(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := TokenDetailResponse{Token: tok}
	if u, found := h.Screener.LivePrice(tok.Address); found {
		body.LivePrice = &u
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), membershipWait)
	defer cancel()
	body.Watched, body.WatchlistLoaded = h.Screener.IsWatched(ctx, tok.Address)
	ok(c, body)
}

// TokenCandles returns OHLC bars. Query: interval (default 15m), limit (default 100).
func (h *Handler) TokenCandles(c *gin.Context) {
	if h.Analytics == nil {
		h.fail(c, entity.ErrFeatureUnavailable)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	candles, err := h.Analytics.Candles(c.Request.Context(), c.Param("address"), c.DefaultQuery("interval", "15m"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, candles)
}

func (h *Handler) TokenHolders(c *gin.Context) {
	if h.Analytics == nil {
		h.fail(c, entity.ErrFeatureUnavailable)
		return
	}
	stats, err := h.Analytics.Holders(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, stats)
}

func (h *Handler) TokenSecurity(c *gin.Context) {
	if h.Analytics == nil {
		h.fail(c, entity.ErrFeatureUnavailable)
		return
	}
	flags, err := h.Analytics.Security(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, flags)
}

// Search runs a free-text search. Query: q.
func (h *Handler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "query parameter q is required")
		return
	}
	results, err := h.Tokens.Search(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, results)
}

func (h *Handler) RecentSearches(c *gin.Context) {
	ok(c, h.History.Entries())
}

func (h *Handler) ClearRecentSearches(c *gin.Context) {
	h.History.Clear()
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPresets(c *gin.Context) {
	ok(c, view.Presets())
}
