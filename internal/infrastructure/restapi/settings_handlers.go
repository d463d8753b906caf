package restapi

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"token_screener/internal/domain/entity"
)

// FiltersBody is the wire form of entity.FilterState. MaxAge uses Go duration syntax
// ("6h", "90m").
type FiltersBody struct {
	MinLiquidity *float64 `json:"minLiquidity"`
	MinVolume    *float64 `json:"minVolume"`
	MaxAge       *string  `json:"maxAge"`
	Chain        *string  `json:"chain"`
}

func filtersBody(f entity.FilterState) FiltersBody {
	b := FiltersBody{MinLiquidity: f.MinLiquidity, MinVolume: f.MinVolume, Chain: f.Chain}
	if f.MaxAge != nil {
		s := f.MaxAge.String()
		b.MaxAge = &s
	}
	return b
}

func (b FiltersBody) state() (entity.FilterState, error) {
	f := entity.FilterState{MinLiquidity: b.MinLiquidity, MinVolume: b.MinVolume, Chain: b.Chain}
	if b.MaxAge != nil && *b.MaxAge != "" {
		d, err := time.ParseDuration(*b.MaxAge)
		if err != nil {
			return entity.FilterState{}, fmt.Errorf("%w: maxAge: %v", entity.ErrInvalidInput, err)
		}
		f.MaxAge = &d
	}
	return f, nil
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Loading         bool      `json:"loading"`
	Refreshing      bool      `json:"refreshing"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Err             string    `json:"error,omitempty"`
	TokenCount      int       `json:"tokenCount"`
	FeedTransport   string    `json:"feedTransport,omitempty"`
	FeedAddresses   int       `json:"feedAddresses"`
	AnalyticsSource string    `json:"analyticsSource,omitempty"`
	Subscribers     int       `json:"subscribers"`
	ClaimsEnabled   bool      `json:"claimsEnabled"`
}

func (h *Handler) GetFilters(c *gin.Context) {
	ok(c, filtersBody(h.Filters.Get()))
}

// PutFilters replaces the stored filters. Omitted fields are cleared.
func (h *Handler) PutFilters(c *gin.Context) {
	var body FiltersBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid filters: "+err.Error())
		return
	}
	state, err := body.state()
	if err != nil {
		h.fail(c, err)
		return
	}
	saved, err := h.Filters.Set(state)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, filtersBody(saved))
}

func (h *Handler) GetSound(c *gin.Context) {
	ok(c, entity.SoundPreference{Enabled: h.Sound.SoundEnabled()})
}

func (h *Handler) PutSound(c *gin.Context) {
	var body entity.SoundPreference
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid sound preference: "+err.Error())
		return
	}
	ok(c, h.Sound.Set(body.Enabled))
}

func (h *Handler) Status(c *gin.Context) {
	st := h.Screener.Snapshot()
	body := StatusResponse{
		Loading:       st.Loading,
		Refreshing:    st.Refreshing,
		LastUpdated:   st.LastUpdated,
		Err:           st.Err,
		TokenCount:    st.TokenCount,
		FeedTransport: h.Screener.FeedTransport(),
		FeedAddresses: len(h.Screener.FeedAddresses()),
		ClaimsEnabled: h.Claims != nil,
	}
	if h.Analytics != nil {
		body.AnalyticsSource = h.Analytics.Source()
	}
	if h.Events != nil {
		body.Subscribers = h.Events.Clients()
	}
	ok(c, body)
}
