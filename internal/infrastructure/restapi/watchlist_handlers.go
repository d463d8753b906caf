package restapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"token_screener/internal/domain/entity"
)

// ToggleResponse reports watchlist membership after a toggle.
type ToggleResponse struct {
	Address string `json:"address"`
	Member  bool   `json:"member"`
}

// CreateAlertRequest is the body of POST /alerts. CurrentPrice is optional; when absent
// the handler resolves it from the live feed, the list snapshot or the market.
type CreateAlertRequest struct {
	entity.NewAlertInput
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

func (h *Handler) ListWatchlist(c *gin.Context) {
	ok(c, h.Screener.WatchlistItems())
}

func bindItem(c *gin.Context) (entity.WatchlistItem, bool) {
	var item entity.WatchlistItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "invalid watchlist item: "+err.Error())
		return item, false
	}
	item.Address = strings.TrimSpace(item.Address)
	if item.Address == "" {
		badRequest(c, "address is required")
		return item, false
	}
	return item, true
}

func (h *Handler) AddToWatchlist(c *gin.Context) {
	item, valid := bindItem(c)
	if !valid {
		return
	}
	if err := h.Screener.AddToWatchlist(c.Request.Context(), item); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, h.Screener.WatchlistItems(), "")
}

func (h *Handler) ToggleWatchlist(c *gin.Context) {
	item, valid := bindItem(c)
	if !valid {
		return
	}
	member, err := h.Screener.ToggleWatchlist(c.Request.Context(), item)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, ToggleResponse{Address: item.Address, Member: member})
}

func (h *Handler) ClearWatchlist(c *gin.Context) {
	if err := h.Screener.ClearWatchlist(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	ok(c, h.Screener.Alerts())
}

// CreateAlert validates the target against the current price and stores the alert.
func (h *Handler) CreateAlert(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid alert: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	var current float64
	switch {
	case req.CurrentPrice != nil && *req.CurrentPrice > 0:
		current = *req.CurrentPrice
	default:
		if u, found := h.Screener.LivePrice(req.TokenAddress); found && u.PriceUSD > 0 {
			current = u.PriceUSD
			break
		}
		price, err := h.Tokens.CurrentPrice(ctx, req.TokenAddress, h.Screener.Snapshot().Tokens)
		if errors.Is(err, entity.ErrTokenNotFound) {
			h.fail(c, fmt.Errorf("%w: current price of %s is unknown", entity.ErrInvalidAlertTarget, req.TokenAddress))
			return
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		current = price
	}

	alert, err := h.Screener.AddAlert(ctx, req.NewAlertInput, current)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, alert, "")
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	removed, err := h.Screener.RemoveAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		h.fail(c, fmt.Errorf("alert %s: %w", c.Param("id"), entity.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClearAlerts(c *gin.Context) {
	if err := h.Screener.ClearAlerts(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
