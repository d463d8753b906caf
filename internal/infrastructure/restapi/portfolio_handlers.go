package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"token_screener/internal/domain/entity"
)

// GetPortfolio values the wallet in the path. Partial pricing failures are listed in
// the portfolio's errors and still answer 200.
func (h *Handler) GetPortfolio(c *gin.Context) {
	if h.Portfolio == nil {
		h.fail(c, entity.ErrFeatureUnavailable)
		return
	}
	p, err := h.Portfolio.Portfolio(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var msg string
	switch {
	case len(p.Errors) > 0 && len(p.Holdings) == 0 && p.NativeValueUSD == 0:
		msg = "Wallet read, but no holding could be priced."
	case len(p.Errors) > 0:
		msg = "Portfolio retrieved. Some tokens could not be priced."
	case len(p.Holdings) == 0:
		msg = "Wallet holds no tokens besides the native balance."
	default:
		msg = "Portfolio retrieved successfully."
	}
	respond(c, http.StatusOK, p, msg)
}
