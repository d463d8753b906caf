package restapi

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"token_screener/internal/app/service"
	"token_screener/internal/domain/entity"
)

// ClaimMessagesResponse tells a wallet what to sign.
type ClaimMessagesResponse struct {
	Claim   string `json:"claim"`
	Profile string `json:"profile"`
}

func (h *Handler) claimsEnabled(c *gin.Context) bool {
	if h.Claims == nil {
		h.fail(c, entity.ErrFeatureUnavailable)
		return false
	}
	return true
}

// ClaimMessages returns the messages to sign. Query: token, wallet.
func (h *Handler) ClaimMessages(c *gin.Context) {
	token, wallet := c.Query("token"), c.Query("wallet")
	if token == "" || wallet == "" {
		badRequest(c, "query parameters token and wallet are required")
		return
	}
	ok(c, ClaimMessagesResponse{
		Claim:   service.ClaimMessage(token, wallet),
		Profile: service.ProfileMessage(token, wallet),
	})
}

func (h *Handler) CreateClaim(c *gin.Context) {
	if !h.claimsEnabled(c) {
		return
	}
	var req service.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid claim: "+err.Error())
		return
	}
	claim, err := h.Claims.Claim(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, claim, "Token profile claimed")
}

func (h *Handler) GetProfile(c *gin.Context) {
	if !h.claimsEnabled(c) {
		return
	}
	p, err := h.Claims.Profile(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

func (h *Handler) PutProfile(c *gin.Context) {
	if !h.claimsEnabled(c) {
		return
	}
	var upd service.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "invalid profile: "+err.Error())
		return
	}
	p, err := h.Claims.UpdateProfile(c.Request.Context(), c.Param("address"), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

// UploadImage accepts a multipart form with fields wallet, signature and file.
func (h *Handler) UploadImage(c *gin.Context) {
	if !h.claimsEnabled(c) {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	p, err := h.Claims.UploadImage(c.Request.Context(), c.Param("address"), c.Param("kind"),
		c.PostForm("wallet"), c.PostForm("signature"), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, p, "")
}

// GetBlob streams a stored profile image.
func (h *Handler) GetBlob(c *gin.Context) {
	if !h.claimsEnabled(c) {
		return
	}
	key := c.Param("key")
	rc, err := h.Claims.Image(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentTypeFor(key), rc, map[string]string{
		"Cache-Control": "public, max-age=300",
	})
}

func contentTypeFor(key string) string {
	switch filepath.Ext(key) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
