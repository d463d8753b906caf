// Package restapi exposes the screener over HTTP with gin.
package restapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"token_screener/internal/app/port"
	"token_screener/internal/app/service"
	"token_screener/internal/infrastructure/metrics"
	"token_screener/internal/infrastructure/notify"
)

// Deps are the services behind the routes. Portfolio, Claims, Events and Metrics may
// be nil; their routes then answer 501 or are not mounted.
type Deps struct {
	Screener  *service.Screener
	Tokens    *service.TokenService
	Analytics port.AnalyticsProvider
	Portfolio *service.PortfolioService
	Claims    *service.ClaimService
	Filters   *service.FilterStore
	History   *service.SearchHistory
	Sound     *service.SoundPreferenceStore
	Events    *notify.Broadcaster
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Options tune the router.
type Options struct {
	CORSOrigins []string
	// SwaggerSpec is the path of the OpenAPI file served at /docs/swagger.yaml. Empty
	// disables the swagger UI.
	SwaggerSpec string
}

// Handler holds the route handlers.
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewRouter builds the gin engine. Panics are recovered only inside the token detail
// group; everywhere else they reach net/http.
func NewRouter(d Deps, opts Options) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &Handler{Deps: d, logger: d.Logger.Named("RestAPI")}

	router := gin.New()
	router.Use(requestLogger(h.logger))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tokens", h.ListTokens)
		v1.POST("/tokens/refresh", h.RefreshTokens)

		detail := v1.Group("/tokens/:address", gin.CustomRecovery(h.recovered))
		{
			detail.GET("", h.TokenDetail)
			detail.GET("/candles", h.TokenCandles)
			detail.GET("/holders", h.TokenHolders)
			detail.GET("/security", h.TokenSecurity)
		}

		v1.GET("/search", h.Search)
		v1.GET("/search/recent", h.RecentSearches)
		v1.DELETE("/search/recent", h.ClearRecentSearches)

		v1.GET("/watchlist", h.ListWatchlist)
		v1.POST("/watchlist", h.AddToWatchlist)
		v1.DELETE("/watchlist", h.ClearWatchlist)
		v1.POST("/watchlist/toggle", h.ToggleWatchlist)

		v1.GET("/alerts", h.ListAlerts)
		v1.POST("/alerts", h.CreateAlert)
		v1.DELETE("/alerts", h.ClearAlerts)
		v1.DELETE("/alerts/:id", h.DeleteAlert)

		v1.GET("/filters", h.GetFilters)
		v1.PUT("/filters", h.PutFilters)
		v1.GET("/settings/sound", h.GetSound)
		v1.PUT("/settings/sound", h.PutSound)

		v1.GET("/portfolio/:wallet", h.GetPortfolio)

		v1.GET("/claims/message", h.ClaimMessages)
		v1.POST("/claims", h.CreateClaim)
		v1.GET("/claims/profiles/:address", h.GetProfile)
		v1.PUT("/claims/profiles/:address", h.PutProfile)
		v1.POST("/claims/profiles/:address/images/:kind", h.UploadImage)
		v1.GET("/claims/blobs/:key", h.GetBlob)

		v1.GET("/presets", h.ListPresets)
		v1.GET("/status", h.Status)
	}

	if d.Events != nil {
		router.GET("/ws", gin.WrapF(d.Events.Handler()))
	}
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if opts.SwaggerSpec != "" {
		router.StaticFile("/docs/swagger.yaml", opts.SwaggerSpec)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (h *Handler) recovered(c *gin.Context, err any) {
	h.logger.Error("panic in token detail handler", zap.String("path", c.Request.URL.Path), zap.Any("panic", err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, APIResponse{Error: "internal error"})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
