// Package router assembles the echo instance: shared middleware, the error
// handler and every route of the API.
package router

import (
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/handler"
	"github.com/iliyamo/invoice-billing/internal/middleware"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/service"
)

// multipartSlack is allowed on top of the upload limit for form framing.
const multipartSlack = 1 << 20

// Deps are the runtime collaborators of the HTTP layer.
type Deps struct {
	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client          // nil disables rate limiting and caching
	Events service.EventPublisher // nil disables bulk-import events
}

// New builds the echo instance with all routes registered.
func New(d Deps) *echo.Echo {
	cfg := d.Config
	store := repository.NewStore(d.DB)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsDevelopment())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger())
	if cfg.UploadMaxBytes > 0 {
		e.Use(echomw.BodyLimit(strconv.FormatInt(cfg.UploadMaxBytes+multipartSlack, 10)))
	}

	RegisterRoutes(e, handler.NewHealthHandler(d.DB))

	api := e.Group("/api")
	RegisterAuth(api,
		handler.NewAuthHandler(service.NewAuthService(store, cfg)),
		cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, d.Redis),
	)
	RegisterUsers(api,
		handler.NewUserHandler(service.NewUserService(store, cfg.BcryptCost), cfg.BaseURL),
		cfg.JWTSecret,
	)
	RegisterInvoices(api,
		handler.NewInvoiceHandler(service.NewInvoiceService(store, d.Events), cfg.BaseURL, cfg.UploadDir, cfg.UploadMaxBytes),
		cfg.JWTSecret,
		middleware.NewRedisCache(cfg.Cache, d.Redis),
	)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// live outside /api.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the session endpoints under /auth.  The
// credential-taking routes go through the rate limiter; profile requires an
// access token.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/logout", a.Logout)
	g.GET("/profile", a.Profile, middleware.JWTAuth(jwtSecret))
}
