package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/LinkPulse/config"
	"github.com/sifan077/LinkPulse/internal/app/service"
	inthttp "github.com/sifan077/LinkPulse/internal/http/handler"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Redis     redis.Cmdable
	Links     service.LinkStore
	Clicks    service.ClickSink
	Analytics inthttp.Analytics
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "LinkPulse",
		Immutable:             true,
		DisableStartupMessage: deps.Config.App.Production(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
}

func (s *Server) registerRoutes() {
	cfg := s.deps.Config

	api := s.app.Group("/api", middleware.CORS(), middleware.Identity([]byte(cfg.Auth.JWTSecret), s.deps.Logger))
	if s.deps.Redis != nil {
		api.Use(middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
			KeyPrefix:   "linkpulse:ratelimit",
		}, s.deps.Logger))
	} else {
		s.deps.Logger.Warn("rate limiting disabled: no redis client")
	}

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:          s.deps.Logger,
		Links:           s.deps.Links,
		BaseURL:         cfg.App.BaseURL,
		AdminPermission: cfg.Auth.AdminPermission,
	}).Register(api)

	inthttp.NewStatsHandler(inthttp.StatsDeps{
		Logger:    s.deps.Logger,
		Links:     s.deps.Links,
		Analytics: s.deps.Analytics,
		Options: service.DashboardOptions{
			TrendDays:     cfg.Analytics.TrendDays,
			TopLimit:      cfg.Analytics.TopLimit,
			ReferrerLimit: cfg.Analytics.ReferrerLimit,
		},
		AdminPermission: cfg.Auth.AdminPermission,
	}).Register(api)

	// Registered last: /:slug would shadow everything after it.
	inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   s.deps.Logger,
		Links:    s.deps.Links,
		Clicks:   s.deps.Clicks,
		Tokens:   httpUtil.NewTokenSigner([]byte(cfg.Redirect.Secret), cfg.Redirect.TokenTTL),
		TokenTTL: cfg.Redirect.TokenTTL,
		HashSalt: cfg.Clicks.HashSalt,
	}).Register(s.app)
}
