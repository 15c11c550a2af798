package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	"go.uber.org/zap"
)

const recentLinksLimit = 5

// Analytics is the part of the aggregator the dashboard needs.
type Analytics interface {
	Dashboard(ctx context.Context, scope model.Scope, opts service.DashboardOptions) model.DashboardStats
}

// StatsDeps groups dependencies required by the dashboard handlers.
type StatsDeps struct {
	Logger          *zap.Logger
	Links           service.LinkStore
	Analytics       Analytics
	Options         service.DashboardOptions
	AdminPermission string
}

// StatsHandler serves the analytics dashboard.
type StatsHandler struct {
	logger    *zap.Logger
	links     service.LinkStore
	analytics Analytics
	opts      service.DashboardOptions
	admin     string
}

// NewStatsHandler creates a dashboard handler with the provided dependencies.
func NewStatsHandler(deps StatsDeps) *StatsHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{
		logger:    logger,
		links:     deps.Links,
		analytics: deps.Analytics,
		opts:      deps.Options,
		admin:     deps.AdminPermission,
	}
}

// Register wires dashboard routes onto router, which must already require an identity.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("/stats", h.Dashboard)
	router.Get("/links/:id/stats", h.LinkStats)
}

func (h *StatsHandler) options(c *fiber.Ctx) service.DashboardOptions {
	opts := h.opts
	if days := c.QueryInt("days"); days > 0 && days <= 366 {
		opts.TrendDays = days
	}
	return opts
}

// Dashboard handles GET /api/stats. The caller's own links are summarised
// unless an admin asks for ?scope=global.
func (h *StatsHandler) Dashboard(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)
	ctx := c.UserContext()

	scope := model.OwnerScope(ident.Username)
	if c.Query("scope") == "global" {
		if h.admin == "" || !ident.Has(h.admin) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "global statistics require the admin permission"})
		}
		scope = model.GlobalScope()
	}

	stats := h.analytics.Dashboard(ctx, scope, h.options(c))

	recent, err := h.links.ListRecent(ctx, ident.Username, recentLinksLimit)
	if err != nil {
		h.logger.Warn("recent links unavailable", zap.String("owner", ident.Username), zap.Error(err))
		recent = []model.ShortLink{}
		stats.Degraded = true
	}

	scopeName := "owner"
	if scope == model.GlobalScope() {
		scopeName = "global"
	}
	return c.JSON(fiber.Map{
		"scope":  scopeName,
		"stats":  stats,
		"recent": recent,
	})
}

// LinkStats handles GET /api/links/:id/stats.
func (h *StatsHandler) LinkStats(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)
	ctx := c.UserContext()

	link, err := h.links.GetManaged(ctx, ident, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	stats := h.analytics.Dashboard(ctx, model.LinkScope(link.ID), h.options(c))
	return c.JSON(fiber.Map{
		"link":  link,
		"stats": stats,
	})
}
