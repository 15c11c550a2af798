package handler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"github.com/sifan077/LinkPulse/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Links    service.LinkStore
	Clicks   service.ClickSink
	Tokens   *httpUtil.TokenSigner
	TokenTTL time.Duration
	HashSalt string
}

// RedirectHandler resolves slugs, records clicks and issues redirects.
type RedirectHandler struct {
	logger   *zap.Logger
	links    service.LinkStore
	clicks   service.ClickSink
	tokens   *httpUtil.TokenSigner
	tokenTTL time.Duration
	hashSalt string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		links:    deps.Links,
		clicks:   deps.Clicks,
		tokens:   deps.Tokens,
		tokenTTL: deps.TokenTTL,
		hashSalt: deps.HashSalt,
	}
}

// Register wires redirect routes onto the provided router. It must be
// registered after every other route because /:slug matches anything.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:slug", h.Resolve)
	router.Get("/:slug/_go/:token", h.Continue)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "LinkPulse",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:slug. Links flagged with a warning get an
// interstitial first; the click is only counted once the visitor continues.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	slug := utils.CopyString(c.Params("slug"))

	link, err := h.links.Get(c.UserContext(), slug)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	if link.Warning {
		return h.renderWarning(c, link)
	}

	h.recordClick(c, link)
	return c.Redirect(link.URL, fiber.StatusFound)
}

// Continue handles the button of the warning page.
func (h *RedirectHandler) Continue(c *fiber.Ctx) error {
	slug := utils.CopyString(c.Params("slug"))
	token := c.Params("token")

	if err := h.tokens.Validate(slug, token); err != nil {
		if errors.Is(err, httpUtil.ErrMissingSecret) {
			h.logger.Error("redirect secret is not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to validate token"})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	link, err := h.links.Get(c.UserContext(), slug)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	h.recordClick(c, link)
	return c.Redirect(link.URL, fiber.StatusFound)
}

func (h *RedirectHandler) renderWarning(c *fiber.Ctx, link *model.ShortLink) error {
	token, err := h.tokens.Issue(link.Slug)
	if err != nil {
		h.logger.Error("failed to issue continue token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare redirect"})
	}

	html, err := view.RenderWarningPage(view.WarningPageData{
		Slug:        link.Slug,
		TargetURL:   link.URL,
		ContinueURL: fmt.Sprintf("/%s/_go/%s", link.Slug, url.PathEscape(token)),
		ExpiresIn:   int(h.tokenTTL / time.Second),
	})
	if err != nil {
		h.logger.Error("failed to render warning page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to render page"})
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Type("html", "utf-8").SendString(html)
}

// recordClick derives the click attributes while the request is still live;
// fiber recycles the context once the handler returns.
func (h *RedirectHandler) recordClick(c *fiber.Ctx, link *model.ShortLink) {
	if h.clicks == nil {
		return
	}
	click := service.NewClick(
		link.ID,
		httpUtil.HashIP(h.hashSalt, c.IP()),
		httpUtil.ParseBrowser(c.Get(fiber.HeaderUserAgent)),
		httpUtil.ReferrerOrigin(strings.Clone(c.Get(fiber.HeaderReferer))),
	)
	h.clicks.Submit(click)
	h.logger.Debug("redirecting short link", zap.String("slug", link.Slug), zap.String("target", link.URL))
}
