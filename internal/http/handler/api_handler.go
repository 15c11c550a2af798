package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger          *zap.Logger
	Links           service.LinkStore
	BaseURL         string
	AdminPermission string
}

// APIHandler implements the link management endpoints.
type APIHandler struct {
	logger  *zap.Logger
	links   service.LinkStore
	baseURL string
	admin   string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:  logger,
		links:   deps.Links,
		baseURL: strings.TrimRight(deps.BaseURL, "/"),
		admin:   deps.AdminPermission,
	}
}

// Register wires link routes onto router, which must already require an identity.
func (h *APIHandler) Register(router fiber.Router) {
	links := router.Group("/links")
	links.Post("/", h.CreateLink)
	links.Get("/", h.ListLinks)
	links.Get("/:id", h.GetLink)
	links.Patch("/:id", h.UpdateLink)
	links.Delete("/:id", h.DeleteLink)
	links.Get("/:id/qr", h.LinkQRCode)
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	Slug    string `json:"slug" validate:"required,slug"`
	URL     string `json:"url" validate:"required,weburl"`
	Warning bool   `json:"warning"`
	// Owner is honoured for admins only.
	Owner string `json:"owner,omitempty"`
}

// UpdateLinkRequest carries the fields to change; omitted fields keep their value.
type UpdateLinkRequest struct {
	Slug    *string `json:"slug,omitempty" validate:"omitempty,slug"`
	URL     *string `json:"url,omitempty" validate:"omitempty,weburl"`
	Warning *bool   `json:"warning,omitempty"`
	Owner   *string `json:"owner,omitempty"`
}

// LinkResponse is the API view of a short link.
type LinkResponse struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	Owner     string    `json:"owner"`
	Warning   bool      `json:"warning"`
	ShortURL  string    `json:"short_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *APIHandler) toResponse(link *model.ShortLink) LinkResponse {
	return LinkResponse{
		ID:        link.ID,
		Slug:      link.Slug,
		URL:       link.URL,
		Owner:     link.Owner,
		Warning:   link.Warning,
		ShortURL:  h.baseURL + "/" + link.Slug,
		CreatedAt: link.CreatedAt,
	}
}

func (h *APIHandler) isAdmin(ident model.Identity) bool {
	return h.admin != "" && ident.Has(h.admin)
}

// CreateLink handles POST /api/links.
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	owner := ident.Username
	if req.Owner != "" && req.Owner != owner {
		if !h.isAdmin(ident) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only admins may create links for others"})
		}
		owner = req.Owner
	}

	link, err := h.links.Create(c.UserContext(), service.CreateLinkInput{
		Slug:    req.Slug,
		URL:     req.URL,
		Owner:   owner,
		Warning: req.Warning,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toResponse(link))
}

// ListLinks handles GET /api/links. Admins may pass ?owner= to list another owner's links.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	owner := ident.Username
	if requested := c.Query("owner"); requested != "" && requested != owner {
		if !h.isAdmin(ident) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only admins may list other owners"})
		}
		owner = requested
	}

	links, err := h.links.ListByOwner(c.UserContext(), owner)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.toResponse(&links[i])
	}
	return c.JSON(fiber.Map{
		"owner": owner,
		"links": response,
		"count": len(response),
	})
}

// GetLink handles GET /api/links/:id.
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	link, err := h.links.GetManaged(c.UserContext(), ident, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(h.toResponse(link))
}

// UpdateLink handles PATCH /api/links/:id.
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.UserContext()
	link, err := h.links.GetManaged(ctx, ident, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	input := service.UpdateLinkInput{
		Slug:    link.Slug,
		URL:     link.URL,
		Owner:   link.Owner,
		Warning: link.Warning,
	}
	if req.Slug != nil {
		input.Slug = *req.Slug
	}
	if req.URL != nil {
		input.URL = *req.URL
	}
	if req.Warning != nil {
		input.Warning = *req.Warning
	}
	if req.Owner != nil && *req.Owner != link.Owner {
		if !h.isAdmin(ident) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only admins may transfer links"})
		}
		input.Owner = *req.Owner
	}

	updated, err := h.links.Update(ctx, link.ID, input)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(h.toResponse(updated))
}

// DeleteLink handles DELETE /api/links/:id.
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	ctx := c.UserContext()
	link, err := h.links.GetManaged(ctx, ident, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if err := h.links.Delete(ctx, link.ID); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LinkQRCode handles GET /api/links/:id/qr and returns a PNG of the short URL.
func (h *APIHandler) LinkQRCode(c *fiber.Ctx) error {
	ident, _ := middleware.IdentityFrom(c)

	link, err := h.links.GetManaged(c.UserContext(), ident, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	size := c.QueryInt("size", defaultQRSize)
	if size < minQRSize {
		size = minQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(h.toResponse(link).ShortURL, qrcode.Medium, size)
	if err != nil {
		h.logger.Error("failed to encode qr code", zap.String("id", link.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to render qr code"})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(png)
}
