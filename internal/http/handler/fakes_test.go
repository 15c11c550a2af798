package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	"github.com/stretchr/testify/require"
)

var testJWTSecret = []byte("jwt-secret")

// mockLinkStore is a LinkStore whose behaviour is set per test through the
// *Fn fields. Unset functions answer NotFound or succeed trivially.
type mockLinkStore struct {
	getFn         func(ctx context.Context, slug string) (*model.ShortLink, error)
	getManagedFn  func(ctx context.Context, ident model.Identity, id string) (*model.ShortLink, error)
	createFn      func(ctx context.Context, input service.CreateLinkInput) (*model.ShortLink, error)
	updateFn      func(ctx context.Context, id string, input service.UpdateLinkInput) (*model.ShortLink, error)
	deleteFn      func(ctx context.Context, id string) error
	listByOwnerFn func(ctx context.Context, owner string) ([]model.ShortLink, error)
	listRecentFn  func(ctx context.Context, owner string, limit int) ([]model.ShortLink, error)
}

func notFound() error {
	return &service.Error{Kind: service.KindNotFound, Op: "test"}
}

func (m *mockLinkStore) Get(ctx context.Context, slug string) (*model.ShortLink, error) {
	if m.getFn != nil {
		return m.getFn(ctx, slug)
	}
	return nil, notFound()
}

func (m *mockLinkStore) GetByID(ctx context.Context, id string) (*model.ShortLink, error) {
	return m.GetManaged(ctx, model.Identity{}, id)
}

func (m *mockLinkStore) GetManaged(ctx context.Context, ident model.Identity, id string) (*model.ShortLink, error) {
	if m.getManagedFn != nil {
		return m.getManagedFn(ctx, ident, id)
	}
	return nil, notFound()
}

func (m *mockLinkStore) Create(ctx context.Context, input service.CreateLinkInput) (*model.ShortLink, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return &model.ShortLink{ID: "new-id", Slug: input.Slug, URL: input.URL, Owner: input.Owner, Warning: input.Warning}, nil
}

func (m *mockLinkStore) Update(ctx context.Context, id string, input service.UpdateLinkInput) (*model.ShortLink, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return &model.ShortLink{ID: id, Slug: input.Slug, URL: input.URL, Owner: input.Owner, Warning: input.Warning}, nil
}

func (m *mockLinkStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockLinkStore) ListByOwner(ctx context.Context, owner string) ([]model.ShortLink, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, owner)
	}
	return []model.ShortLink{}, nil
}

func (m *mockLinkStore) ListRecent(ctx context.Context, owner string, limit int) ([]model.ShortLink, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, owner, limit)
	}
	return []model.ShortLink{}, nil
}

func (m *mockLinkStore) CanManage(ident model.Identity, link *model.ShortLink) bool {
	return link != nil && ident.Username == link.Owner
}

// ownedBy answers GetManaged like the real store for a fixed set of links.
func ownedBy(links ...model.ShortLink) func(context.Context, model.Identity, string) (*model.ShortLink, error) {
	return func(_ context.Context, ident model.Identity, id string) (*model.ShortLink, error) {
		for _, l := range links {
			if l.ID != id {
				continue
			}
			if l.Owner != ident.Username && !ident.Has("admin") {
				return nil, &service.Error{Kind: service.KindForbidden, Op: "test"}
			}
			found := l
			return &found, nil
		}
		return nil, notFound()
	}
}

type recordingSink struct {
	mu     sync.Mutex
	clicks []model.ClickMessage
}

func (r *recordingSink) Submit(click model.ClickMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, click)
}

func (r *recordingSink) submitted() []model.ClickMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ClickMessage(nil), r.clicks...)
}

type mockAnalytics struct {
	mu     sync.Mutex
	scopes []model.Scope
	opts   []service.DashboardOptions
	stats  model.DashboardStats
}

func (m *mockAnalytics) Dashboard(_ context.Context, scope model.Scope, opts service.DashboardOptions) model.DashboardStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
	m.opts = append(m.opts, opts)
	return m.stats
}

// newAPIApp mounts the API and dashboard routes behind the identity middleware.
func newAPIApp(links service.LinkStore, analytics Analytics) *fiber.App {
	app := fiber.New()
	api := app.Group("/api", middleware.Identity(testJWTSecret, nil))
	NewAPIHandler(APIDeps{
		Links:           links,
		BaseURL:         "https://lp.example/",
		AdminPermission: "admin",
	}).Register(api)
	NewStatsHandler(StatsDeps{
		Links:           links,
		Analytics:       analytics,
		Options:         service.DashboardOptions{TrendDays: 7, TopLimit: 5, ReferrerLimit: 5},
		AdminPermission: "admin",
	}).Register(api)
	return app
}

func authedRequest(t *testing.T, method, target, body string, ident model.Identity) *http.Request {
	t.Helper()
	token, err := middleware.IssueIdentityToken(testJWTSecret, ident, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}
