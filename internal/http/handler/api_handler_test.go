package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{Username: "alice"}
	bob   = model.Identity{Username: "bob"}
	admin = model.Identity{Username: "root", Permissions: []string{"admin"}}

	aliceLink = model.ShortLink{ID: "id-1", Slug: "abc", URL: "https://example.com", Owner: "alice"}
)

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestAPI_RequiresIdentity(t *testing.T) {
	app := newAPIApp(&mockLinkStore{}, &mockAnalytics{})
	req := authedRequest(t, fiber.MethodGet, "/api/links", "", alice)
	req.Header.Del(fiber.HeaderAuthorization)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CreateLink(t *testing.T) {
	var got service.CreateLinkInput
	store := &mockLinkStore{
		createFn: func(_ context.Context, in service.CreateLinkInput) (*model.ShortLink, error) {
			got = in
			return &model.ShortLink{ID: "id-7", Slug: in.Slug, URL: in.URL, Owner: in.Owner}, nil
		},
	}
	app := newAPIApp(store, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodPost, "/api/links", `{"slug":"abc","url":"https://example.com"}`, alice))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decode[LinkResponse](t, resp.Body)
	assert.Equal(t, "id-7", body.ID)
	assert.Equal(t, "https://lp.example/abc", body.ShortURL)
	assert.Equal(t, "alice", got.Owner)
	assert.False(t, got.Warning)
}

func TestAPI_CreateLinkValidation(t *testing.T) {
	app := newAPIApp(&mockLinkStore{}, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodPost, "/api/links", `{"slug":"bad slug","url":"javascript:alert(1)"}`, alice))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, resp.Body)
	assert.Equal(t, "slug", body.Fields["slug"])
	assert.Equal(t, "weburl", body.Fields["url"])
}

func TestAPI_CreateLinkReservedSlug(t *testing.T) {
	var reached atomic.Int32
	store := &mockLinkStore{
		createFn: func(context.Context, service.CreateLinkInput) (*model.ShortLink, error) {
			reached.Add(1)
			return nil, errors.New("unexpected create")
		},
	}
	app := newAPIApp(store, &mockAnalytics{})

	for _, slug := range []string{"health", "api", "Metrics"} {
		resp, err := app.Test(authedRequest(t, fiber.MethodPost, "/api/links", `{"slug":"`+slug+`","url":"https://example.com"}`, alice))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, slug)

		body := decode[struct {
			Fields map[string]string `json:"fields"`
		}](t, resp.Body)
		assert.Equal(t, "slug", body.Fields["slug"], slug)
	}
	assert.Zero(t, reached.Load())
}

func TestAPI_CreateLinkConflict(t *testing.T) {
	store := &mockLinkStore{
		createFn: func(context.Context, service.CreateLinkInput) (*model.ShortLink, error) {
			return nil, &service.Error{Kind: service.KindAlreadyExists, Op: "create link"}
		},
	}
	resp, err := newAPIApp(store, &mockAnalytics{}).Test(
		authedRequest(t, fiber.MethodPost, "/api/links", `{"slug":"abc","url":"https://example.com"}`, alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAPI_CreateForSomeoneElse(t *testing.T) {
	app := newAPIApp(&mockLinkStore{}, &mockAnalytics{})
	body := `{"slug":"abc","url":"https://example.com","owner":"carol"}`

	resp, err := app.Test(authedRequest(t, fiber.MethodPost, "/api/links", body, alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(authedRequest(t, fiber.MethodPost, "/api/links", body, admin))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "carol", decode[LinkResponse](t, resp.Body).Owner)
}

func TestAPI_ListLinks(t *testing.T) {
	var asked string
	store := &mockLinkStore{
		listByOwnerFn: func(_ context.Context, owner string) ([]model.ShortLink, error) {
			asked = owner
			return []model.ShortLink{aliceLink}, nil
		},
	}
	app := newAPIApp(store, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodGet, "/api/links", "", alice))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", asked)

	body := decode[struct {
		Count int            `json:"count"`
		Links []LinkResponse `json:"links"`
	}](t, resp.Body)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "abc", body.Links[0].Slug)

	resp, err = app.Test(authedRequest(t, fiber.MethodGet, "/api/links?owner=alice", "", bob))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAPI_GetLinkOwnership(t *testing.T) {
	app := newAPIApp(&mockLinkStore{getManagedFn: ownedBy(aliceLink)}, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodGet, "/api/links/id-1", "", alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest(t, fiber.MethodGet, "/api/links/id-1", "", bob))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(authedRequest(t, fiber.MethodGet, "/api/links/id-1", "", admin))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest(t, fiber.MethodGet, "/api/links/nope", "", alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPI_UpdateLinkMergesFields(t *testing.T) {
	var got service.UpdateLinkInput
	store := &mockLinkStore{
		getManagedFn: ownedBy(aliceLink),
		updateFn: func(_ context.Context, id string, in service.UpdateLinkInput) (*model.ShortLink, error) {
			got = in
			return &model.ShortLink{ID: id, Slug: in.Slug, URL: in.URL, Owner: in.Owner, Warning: in.Warning}, nil
		},
	}
	app := newAPIApp(store, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodPatch, "/api/links/id-1", `{"slug":"renamed","warning":true}`, alice))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, service.UpdateLinkInput{Slug: "renamed", URL: "https://example.com", Owner: "alice", Warning: true}, got)

	resp, err = app.Test(authedRequest(t, fiber.MethodPatch, "/api/links/id-1", `{"owner":"bob"}`, alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(authedRequest(t, fiber.MethodPatch, "/api/links/id-1", `{"url":"ftp://x"}`, alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DeleteLink(t *testing.T) {
	var deleted string
	store := &mockLinkStore{
		getManagedFn: ownedBy(aliceLink),
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	app := newAPIApp(store, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodDelete, "/api/links/id-1", "", bob))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, deleted)

	resp, err = app.Test(authedRequest(t, fiber.MethodDelete, "/api/links/id-1", "", alice))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "id-1", deleted)
}

func TestAPI_LinkQRCode(t *testing.T) {
	app := newAPIApp(&mockLinkStore{getManagedFn: ownedBy(aliceLink)}, &mockAnalytics{})

	resp, err := app.Test(authedRequest(t, fiber.MethodGet, "/api/links/id-1/qr?size=64", "", alice))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))

	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}
