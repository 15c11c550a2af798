package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sifan077/LinkPulse/internal/app/cache"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
)

// LinkStore resolves slugs through the slug cache and owns every mutation
// of short links, invalidating the cache as it goes.
type LinkStore interface {
	Get(ctx context.Context, slug string) (*model.ShortLink, error)
	GetByID(ctx context.Context, id string) (*model.ShortLink, error)
	// GetManaged loads a link and checks that ident may modify it.
	GetManaged(ctx context.Context, ident model.Identity, id string) (*model.ShortLink, error)
	Create(ctx context.Context, input CreateLinkInput) (*model.ShortLink, error)
	Update(ctx context.Context, id string, input UpdateLinkInput) (*model.ShortLink, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, owner string) ([]model.ShortLink, error)
	ListRecent(ctx context.Context, owner string, limit int) ([]model.ShortLink, error)
	CanManage(ident model.Identity, link *model.ShortLink) bool
}

// IDGenerator issues identifiers for new links.
type IDGenerator interface {
	Generate() (string, error)
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	Slug    string
	URL     string
	Owner   string
	Warning bool
}

// UpdateLinkInput replaces every mutable field of a link.
type UpdateLinkInput struct {
	Slug    string
	URL     string
	Owner   string
	Warning bool
}

// LinkStoreDeps groups the collaborators of the link store.
type LinkStoreDeps struct {
	Repo            repository.LinkRepository
	Cache           *cache.SlugCache
	IDs             IDGenerator
	Logger          *zap.Logger
	AdminPermission string
}

type linkStore struct {
	repo  repository.LinkRepository
	cache *cache.SlugCache
	ids   IDGenerator
	log   *zap.Logger
	admin string
}

// NewLinkStore returns a LinkStore. A nil cache gets a fresh empty one.
func NewLinkStore(deps LinkStoreDeps) LinkStore {
	s := &linkStore{
		repo:  deps.Repo,
		cache: deps.Cache,
		ids:   deps.IDs,
		log:   deps.Logger,
		admin: deps.AdminPermission,
	}
	if s.cache == nil {
		s.cache = cache.New()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Paths served by the server itself. Routing ignores case, so the check does too.
var reservedSlugs = map[string]bool{
	"api":     true,
	"health":  true,
	"metrics": true,
}

// ReservedSlug reports whether slug collides with a route of the server.
func ReservedSlug(slug string) bool {
	return reservedSlugs[strings.ToLower(slug)]
}

// ValidSlug reports whether slug uses only letters, digits, hyphen and
// underscore and is not reserved.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug) && !ReservedSlug(slug)
}

// ValidTargetURL reports whether raw is an absolute http or https URL.
func ValidTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateLink(op, slug, target string) error {
	if ReservedSlug(slug) {
		return newError(KindInvalid, op, fmt.Errorf("slug %q is reserved", slug))
	}
	if !ValidSlug(slug) {
		return newError(KindInvalid, op, fmt.Errorf("slug %q must match %s", slug, slugPattern))
	}
	if !ValidTargetURL(target) {
		return newError(KindInvalid, op, fmt.Errorf("url %q must be an absolute http(s) URL", target))
	}
	return nil
}

func ownerOrUnset(owner string) string {
	if owner == "" {
		return model.UnsetOwner
	}
	return owner
}

func (s *linkStore) Get(ctx context.Context, slug string) (*model.ShortLink, error) {
	const op = "get link"

	if !ValidSlug(slug) {
		return nil, newError(KindNotFound, op, nil)
	}

	link, res := s.cache.Lookup(slug)
	switch res {
	case cache.Hit:
		return &link, nil
	case cache.KnownMissing:
		return nil, newError(KindNotFound, op, nil)
	}

	epoch := s.cache.Epoch()
	stored, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			s.cache.Fill(slug, nil, epoch)
			return nil, newError(KindNotFound, op, nil)
		}
		s.log.Warn("link lookup failed", zap.String("slug", slug), zap.Error(err))
		return nil, fromRepository(op, err)
	}

	s.cache.Fill(slug, stored, epoch)
	return stored, nil
}

func (s *linkStore) GetByID(ctx context.Context, id string) (*model.ShortLink, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository("get link by id", err)
	}
	return link, nil
}

func (s *linkStore) GetManaged(ctx context.Context, ident model.Identity, id string) (*model.ShortLink, error) {
	link, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.CanManage(ident, link) {
		return nil, newError(KindForbidden, "manage link", fmt.Errorf("%q does not own link %s", ident.Username, id))
	}
	return link, nil
}

func (s *linkStore) Create(ctx context.Context, input CreateLinkInput) (*model.ShortLink, error) {
	const op = "create link"

	if err := validateLink(op, input.Slug, input.URL); err != nil {
		return nil, err
	}

	// Goes through the cache-aware read path so a stale negative entry
	// cannot hide an existing row.
	if _, err := s.Get(ctx, input.Slug); err == nil {
		return nil, newError(KindAlreadyExists, op, fmt.Errorf("slug %q", input.Slug))
	} else if KindOf(err) != KindNotFound {
		return nil, err
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("%s: generate id: %w", op, err)
	}

	link := &model.ShortLink{
		ID:      id,
		Slug:    input.Slug,
		URL:     input.URL,
		Owner:   ownerOrUnset(input.Owner),
		Warning: input.Warning,
	}

	if err := s.repo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugTaken) {
			// Another writer won the race; forget what we believed about the slug.
			s.cache.Evict(input.Slug)
		}
		return nil, fromRepository(op, err)
	}

	s.cache.Put(*link)
	s.log.Info("link created",
		zap.String("id", link.ID),
		zap.String("slug", link.Slug),
		zap.String("owner", link.Owner),
	)
	return link, nil
}

func (s *linkStore) Update(ctx context.Context, id string, input UpdateLinkInput) (*model.ShortLink, error) {
	const op = "update link"

	if err := validateLink(op, input.Slug, input.URL); err != nil {
		return nil, err
	}

	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(op, err)
	}

	updated := *prev
	updated.Slug = input.Slug
	updated.URL = input.URL
	updated.Owner = ownerOrUnset(input.Owner)
	updated.Warning = input.Warning

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			s.cache.Evict(prev.Slug)
		}
		return nil, fromRepository(op, err)
	}

	s.cache.Evict(prev.Slug, updated.Slug)
	s.cache.Put(updated)

	s.log.Info("link updated",
		zap.String("id", id),
		zap.String("old_slug", prev.Slug),
		zap.String("slug", updated.Slug),
	)
	return &updated, nil
}

func (s *linkStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fromRepository("delete link", err)
	}

	s.cache.Evict(deleted.Slug)
	s.log.Info("link deleted", zap.String("id", id), zap.String("slug", deleted.Slug))
	return nil
}

func (s *linkStore) ListByOwner(ctx context.Context, owner string) ([]model.ShortLink, error) {
	links, err := s.repo.ListByOwner(ctx, owner, 0)
	if err != nil {
		return nil, fromRepository("list links", err)
	}
	return links, nil
}

func (s *linkStore) ListRecent(ctx context.Context, owner string, limit int) ([]model.ShortLink, error) {
	if limit <= 0 {
		return []model.ShortLink{}, nil
	}
	links, err := s.repo.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, fromRepository("list recent links", err)
	}
	return links, nil
}

// CanManage reports whether ident owns link or holds the admin permission.
func (s *linkStore) CanManage(ident model.Identity, link *model.ShortLink) bool {
	if link == nil {
		return false
	}
	if s.admin != "" && ident.Has(s.admin) {
		return true
	}
	return ident.Username != "" && ident.Username == link.Owner
}
