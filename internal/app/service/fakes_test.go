package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
)

// memLinkRepository is an in-memory LinkRepository. The *Fn fields override
// the default behaviour of the matching method when set.
type memLinkRepository struct {
	mu    sync.Mutex
	byID  map[string]model.ShortLink
	clock time.Time

	getBySlugCalls int

	createFn    func(ctx context.Context, link *model.ShortLink) error
	getBySlugFn func(ctx context.Context, slug string) (*model.ShortLink, error)
	updateFn    func(ctx context.Context, link *model.ShortLink) error
}

func newMemLinkRepository() *memLinkRepository {
	return &memLinkRepository{
		byID:  make(map[string]model.ShortLink),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memLinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[link.ID]; ok {
		return repository.ErrSlugTaken
	}
	for _, l := range m.byID {
		if l.Slug == link.Slug {
			return repository.ErrSlugTaken
		}
	}
	m.clock = m.clock.Add(time.Second)
	link.CreatedAt = m.clock
	m.byID[link.ID] = *link
	return nil
}

func (m *memLinkRepository) GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	m.mu.Lock()
	m.getBySlugCalls++
	m.mu.Unlock()

	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byID {
		if l.Slug == slug {
			found := l
			return &found, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (m *memLinkRepository) GetByID(_ context.Context, id string) (*model.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	return &l, nil
}

func (m *memLinkRepository) ListByOwner(_ context.Context, owner string, limit int) ([]model.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]model.ShortLink, 0)
	for _, l := range m.byID {
		if l.Owner == owner {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memLinkRepository) ListIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLinkRepository) Update(ctx context.Context, link *model.ShortLink) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, link)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[link.ID]; !ok {
		return repository.ErrLinkNotFound
	}
	for id, l := range m.byID {
		if id != link.ID && l.Slug == link.Slug {
			return repository.ErrSlugTaken
		}
	}
	m.byID[link.ID] = *link
	return nil
}

func (m *memLinkRepository) Delete(_ context.Context, id string) (*model.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	delete(m.byID, id)
	return &l, nil
}

func (m *memLinkRepository) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBySlugCalls
}

// seqIDs hands out predictable identifiers.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n), nil
}

type mockClickEventRepository struct {
	mu       sync.Mutex
	created  []model.ClickEvent
	createFn func(ctx context.Context, event *model.ClickEvent) error
}

func (m *mockClickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *event)
	return nil
}

func (m *mockClickEventRepository) events() []model.ClickEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ClickEvent(nil), m.created...)
}

type countingClickMetrics struct {
	mu       sync.Mutex
	recorded int
	dropped  map[string]int
}

func (c *countingClickMetrics) ClickRecorded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded++
}

func (c *countingClickMetrics) ClickDropped(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == nil {
		c.dropped = make(map[string]int)
	}
	c.dropped[reason]++
}

type mockAnalyticsRepository struct {
	countLinksFn     func(ctx context.Context, scope model.Scope, since time.Time) (int64, error)
	countClicksFn    func(ctx context.Context, scope model.Scope, since time.Time) (int64, error)
	topLinksFn       func(ctx context.Context, scope model.Scope, limit int) ([]model.LinkClicks, error)
	referrerCountsFn func(ctx context.Context, scope model.Scope, limit int) ([]model.ReferrerStat, error)
	browserCountsFn  func(ctx context.Context, scope model.Scope) ([]model.BrowserStat, error)
	dailyClicksFn    func(ctx context.Context, scope model.Scope, since time.Time) (map[string]int64, error)
}

func (m *mockAnalyticsRepository) CountLinks(ctx context.Context, scope model.Scope, since time.Time) (int64, error) {
	if m.countLinksFn != nil {
		return m.countLinksFn(ctx, scope, since)
	}
	return 0, nil
}

func (m *mockAnalyticsRepository) CountClicks(ctx context.Context, scope model.Scope, since time.Time) (int64, error) {
	if m.countClicksFn != nil {
		return m.countClicksFn(ctx, scope, since)
	}
	return 0, nil
}

func (m *mockAnalyticsRepository) TopLinks(ctx context.Context, scope model.Scope, limit int) ([]model.LinkClicks, error) {
	if m.topLinksFn != nil {
		return m.topLinksFn(ctx, scope, limit)
	}
	return []model.LinkClicks{}, nil
}

func (m *mockAnalyticsRepository) ReferrerCounts(ctx context.Context, scope model.Scope, limit int) ([]model.ReferrerStat, error) {
	if m.referrerCountsFn != nil {
		return m.referrerCountsFn(ctx, scope, limit)
	}
	return []model.ReferrerStat{}, nil
}

func (m *mockAnalyticsRepository) BrowserCounts(ctx context.Context, scope model.Scope) ([]model.BrowserStat, error) {
	if m.browserCountsFn != nil {
		return m.browserCountsFn(ctx, scope)
	}
	return []model.BrowserStat{}, nil
}

func (m *mockAnalyticsRepository) DailyClicks(ctx context.Context, scope model.Scope, since time.Time) (map[string]int64, error) {
	if m.dailyClicksFn != nil {
		return m.dailyClicksFn(ctx, scope, since)
	}
	return map[string]int64{}, nil
}
