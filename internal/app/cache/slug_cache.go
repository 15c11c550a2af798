// Package cache holds the process-local slug cache that fronts the link store.
//
// The cache has two sides: a positive side mapping a slug to a link confirmed to
// exist, and a negative side holding slugs confirmed to be absent. A slug is on
// at most one side at any instant. Every mutation goes through one of Fill, Put
// or Evict, all serialised by a single mutex.
//
// Reads that miss both sides go to storage and report the outcome with Fill. A
// write (Put or Evict) bumps an epoch; a Fill carrying an older epoch is
// dropped, because the storage read it reports may predate that write.
package cache

import (
	"strings"
	"sync"

	"github.com/sifan077/LinkPulse/internal/app/model"
)

// Result classifies a cache lookup.
type Result int

const (
	// Miss means neither side knows the slug.
	Miss Result = iota
	// Hit means the slug resolved from the positive side.
	Hit
	// KnownMissing means the slug is on the negative side.
	KnownMissing
)

func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case KnownMissing:
		return "negative_hit"
	default:
		return "miss"
	}
}

// Observer receives one call per lookup.
type Observer interface {
	ObserveLookup(Result)
}

const defaultMaxNegative = 100_000

// SlugCache is safe for concurrent use.
type SlugCache struct {
	mu          sync.Mutex
	positive    map[string]model.ShortLink
	negative    map[string]struct{}
	epoch       uint64
	maxNegative int
	observer    Observer
}

type Option func(*SlugCache)

// WithMaxNegative bounds the negative side. When full it is dropped wholesale.
func WithMaxNegative(n int) Option {
	return func(c *SlugCache) {
		if n > 0 {
			c.maxNegative = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *SlugCache) {
		c.observer = o
	}
}

// New returns an empty cache.
func New(opts ...Option) *SlugCache {
	c := &SlugCache{
		positive:    make(map[string]model.ShortLink),
		negative:    make(map[string]struct{}),
		maxNegative: defaultMaxNegative,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns a copy of the cached link on Hit.
func (c *SlugCache) Lookup(slug string) (model.ShortLink, Result) {
	c.mu.Lock()
	link, result := c.lookupLocked(slug)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveLookup(result)
	}
	return link, result
}

func (c *SlugCache) lookupLocked(slug string) (model.ShortLink, Result) {
	if link, ok := c.positive[slug]; ok {
		return link, Hit
	}
	if _, ok := c.negative[slug]; ok {
		return model.ShortLink{}, KnownMissing
	}
	return model.ShortLink{}, Miss
}

// Epoch returns the current write epoch. Take it before reading storage.
func (c *SlugCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Fill records the outcome of a storage read for slug: a nil link marks the
// slug missing. It reports whether the outcome was installed.
func (c *SlugCache) Fill(slug string, link *model.ShortLink, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}
	if link == nil {
		c.markMissingLocked(slug)
		return true
	}
	c.markPresentLocked(slug, *link)
	return true
}

// Put installs link under its slug after a successful write.
func (c *SlugCache) Put(link model.ShortLink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.markPresentLocked(link.Slug, link)
}

// Evict forgets every given slug on both sides.
func (c *SlugCache) Evict(slugs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, slug := range slugs {
		delete(c.positive, slug)
		delete(c.negative, slug)
	}
}

// Len reports the size of each side.
func (c *SlugCache) Len() (positive, negative int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positive), len(c.negative)
}

// Reset empties both sides.
func (c *SlugCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.positive = make(map[string]model.ShortLink)
	c.negative = make(map[string]struct{})
}

// Keys are cloned: callers may hand in strings that alias a reused request buffer.
func (c *SlugCache) markPresentLocked(slug string, link model.ShortLink) {
	delete(c.negative, slug)
	c.positive[strings.Clone(slug)] = link
}

func (c *SlugCache) markMissingLocked(slug string) {
	delete(c.positive, slug)
	if len(c.negative) >= c.maxNegative {
		c.negative = make(map[string]struct{})
	}
	c.negative[strings.Clone(slug)] = struct{}{}
}
