// Package idgen issues opaque identifiers for short links.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// Length of every generated identifier.
	Length = 64

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// Bytes >= maxByte are rejected so each symbol is drawn uniformly.
	maxByte = 256 - (256 % len(alphabet))

	defaultCapacity      = 1_000_000
	defaultFalsePositive = 1e-6
	maxAttempts          = 8
)

// layer is one bloom filter of the issued-id set, sized for capacity ids.
type layer struct {
	filter   *bloom.BloomFilter
	capacity uint
	count    uint
}

func newLayer(capacity uint) *layer {
	return &layer{
		filter:   bloom.NewWithEstimates(capacity, defaultFalsePositive),
		capacity: capacity,
	}
}

// Generator produces random alphanumeric identifiers and remembers the ones it
// has issued, so an id freed by a deletion is not handed out again.
//
// The issued set grows by appending a filter of twice the previous capacity
// whenever the newest one is full, which keeps the false positive rate
// bounded however many links exist.
type Generator struct {
	mu       sync.Mutex
	capacity uint
	layers   []*layer
	random   io.Reader
}

// Option customises a Generator.
type Option func(*Generator)

// WithCapacity sizes the first issued-id filter for n identifiers.
func WithCapacity(n uint) Option {
	return func(g *Generator) {
		g.capacity = max(n, 1)
	}
}

// WithRandom replaces the entropy source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// New returns a Generator backed by crypto/rand.
func New(opts ...Option) *Generator {
	g := &Generator{
		capacity: defaultCapacity,
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seed records identifiers that already exist in storage. A batch larger than
// the free room gets a filter sized for twice its length.
func (g *Generator) Seed(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := uint(len(ids)); n > g.room() {
		g.grow(2 * n)
	}
	for _, id := range ids {
		g.addLocked(id)
	}
}

// Generate returns a fresh identifier of Length characters.
//
// A candidate the filter reports as seen is redrawn. After maxAttempts
// positives the last candidate is returned anyway: at this length a real
// collision is far less likely than a false positive, and the primary key
// of the links table has the final word.
func (g *Generator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var err error
		id, err = g.candidate()
		if err != nil {
			return "", err
		}
		if !g.seenLocked(id) {
			break
		}
	}
	g.addLocked(id)
	return id, nil
}

func (g *Generator) seenLocked(id string) bool {
	for _, l := range g.layers {
		if l.filter.TestString(id) {
			return true
		}
	}
	return false
}

func (g *Generator) addLocked(id string) {
	if g.room() == 0 {
		g.grow(0)
	}
	last := g.layers[len(g.layers)-1]
	last.filter.AddString(id)
	last.count++
}

// room is how many more ids the newest layer takes at its target rate.
func (g *Generator) room() uint {
	if len(g.layers) == 0 {
		return 0
	}
	last := g.layers[len(g.layers)-1]
	return last.capacity - last.count
}

// grow appends a layer holding at least atLeast ids.
func (g *Generator) grow(atLeast uint) {
	capacity := g.capacity
	if n := len(g.layers); n > 0 {
		capacity = 2 * g.layers[n-1].capacity
	}
	g.layers = append(g.layers, newLayer(max(capacity, atLeast)))
}

func (g *Generator) candidate() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(out) < Length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("idgen: read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}
