// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores provider results per (term, provider) with a
// provider-specific TTL and a grace period during which expired entries
// are still served while one background refresh runs.
//
// The Cache is the only state shared between concurrent lookups. Stores
// must be safe for concurrent use and must not hold a lock across keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/termsource/pkg/types"
)

// ErrCorrupt marks an entry whose header or payload cannot be read.
var ErrCorrupt = errors.New("cache entry corrupt")

// State is the freshness of a cache lookup.
type State int

const (
	// Miss means no usable entry: absent, past its grace period, or corrupt.
	Miss State = iota
	// Fresh means the entry is within its TTL.
	Fresh
	// Stale means the TTL has passed but the grace period has not.
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Key identifies an entry. Term is always normalized.
type Key struct {
	Term     string
	Provider string
}

// NewKey normalizes term and builds a Key.
func NewKey(term, provider string) Key {
	return Key{Term: NormalizeTerm(term), Provider: provider}
}

// NormalizeTerm lowercases, NFC-normalizes and collapses whitespace so
// "Onherroepelijk " and "onherroepelijk" share an entry.
func NormalizeTerm(term string) string {
	return norm.NFC.String(strings.Join(strings.Fields(strings.ToLower(term)), " "))
}

// Header is the part of an entry needed to decide freshness. Stores keep
// it apart from the payload so expiry checks never decode results.
type Header struct {
	InsertedAt time.Time
	TTL        time.Duration
	Grace      time.Duration
}

// State classifies the entry at time now.
func (h Header) State(now time.Time) State {
	age := now.Sub(h.InsertedAt)
	switch {
	case age < h.TTL:
		return Fresh
	case age < h.TTL+h.Grace:
		return Stale
	default:
		return Miss
	}
}

// Entry is a stored value: the serialized []types.RawResult plus header.
type Entry struct {
	Key
	Header
	Payload []byte
}

// Store is the persisted key-value layout behind the Cache.
type Store interface {
	// Header returns only the freshness fields of an entry.
	Header(ctx context.Context, key Key) (Header, bool, error)
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key Key) error
	// DeleteIfUnchanged removes the entry only while its InsertedAt still
	// equals insertedAt, so an entry rewritten since it was read survives.
	DeleteIfUnchanged(ctx context.Context, key Key, insertedAt time.Time) (bool, error)
	// DeleteTerm removes the entries of every provider for a normalized term.
	DeleteTerm(ctx context.Context, term string) (int, error)
	// DeleteAll empties the store.
	DeleteAll(ctx context.Context) error
	Close() error
}

// Cache adds TTL/grace semantics and the refresh guard to a Store.
type Cache struct {
	store  Store
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger

	// refreshing holds the keys with a background refresh in flight.
	refreshing sync.Map
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for corrupt-entry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New wraps store. grace is applied to every entry written.
func New(store Store, grace time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		grace:  grace,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached results for (term, provider) and their state.
// Entries past their grace period and corrupt entries are evicted and
// reported as Miss. An error means the store itself failed.
func (c *Cache) Get(ctx context.Context, term, provider string) ([]types.RawResult, State, error) {
	key := NewKey(term, provider)

	h, ok, err := c.store.Header(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			c.evictCorrupt(ctx, key, err)
			return nil, Miss, nil
		}
		return nil, Miss, fmt.Errorf("reading cache header: %w", err)
	}
	if !ok {
		return nil, Miss, nil
	}

	state := h.State(c.now())
	if state == Miss {
		if _, err := c.store.DeleteIfUnchanged(ctx, key, h.InsertedAt); err != nil {
			return nil, Miss, fmt.Errorf("evicting expired entry: %w", err)
		}
		return nil, Miss, nil
	}

	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			c.evictCorrupt(ctx, key, err)
			return nil, Miss, nil
		}
		return nil, Miss, fmt.Errorf("reading cache entry: %w", err)
	}
	if !ok {
		return nil, Miss, nil
	}

	var results []types.RawResult
	if err := json.Unmarshal(entry.Payload, &results); err != nil {
		c.evictCorrupt(ctx, key, fmt.Errorf("%w: %v", ErrCorrupt, err))
		return nil, Miss, nil
	}
	return results, state, nil
}

// Put stores results for (term, provider) with the given TTL.
func (c *Cache) Put(ctx context.Context, term, provider string, results []types.RawResult, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if results == nil {
		results = []types.RawResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return c.store.Put(ctx, Entry{
		Key:     NewKey(term, provider),
		Header:  Header{InsertedAt: c.now(), TTL: ttl, Grace: c.grace},
		Payload: payload,
	})
}

// Invalidate removes the entries of every provider for term.
func (c *Cache) Invalidate(ctx context.Context, term string) (int, error) {
	return c.store.DeleteTerm(ctx, NormalizeTerm(term))
}

// Purge removes every entry.
func (c *Cache) Purge(ctx context.Context) error {
	return c.store.DeleteAll(ctx)
}

// TryBeginRefresh claims the refresh slot for key. It returns false when
// another refresh for the same key is already running.
func (c *Cache) TryBeginRefresh(key Key) bool {
	_, loaded := c.refreshing.LoadOrStore(key, struct{}{})
	return !loaded
}

// EndRefresh releases the slot claimed by TryBeginRefresh.
func (c *Cache) EndRefresh(key Key) {
	c.refreshing.Delete(key)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) evictCorrupt(ctx context.Context, key Key, cause error) {
	c.logger.Warn("cache_corrupt",
		slog.String("term", key.Term),
		slog.String("provider", key.Provider),
		slog.String("error", cause.Error()))
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("cache_evict_failed",
			slog.String("term", key.Term),
			slog.String("provider", key.Provider),
			slog.String("error", err.Error()))
	}
}
