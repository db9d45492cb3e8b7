// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider contains one adapter per external reference source.
// Adapters normalize each source's response into types.RawResult.
//
// RawConfidence is the provider's intrinsic relevance signal only. An
// adapter may apply penalties that describe its own query precision (the
// looser fallback query multiplies by fallbackPenalty) but never the
// provider's authority weight, which belongs to the ranking stage.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// Adapter queries a single external source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error)
}

// fallbackPenalty marks results of a looser query variant.
const fallbackPenalty = 0.95

const defaultMaxResults = 10

// Options carries the dependencies shared by all adapters.
type Options struct {
	Client    *http.Client
	Sanitizer *Sanitizer
	UserAgent string
	// Secrets maps secret names (e.g. "brave-api-key") to values.
	Secrets map[string]string
	Logger  *slog.Logger
	// Now stamps FetchedAt. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Sanitizer == nil {
		o.Sanitizer = NewSanitizer(types.SanitizeConfig{})
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// base holds what every adapter needs to issue a request and build results.
type base struct {
	name      string
	profile   types.ProviderProfile
	client    *http.Client
	sanitizer *Sanitizer
	userAgent string
	limiter   *rate.Limiter
	now       func() time.Time
}

func newBase(name string, profile types.ProviderProfile, opts Options) base {
	opts = opts.withDefaults()
	return base{
		name:      name,
		profile:   profile,
		client:    opts.Client,
		sanitizer: opts.Sanitizer,
		userAgent: opts.UserAgent,
		limiter:   httputil.NewLimiter(profile.RatePerSecond),
		now:       opts.Now,
	}
}

func (b *base) Name() string { return b.name }

// get performs a GET and classifies any failure.
func (b *base) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	if header == nil {
		header = http.Header{}
	}
	if b.userAgent != "" {
		header.Set("User-Agent", b.userAgent)
	}
	resp, err := httputil.Get(ctx, b.client, b.limiter, rawURL, header)
	if err != nil {
		return nil, Classify(b.name, err)
	}
	return resp, nil
}

func (b *base) endpoint(fallback string) string {
	if b.profile.BaseURL != "" {
		return b.profile.BaseURL
	}
	return fallback
}

func (b *base) language(req types.LookupRequest) string {
	if req.Language != "" {
		return req.Language
	}
	if b.profile.Language != "" {
		return b.profile.Language
	}
	return "nl"
}

// result builds a sanitized RawResult. It returns false when the URL is
// unsafe or the result carries no text.
func (b *base) result(term, rawURL, title, snippet string, confidence float64) (types.RawResult, bool) {
	u, ok := b.sanitizer.URL(rawURL)
	if !ok {
		return types.RawResult{}, false
	}
	r := types.RawResult{
		Term:          term,
		Provider:      b.name,
		URL:           u,
		Title:         b.sanitizer.Text(title),
		Snippet:       b.sanitizer.Snippet(snippet),
		RawConfidence: clamp01(confidence),
		FetchedAt:     b.now(),
		Status:        types.StatusOK,
	}
	if r.Title == "" && r.Snippet == "" {
		return types.RawResult{}, false
	}
	return r, true
}

func maxResults(req types.LookupRequest) int {
	if req.MaxResults > 0 {
		return req.MaxResults
	}
	return defaultMaxResults
}

// positionScore maps a result's rank in the provider's own relevance
// order into [0.1, 1.0].
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// titleMatch scores how closely title matches the looked-up term.
func titleMatch(term, title string) float64 {
	t := foldText(term)
	h := foldText(title)
	switch {
	case t == "" || h == "":
		return 0.75
	case t == h:
		return 1.0
	case strings.Contains(h, t):
		return 0.9
	default:
		return 0.75
	}
}

func foldText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// Registry holds the adapters built from configuration.
type Registry struct {
	adapters map[string]Adapter
}

type constructor func(profile types.ProviderProfile, opts Options) (Adapter, error)

var constructors = map[string]constructor{
	WikipediaName:   func(p types.ProviderProfile, o Options) (Adapter, error) { return NewWikipedia(p, o), nil },
	WiktionaryName:  func(p types.ProviderProfile, o Options) (Adapter, error) { return NewWiktionary(p, o), nil },
	OverheidName:    func(p types.ProviderProfile, o Options) (Adapter, error) { return NewOverheid(p, o), nil },
	RechtspraakName: func(p types.ProviderProfile, o Options) (Adapter, error) { return NewRechtspraak(p, o), nil },
	BraveName:       newBraveFromSecrets,
}

// NewRegistry builds an adapter for every enabled profile. A profile
// naming an unknown provider is a configuration error. Keyed providers
// without credentials are skipped with a warning.
func NewRegistry(profiles map[string]types.ProviderProfile, opts Options) (*Registry, error) {
	opts = opts.withDefaults()
	r := &Registry{adapters: make(map[string]Adapter)}
	for name, p := range profiles {
		if !p.Enabled {
			continue
		}
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		if p.Name == "" {
			p.Name = name
		}
		a, err := ctor(p, opts)
		if err != nil {
			opts.Logger.Warn("provider_skipped",
				slog.String("provider", name),
				slog.String("error", err.Error()))
			continue
		}
		r.adapters[name] = a
	}
	return r, nil
}

// NewRegistryFrom wraps already-built adapters.
func NewRegistryFrom(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
