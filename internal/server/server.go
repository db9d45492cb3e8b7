// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes lookups over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/termsource/internal/cache"
	"github.com/pdiddy/termsource/internal/lookup"
	"github.com/pdiddy/termsource/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Config wires a Server. Cache and Gatherer may be nil.
type Config struct {
	Pipeline *lookup.Pipeline
	Cache    *cache.Cache
	Profiles map[string]types.ProviderProfile
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the HTTP surface of the lookup pipeline.
type Server struct {
	echo     *echo.Echo
	pipeline *lookup.Pipeline
	cache    *cache.Cache
	profiles map[string]types.ProviderProfile
	logger   *slog.Logger
}

// New builds the echo instance and registers the routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		echo:     echo.New(),
		pipeline: cfg.Pipeline,
		cache:    cfg.Cache,
		profiles: cfg.Profiles,
		logger:   cfg.Logger,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				s.logger.Error("request_failed", append(attrs, slog.String("error", v.Error.Error()))...)
				return nil
			}
			s.logger.Info("request_completed", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealth)
	v1 := e.Group("/v1")
	v1.POST("/lookup", s.handleLookup)
	v1.GET("/providers", s.handleProviders)
	v1.DELETE("/cache/:term", s.handleInvalidate)
	v1.DELETE("/cache", s.handlePurge)

	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server_starting", slog.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// lookupBody is the JSON body of POST /v1/lookup.
type lookupBody struct {
	Term        string   `json:"term"`
	Language    string   `json:"language"`
	ContextTags []string `json:"context_tags"`
	MaxResults  int      `json:"max_results"`
	TimeoutMS   int      `json:"timeout_ms"`
	Providers   []string `json:"providers"`
	TokenBudget int      `json:"token_budget"`
	TopK        int      `json:"top_k"`
}

func (b lookupBody) request() types.LookupRequest {
	return types.LookupRequest{
		Term:        b.Term,
		Language:    b.Language,
		ContextTags: b.ContextTags,
		MaxResults:  b.MaxResults,
		Timeout:     time.Duration(b.TimeoutMS) * time.Millisecond,
		Providers:   b.Providers,
	}
}

func (s *Server) handleLookup(c echo.Context) error {
	var body lookupBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.TokenBudget < 0 || body.TopK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "token_budget and top_k must not be negative")
	}

	req := body.request()
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := s.pipeline.Sources(c.Request().Context(), req, body.TokenBudget, body.TopK)
	if err != nil {
		return mapLookupError(err)
	}
	if out.Sources == nil {
		out.Sources = []types.SelectedSource{}
	}
	return c.JSON(http.StatusOK, out)
}

func mapLookupError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, lookup.ErrNoProviders):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "lookup cancelled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// ProviderView is a provider profile as reported over HTTP.
type ProviderView struct {
	Name          string  `json:"name"`
	Enabled       bool    `json:"enabled"`
	Registered    bool    `json:"registered"`
	Weight        float64 `json:"weight"`
	Timeout       string  `json:"timeout"`
	CacheTTL      string  `json:"cache_ttl"`
	IsLegalSource bool    `json:"is_legal_source"`
}

func (s *Server) handleProviders(c echo.Context) error {
	registered := s.pipeline.Coordinator.Providers()
	views := make([]ProviderView, 0, len(s.profiles))
	for name, p := range s.profiles {
		views = append(views, ProviderView{
			Name:          name,
			Enabled:       p.Enabled,
			Registered:    slices.Contains(registered, name),
			Weight:        p.Weight,
			Timeout:       p.Timeout.String(),
			CacheTTL:      p.CacheTTL.String(),
			IsLegalSource: p.IsLegalSource,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleInvalidate(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotFound, "cache disabled")
	}
	term := cache.NormalizeTerm(c.Param("term"))
	if term == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "term is empty")
	}
	n, err := s.cache.Invalidate(c.Request().Context(), term)
	if err != nil {
		s.logger.Error("cache_invalidate_failed", slog.String("term", term), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "cache error")
	}
	return c.JSON(http.StatusOK, map[string]any{"term": term, "removed": n})
}

func (s *Server) handlePurge(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotFound, "cache disabled")
	}
	if err := s.cache.Purge(c.Request().Context()); err != nil {
		s.logger.Error("cache_purge_failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "cache error")
	}
	return c.NoContent(http.StatusNoContent)
}
