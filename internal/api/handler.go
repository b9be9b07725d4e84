// Package api implements the HTTP surface of the collector service.
//
// Routes:
//
//	GET  /health                                  → liveness
//	GET  /metrics                                 → Prometheus exposition
//	GET  /collectors/rss/health                   → collector liveness
//	POST /collectors/rss/collect                  → fetch + normalise, no store
//	POST /collectors/rss/collect-and-store        → fetch + normalise + dedup insert
//	POST /collectors/rss/collect-from             → queue a background collect-and-store
//	GET  /collectors/{greenhouse,lever}/health    → collector liveness
//	POST /collectors/greenhouse/collect-and-store → board API ingest
//	POST /collectors/lever/collect-and-store      → postings API ingest
//	POST /collectors/generic/extract              → JSON-LD JobPosting extraction
//	POST /collectors/generic/extract-and-store    → extraction + dedup insert
//	POST /collectors/resolve                      → guess the ATS behind a careers page
//	GET  /jobs                                    → list stored postings
//	GET  /jobs/stats                              → per-source aggregates
//
// Mutating routes require X-API-Key when an API key is configured.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobagent/collector-service/internal/model"
)

// ─── Dependencies ─────────────────────────────────────────────────────────────

// Collector runs feed collections. *scraper.Worker satisfies it.
type Collector interface {
	Collect(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error)
	Run(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error)
	StoreRecords(ctx context.Context, url, source string, items []model.JobRecord) (*model.CollectResult, error)
}

// BoardSource is an applicant-tracking-system API keyed by a board
// identifier (Greenhouse board token, Lever company slug).
type BoardSource interface {
	Collect(ctx context.Context, id, companyName string) ([]model.JobRecord, error)
	SourceURL(id string) string
}

// PostingExtractor pulls structured postings out of an HTML page.
type PostingExtractor interface {
	Extract(ctx context.Context, pageURL string) ([]model.JobRecord, error)
}

// PlatformResolver classifies a careers page.
type PlatformResolver interface {
	Detect(ctx context.Context, domainOrURL string) string
}

// JobQuerier reads the jobs table.
type JobQuerier interface {
	List(ctx context.Context, f model.ListFilter) ([]model.Job, error)
	Stats(ctx context.Context) ([]model.SourceStats, error)
}

// Deps wires the handler. Extractor may be nil when structured extraction
// is disabled.
type Deps struct {
	Collector  Collector
	Greenhouse BoardSource
	Lever      BoardSource
	Extractor  PostingExtractor
	Resolver   PlatformResolver
	Jobs       JobQuerier
	Background *Background
	APIKey     string
	Version    string
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

// NewServer builds an echo instance with every route mounted.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = h.httpError
	e.Use(h.requestLogger)
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes mounts all collector-service routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	key := h.requireAPIKey()

	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	rss := e.Group("/collectors/rss")
	rss.GET("/health", sourceHealth(model.SourceRSS))
	rss.POST("/collect", h.collect)
	rss.POST("/collect-and-store", h.collectAndStore, key)
	rss.POST("/collect-from", h.collectFrom, key)

	gh := e.Group("/collectors/greenhouse")
	gh.GET("/health", sourceHealth(model.SourceGreenhouse))
	gh.POST("/collect-and-store", h.greenhouseCollectAndStore, key)

	lv := e.Group("/collectors/lever")
	lv.GET("/health", sourceHealth(model.SourceLever))
	lv.POST("/collect-and-store", h.leverCollectAndStore, key)

	gen := e.Group("/collectors/generic")
	gen.POST("/extract", h.extract)
	gen.POST("/extract-and-store", h.extractAndStore, key)

	e.POST("/collectors/resolve", h.resolve)

	e.GET("/jobs", h.listJobs)
	e.GET("/jobs/stats", h.jobStats)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":      true,
		"service": "collector-service",
		"version": h.deps.Version,
	})
}

func sourceHealth(source string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "source": source})
	}
}
