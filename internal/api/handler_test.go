package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobagent/collector-service/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeCollector struct {
	mu       sync.Mutex
	requests []model.CollectRequest
	stored   map[string][]model.JobRecord
	items    []model.JobRecord
	err      error
	storeErr error
	ran      chan model.CollectRequest
}

func (f *fakeCollector) record(req model.CollectRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeCollector) Collect(_ context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.CollectResult{Summary: model.FetchSummary{URL: req.URL, Fetched: len(f.items)}, Items: f.items}, nil
}

func (f *fakeCollector) Run(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	res, err := f.Collect(ctx, req)
	if f.ran != nil {
		f.ran <- req
	}
	if err != nil {
		return nil, err
	}
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	res.Summary.Inserted = len(res.Items)
	return res, nil
}

func (f *fakeCollector) StoreRecords(_ context.Context, url, source string, items []model.JobRecord) (*model.CollectResult, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string][]model.JobRecord{}
	}
	f.stored[source] = append(f.stored[source], items...)
	return &model.CollectResult{
		Summary: model.FetchSummary{URL: url, Fetched: len(items), Inserted: len(items)},
		Items:   items,
	}, nil
}

type fakeBoard struct {
	gotID, gotCompany string
	items             []model.JobRecord
	err               error
}

func (f *fakeBoard) Collect(_ context.Context, id, company string) ([]model.JobRecord, error) {
	f.gotID, f.gotCompany = id, company
	return f.items, f.err
}

func (f *fakeBoard) SourceURL(id string) string { return "https://api.example/" + id }

type fakeExtractor struct{ items []model.JobRecord }

func (f fakeExtractor) Extract(context.Context, string) ([]model.JobRecord, error) {
	return f.items, nil
}

type fakeResolver struct{}

func (fakeResolver) Detect(_ context.Context, u string) string {
	if strings.Contains(u, "acme") {
		return "greenhouse"
	}
	return "generic"
}

type fakeJobs struct {
	filter model.ListFilter
	jobs   []model.Job
	stats  []model.SourceStats
	err    error
}

func (f *fakeJobs) List(_ context.Context, filter model.ListFilter) ([]model.Job, error) {
	f.filter = filter
	return f.jobs, f.err
}

func (f *fakeJobs) Stats(context.Context) ([]model.SourceStats, error) {
	return f.stats, f.err
}

// ── Harness ────────────────────────────────────────────────────────────────

type harness struct {
	e         *echo.Echo
	collector *fakeCollector
	board     *fakeBoard
	jobs      *fakeJobs
	bg        *Background
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	link := "https://jobs.example/1"
	h := &harness{
		collector: &fakeCollector{items: []model.JobRecord{{Title: "Engineer", Link: &link, Source: model.SourceRSS}}},
		board:     &fakeBoard{items: []model.JobRecord{{Title: "Board Job", Source: model.SourceGreenhouse}}},
		jobs:      &fakeJobs{},
	}
	h.bg = NewBackground(context.Background(), 2, discardLogger())
	t.Cleanup(func() { _ = h.bg.Shutdown(context.Background()) })

	deps := Deps{
		Collector:  h.collector,
		Greenhouse: h.board,
		Lever:      h.board,
		Extractor:  fakeExtractor{items: []model.JobRecord{{Title: "LD Job", Source: model.SourceGeneric}}},
		Resolver:   fakeResolver{},
		Jobs:       h.jobs,
		Background: h.bg,
		Version:    "test",
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.e = NewServer(NewHandler(deps, discardLogger()))
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ── Health ─────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "test", body["version"])

	for _, src := range []string{"rss", "greenhouse", "lever"} {
		rec := h.do(http.MethodGet, "/collectors/"+src+"/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, src, decode[map[string]any](t, rec)["source"])
	}
}

func TestMetricsExposed(t *testing.T) {
	rec := newHarness(t, nil).do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// ── RSS ────────────────────────────────────────────────────────────────────

func TestCollect_AppliesDefaults(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/rss/collect", `{"url":"https://feed.example/rss"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[collectResponse](t, rec)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Engineer", body.Items[0].Title)

	require.Len(t, h.collector.requests, 1)
	req := h.collector.requests[0]
	assert.Equal(t, 20, req.Limit)
	assert.Equal(t, 10*time.Second, req.Timeout)
	assert.True(t, req.GuessMetaFromTitle)
}

func TestCollect_PassesOptions(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/rss/collect",
		`{"url":"https://feed.example/rss","limit":5,"timeout_seconds":2.5,"guess_meta_from_title":false,"exclude_terms":["unpaid"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := h.collector.requests[0]
	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, 2500*time.Millisecond, req.Timeout)
	assert.False(t, req.GuessMetaFromTitle)
	assert.Equal(t, []string{"unpaid"}, req.ExcludeTerms)
}

func TestCollect_ValidationIs422(t *testing.T) {
	h := newHarness(t, nil)
	cases := map[string]string{
		"missing url":    `{}`,
		"relative url":   `{"url":"/feed"}`,
		"ftp url":        `{"url":"ftp://feed.example/rss"}`,
		"limit zero":     `{"url":"https://f.example","limit":0}`,
		"limit too big":  `{"url":"https://f.example","limit":201}`,
		"timeout short":  `{"url":"https://f.example","timeout_seconds":1}`,
		"timeout long":   `{"url":"https://f.example","timeout_seconds":61}`,
		"malformed json": `{"url":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/collectors/rss/collect", body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rec).Detail)
		})
	}
	assert.Empty(t, h.collector.requests)
}

func TestCollect_FetchFailureIs502(t *testing.T) {
	h := newHarness(t, nil)
	h.collector.err = &model.FetchError{URL: "https://down.example", StatusCode: 503}

	rec := h.do(http.MethodPost, "/collectors/rss/collect", `{"url":"https://down.example"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, strings.HasPrefix(decode[errorBody](t, rec).Detail, "upstream fetch failed"))
}

func TestCollectAndStore_ReturnsSummary(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/rss/collect-and-store", `{"url":"https://feed.example/rss"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "https://feed.example/rss", body["url"])
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 1, body["fetched"])
	assert.EqualValues(t, 1, body["inserted"])
	assert.EqualValues(t, 0, body["skipped"])
	assert.Contains(t, body, "items")
}

func TestCollectAndStore_StoreFailureIs500(t *testing.T) {
	h := newHarness(t, nil)
	h.collector.storeErr = errors.New("bulk upsert: connection reset")

	rec := h.do(http.MethodPost, "/collectors/rss/collect-and-store", `{"url":"https://feed.example/rss"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestCollectFrom_QueuesBackgroundRun(t *testing.T) {
	h := newHarness(t, nil)
	h.collector.ran = make(chan model.CollectRequest, 1)

	rec := h.do(http.MethodPost, "/collectors/rss/collect-from", `{"url":"https://feed.example/rss","limit":7}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decode[queuedResponse](t, rec)
	assert.Equal(t, "queued", body.Status)
	assert.NotEmpty(t, body.JobID)

	select {
	case req := <-h.collector.ran:
		assert.Equal(t, 7, req.Limit)
	case <-time.After(2 * time.Second):
		t.Fatal("background run never happened")
	}
}

func TestCollectFrom_RejectedAfterShutdown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bg.Shutdown(context.Background()))

	rec := h.do(http.MethodPost, "/collectors/rss/collect-from", `{"url":"https://feed.example/rss"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ── API key ────────────────────────────────────────────────────────────────

func TestAPIKey_GuardsMutatingRoutes(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.APIKey = "s3cret" })

	rec := h.do(http.MethodPost, "/collectors/rss/collect-and-store", `{"url":"https://feed.example/rss"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/collectors/rss/collect-and-store", `{"url":"https://feed.example/rss"}`, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/collectors/rss/collect-and-store", `{"url":"https://feed.example/rss"}`, "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Read-only routes stay open.
	rec = h.do(http.MethodPost, "/collectors/rss/collect", `{"url":"https://feed.example/rss"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ── Boards, structured data, resolver ──────────────────────────────────────

func TestGreenhouseCollectAndStore(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/greenhouse/collect-and-store", `{"board_token":"acme","company":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "acme", h.board.gotID)
	assert.Equal(t, "Acme", h.board.gotCompany)
	assert.Len(t, h.collector.stored[model.SourceGreenhouse], 1)
	assert.Equal(t, "https://api.example/acme", decode[map[string]any](t, rec)["url"])
}

func TestLeverCollectAndStore_RequiresSlug(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/lever/collect-and-store", `{"company":"Acme"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Detail, "company_slug")
}

func TestBoardFetchFailureIs502(t *testing.T) {
	h := newHarness(t, nil)
	h.board.err = &model.FetchError{URL: "https://api.example/x", StatusCode: 404}

	rec := h.do(http.MethodPost, "/collectors/lever/collect-and-store", `{"company_slug":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExtract(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/generic/extract", `{"url":"https://careers.example/jobs"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[collectResponse](t, rec).Count)

	rec = h.do(http.MethodPost, "/collectors/generic/extract-and-store", `{"url":"https://careers.example/jobs"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, h.collector.stored[model.SourceGeneric], 1)
}

func TestExtract_DisabledIs501(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Extractor = nil })

	for _, path := range []string{"/collectors/generic/extract", "/collectors/generic/extract-and-store"} {
		rec := h.do(http.MethodPost, path, `{"url":"https://careers.example/jobs"}`)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

func TestResolve(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/collectors/resolve", `{"url":"acme.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "greenhouse", decode[map[string]string](t, rec)["platform"])
}

// ── Jobs ───────────────────────────────────────────────────────────────────

func TestListJobs(t *testing.T) {
	h := newHarness(t, nil)
	h.jobs.jobs = []model.Job{{ID: 9, JobRecord: model.JobRecord{Title: "SRE", Source: "rss"}}}

	rec := h.do(http.MethodGet, "/jobs?q=sre&source=rss&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, model.ListFilter{Query: "sre", Source: "rss", Limit: 5, Offset: 10}, h.jobs.filter)
	body := decode[[]map[string]any](t, rec)
	require.Len(t, body, 1)
	assert.EqualValues(t, 9, body[0]["id"])
	assert.Equal(t, "SRE", body[0]["title"])
}

func TestListJobs_DefaultsAndBounds(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, h.jobs.filter.Limit)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	for _, q := range []string{"limit=0", "limit=201", "offset=-1", "limit=many"} {
		rec := h.do(http.MethodGet, "/jobs?"+q, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}
}

func TestJobStats(t *testing.T) {
	h := newHarness(t, nil)
	h.jobs.stats = []model.SourceStats{{Source: "rss", Count: 3, LastID: 12}}

	rec := h.do(http.MethodGet, "/jobs/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]map[string]any](t, rec)
	require.Len(t, body, 1)
	assert.EqualValues(t, 3, body[0]["count"])
	assert.EqualValues(t, 12, body[0]["last_id"])
	assert.Nil(t, body[0]["last_published"])
}

func TestUnknownRouteIs404JSON(t *testing.T) {
	rec := newHarness(t, nil).do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Detail)
}
