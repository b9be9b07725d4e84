package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
)

// ─── Request / response shapes ───────────────────────────────────────────────

type collectBody struct {
	URL                string   `json:"url" validate:"required,http_url"`
	Limit              *int     `json:"limit" validate:"omitempty,min=1,max=200"`
	TimeoutSeconds     *float64 `json:"timeout_seconds" validate:"omitempty,min=2,max=60"`
	GuessMetaFromTitle *bool    `json:"guess_meta_from_title"`
	ExcludeTerms       []string `json:"exclude_terms" validate:"omitempty,dive,required"`
}

func (b collectBody) request() model.CollectRequest {
	req := model.CollectRequest{
		URL:                b.URL,
		Limit:              scraper.DefaultLimit,
		Timeout:            scraper.DefaultTimeout,
		GuessMetaFromTitle: true,
		ExcludeTerms:       b.ExcludeTerms,
		Source:             model.SourceRSS,
	}
	if b.Limit != nil {
		req.Limit = *b.Limit
	}
	if b.TimeoutSeconds != nil {
		req.Timeout = time.Duration(*b.TimeoutSeconds * float64(time.Second))
	}
	if b.GuessMetaFromTitle != nil {
		req.GuessMetaFromTitle = *b.GuessMetaFromTitle
	}
	return req
}

type collectFromBody struct {
	URL   string `json:"url" validate:"required,http_url"`
	Limit *int   `json:"limit" validate:"omitempty,min=1,max=200"`
}

type collectResponse struct {
	URL           string            `json:"url"`
	Count         int               `json:"count"`
	Items         []model.JobRecord `json:"items"`
	ParseAdvisory string            `json:"parse_advisory,omitempty"`
}

type storeResponse struct {
	model.FetchSummary
	Count int               `json:"count"`
	Items []model.JobRecord `json:"items"`
}

type queuedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

func newCollectResponse(res *model.CollectResult) collectResponse {
	items := nonNil(res.Items)
	return collectResponse{
		URL:           res.Summary.URL,
		Count:         len(items),
		Items:         items,
		ParseAdvisory: res.Summary.ParseAdvisory,
	}
}

func newStoreResponse(res *model.CollectResult) storeResponse {
	items := nonNil(res.Items)
	return storeResponse{FetchSummary: res.Summary, Count: len(items), Items: items}
}

func nonNil(items []model.JobRecord) []model.JobRecord {
	if items == nil {
		return []model.JobRecord{}
	}
	return items
}

// ─── RSS handlers ─────────────────────────────────────────────────────────────

func (h *Handler) collect(c echo.Context) error {
	var body collectBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	res, err := h.deps.Collector.Collect(c.Request().Context(), body.request())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCollectResponse(res))
}

func (h *Handler) collectAndStore(c echo.Context) error {
	var body collectBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	res, err := h.deps.Collector.Run(c.Request().Context(), body.request())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newStoreResponse(res))
}

// collectFrom queues a collect-and-store and returns immediately. The run
// outlives the request; its outcome is only logged.
func (h *Handler) collectFrom(c echo.Context) error {
	var body collectFromBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	req := collectBody{URL: body.URL, Limit: body.Limit}.request()

	id, err := h.deps.Background.Submit("collect-from", func(ctx context.Context) {
		res, err := h.deps.Collector.Run(ctx, req)
		if err != nil {
			h.logger.Error("[api] background collect failed", "url", req.URL, "error", err)
			return
		}
		h.logger.Info("[api] background collect complete",
			"url", req.URL,
			"inserted", res.Summary.Inserted,
			"skipped", res.Summary.Skipped,
		)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, queuedResponse{Status: "queued", JobID: id})
}
