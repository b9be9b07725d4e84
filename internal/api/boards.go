package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobagent/collector-service/internal/model"
)

type greenhouseBody struct {
	BoardToken string `json:"board_token" validate:"required"`
	Company    string `json:"company"`
}

type leverBody struct {
	CompanySlug string `json:"company_slug" validate:"required"`
	Company     string `json:"company"`
}

type pageBody struct {
	URL string `json:"url" validate:"required,http_url"`
}

type resolveBody struct {
	URL string `json:"url" validate:"required"`
}

// ─── Board APIs ───────────────────────────────────────────────────────────────

func (h *Handler) greenhouseCollectAndStore(c echo.Context) error {
	var body greenhouseBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	return h.boardCollectAndStore(c, h.deps.Greenhouse, model.SourceGreenhouse, body.BoardToken, body.Company)
}

func (h *Handler) leverCollectAndStore(c echo.Context) error {
	var body leverBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	return h.boardCollectAndStore(c, h.deps.Lever, model.SourceLever, body.CompanySlug, body.Company)
}

func (h *Handler) boardCollectAndStore(c echo.Context, src BoardSource, source, id, company string) error {
	ctx := c.Request().Context()
	items, err := src.Collect(ctx, id, company)
	if err != nil {
		return err
	}
	res, err := h.deps.Collector.StoreRecords(ctx, src.SourceURL(id), source, items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newStoreResponse(res))
}

// ─── Structured data ──────────────────────────────────────────────────────────

func (h *Handler) extract(c echo.Context) error {
	if h.deps.Extractor == nil {
		return ErrStructuredDisabled
	}
	var body pageBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	items, err := h.deps.Extractor.Extract(c.Request().Context(), body.URL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCollectResponse(&model.CollectResult{
		Summary: model.FetchSummary{URL: body.URL, Fetched: len(items)},
		Items:   items,
	}))
}

func (h *Handler) extractAndStore(c echo.Context) error {
	if h.deps.Extractor == nil {
		return ErrStructuredDisabled
	}
	var body pageBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.deps.Extractor.Extract(ctx, body.URL)
	if err != nil {
		return err
	}
	res, err := h.deps.Collector.StoreRecords(ctx, body.URL, model.SourceGeneric, items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newStoreResponse(res))
}

func (h *Handler) resolve(c echo.Context) error {
	var body resolveBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	platform := h.deps.Resolver.Detect(c.Request().Context(), body.URL)
	return c.JSON(http.StatusOK, map[string]string{"url": body.URL, "platform": platform})
}
