package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
)

type listQuery struct {
	Q      string `query:"q" validate:"max=256"`
	Source string `query:"source" validate:"max=64"`
	Limit  int    `query:"limit" validate:"min=1,max=200"`
	Offset int    `query:"offset" validate:"min=0"`
}

func (h *Handler) listJobs(c echo.Context) error {
	q := listQuery{Limit: scraper.DefaultLimit}
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	jobs, err := h.deps.Jobs.List(c.Request().Context(), model.ListFilter{
		Query:  q.Q,
		Source: q.Source,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

func (h *Handler) jobStats(c echo.Context) error {
	stats, err := h.deps.Jobs.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	if stats == nil {
		stats = []model.SourceStats{}
	}
	return c.JSON(http.StatusOK, stats)
}
