package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"jobagent/collector-service/internal/model"
)

const (
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 200
	MinTimeout   = 2 * time.Second
	MaxTimeout   = 60 * time.Second
)

// ValidateRequest fills defaults and checks bounds. Zero Limit and Timeout
// mean "use the default".
func ValidateRequest(req model.CollectRequest) (model.CollectRequest, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req, &model.ValidationError{Msg: fmt.Sprintf("url must be an absolute http(s) URL, got %q", req.URL)}
	}
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < MinLimit || req.Limit > MaxLimit {
		return req, &model.ValidationError{Msg: fmt.Sprintf("limit must be between %d and %d", MinLimit, MaxLimit)}
	}
	if req.Timeout == 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Timeout < MinTimeout || req.Timeout > MaxTimeout {
		return req, &model.ValidationError{Msg: fmt.Sprintf("timeout must be between %s and %s", MinTimeout, MaxTimeout)}
	}
	if req.Source == "" {
		req.Source = model.SourceRSS
	}
	return req, nil
}

// Pipeline runs fetch, parse and normalise for one feed. It never touches
// the store.
type Pipeline struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(fetcher *Fetcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{fetcher: fetcher, logger: logger}
}

// Collect fetches req.URL and returns at most req.Limit records in document
// order. A fetch failure is returned as *model.FetchError; an unparseable
// document yields zero records and a parse advisory in the summary.
func (p *Pipeline) Collect(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	req, err := ValidateRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := p.fetcher.Fetch(ctx, req.URL, req.Timeout)
	if err != nil {
		return nil, err
	}

	res := &model.CollectResult{Summary: model.FetchSummary{URL: req.URL}}

	entries, err := ParseFeed(req.URL, body)
	if err != nil {
		var adv *model.ParseAdvisory
		if !errors.As(err, &adv) {
			return nil, err
		}
		p.logger.Warn("feed parse advisory", "url", req.URL, "error", adv.Err)
		res.Summary.ParseAdvisory = adv.Error()
	}

	items := NormalizeAll(entries, req.Limit, NormalizeOptions{
		GuessMetaFromTitle: req.GuessMetaFromTitle,
		Source:             req.Source,
	})
	items, filtered := FilterRedFlags(items, req.ExcludeTerms)

	res.Items = items
	res.Summary.Fetched = len(items)
	res.Summary.Filtered = filtered

	p.logger.Debug("feed collected",
		"url", req.URL,
		"entries", len(entries),
		"fetched", len(items),
		"filtered", filtered,
	)
	return res, nil
}
