package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"

	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
	CompanyName string             `json:"company_name"`
	Content     string             `json:"content"` // entity-escaped HTML
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// Greenhouse reads the public Greenhouse boards API.
type Greenhouse struct {
	baseURL string
	get     Getter
}

// NewGreenhouse returns a Greenhouse source.
func NewGreenhouse(get Getter) *Greenhouse {
	return &Greenhouse{baseURL: greenhouseBaseURL, get: get}
}

// SourceURL is the boards API URL for a board token.
func (g *Greenhouse) SourceURL(boardToken string) string {
	return fmt.Sprintf("%s/%s/jobs?content=true", g.baseURL, url.PathEscape(boardToken))
}

// Collect fetches every open job on the board. companyName, when set, wins
// over the company the board reports.
func (g *Greenhouse) Collect(ctx context.Context, boardToken, companyName string) ([]model.JobRecord, error) {
	body, err := g.get.Get(ctx, g.SourceURL(boardToken), scraper.JSONAccept, defaultTimeout)
	if err != nil {
		return nil, err
	}

	var resp greenhouseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("greenhouse decode for %s: %w", boardToken, err)
	}

	opts := scraper.NormalizeOptions{Source: model.SourceGreenhouse}
	recs := make([]model.JobRecord, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		recs = append(recs, scraper.Normalize(scraper.RawEntry{
			Title:     scraper.Scalar(j.Title),
			Link:      scraper.Scalar(j.AbsoluteURL),
			Summary:   scraper.Scalar(html.UnescapeString(j.Content)),
			Published: scraper.Scalar(j.UpdatedAt),
			Company:   scraper.List(companyName, j.CompanyName),
			Location:  scraper.Scalar(j.Location.Name),
		}, opts))
	}
	return recs, nil
}
