package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"` // epoch millis
	HostedURL        string          `json:"hostedUrl"`
}

// Lever reads the public Lever postings API.
type Lever struct {
	baseURL string
	get     Getter
}

// NewLever returns a Lever source.
func NewLever(get Getter) *Lever {
	return &Lever{baseURL: leverBaseURL, get: get}
}

// SourceURL is the postings API URL for a company slug.
func (l *Lever) SourceURL(companySlug string) string {
	return fmt.Sprintf("%s/%s?mode=json", l.baseURL, url.PathEscape(companySlug))
}

// Collect fetches every posting for the company. Lever does not report a
// company name, so companyName (or the slug) is used.
func (l *Lever) Collect(ctx context.Context, companySlug, companyName string) ([]model.JobRecord, error) {
	body, err := l.get.Get(ctx, l.SourceURL(companySlug), scraper.JSONAccept, defaultTimeout)
	if err != nil {
		return nil, err
	}

	var jobs []leverJob
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("lever decode for %s: %w", companySlug, err)
	}

	opts := scraper.NormalizeOptions{Source: model.SourceLever}
	recs := make([]model.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		location := j.Categories.Location
		if len(j.Categories.AllLocations) > 0 {
			location = strings.Join(j.Categories.AllLocations, ", ")
		}
		recs = append(recs, scraper.Normalize(scraper.RawEntry{
			Title:       scraper.Scalar(j.Text),
			Link:        scraper.Scalar(j.HostedURL),
			Summary:     scraper.Scalar(j.DescriptionPlain),
			Description: scraper.Scalar(j.Description),
			Published:   scraper.Scalar(j.CreatedAt),
			Company:     scraper.List(companyName, companySlug),
			Location:    scraper.Scalar(location),
		}, opts))
	}
	return recs, nil
}
