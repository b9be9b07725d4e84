package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
)

// Extractor pulls JSON-LD JobPosting objects out of HTML pages.
type Extractor struct {
	get Getter
}

// NewExtractor returns an Extractor.
func NewExtractor(get Getter) *Extractor {
	return &Extractor{get: get}
}

// Extract fetches pageURL and returns the postings it declares. A page
// without JobPosting markup yields an empty slice.
func (e *Extractor) Extract(ctx context.Context, pageURL string) ([]model.JobRecord, error) {
	body, err := e.get.Get(ctx, pageURL, scraper.HTMLAccept, defaultTimeout)
	if err != nil {
		return nil, err
	}
	return ExtractJobPostings(pageURL, body)
}

// ExtractJobPostings parses page and normalises every JSON-LD JobPosting
// found in it. Script blocks that are not valid JSON are skipped.
func ExtractJobPostings(pageURL string, page []byte) ([]model.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var postings []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		postings = collectPostings(v, postings)
	})

	opts := scraper.NormalizeOptions{Source: model.SourceGeneric}
	recs := make([]model.JobRecord, 0, len(postings))
	for _, p := range postings {
		recs = append(recs, scraper.Normalize(entryFromPosting(pageURL, p), opts))
	}
	return recs, nil
}

// collectPostings walks arrays and @graph containers looking for objects
// typed JobPosting.
func collectPostings(v any, acc []map[string]any) []map[string]any {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			acc = collectPostings(item, acc)
		}
	case map[string]any:
		if isJobPosting(x["@type"]) {
			acc = append(acc, x)
		}
		if graph, ok := x["@graph"]; ok {
			acc = collectPostings(graph, acc)
		}
	}
	return acc
}

func isJobPosting(t any) bool {
	switch x := t.(type) {
	case string:
		return x == "JobPosting"
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func entryFromPosting(pageURL string, p map[string]any) scraper.RawEntry {
	return scraper.RawEntry{
		Title:     scraper.Scalar(p["title"]),
		Link:      scraper.List(p["url"], pageURL),
		Summary:   scraper.Scalar(p["description"]),
		Published: scraper.Scalar(p["datePosted"]),
		Company:   scraper.Scalar(organizationName(p["hiringOrganization"])),
		Location:  scraper.Scalar(locality(p["jobLocation"], p["jobLocationType"])),
	}
}

func organizationName(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		if s, ok := x["name"].(string); ok {
			return s
		}
	}
	return ""
}

// locality returns the first addressLocality among the job locations, or
// "Remote" for telecommute postings without one.
func locality(loc, locType any) string {
	places, ok := loc.([]any)
	if !ok {
		places = []any{loc}
	}
	for _, place := range places {
		m, ok := place.(map[string]any)
		if !ok {
			continue
		}
		if addr, ok := m["address"].(map[string]any); ok {
			if s, ok := addr["addressLocality"].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	if s, ok := locType.(string); ok && strings.EqualFold(s, "TELECOMMUTE") {
		return "Remote"
	}
	return ""
}
