package scraper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"jobagent/collector-service/internal/model"
)

// RawEntry is one posting as handed over by a parser or a board API, before
// any cleaning. Company and Location are explicit values supplied by
// structured sources; feeds usually only carry Author or SourceTitle.
type RawEntry struct {
	Title       Field
	Link        Field
	Summary     Field
	Description Field
	Published   Field
	Updated     Field
	Company     Field
	Author      Field
	SourceTitle Field
	Location    Field
}

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	GuessMetaFromTitle bool
	Source             string
}

var stripPolicy = bluemonday.StrictPolicy()

// Normalize turns a raw entry into a JobRecord. It never fails: missing or
// malformed fields degrade to absent values or the untitled placeholder.
func Normalize(e RawEntry, opts NormalizeOptions) model.JobRecord {
	source := opts.Source
	if source == "" {
		source = model.SourceRSS
	}

	title, hasTitle := e.Title.Text()
	if !hasTitle {
		title = model.UntitledPlaceholder
	}

	rec := model.JobRecord{
		Title:   title,
		Link:    textPtr(e.Link),
		Summary: cleanHTML(e.Summary, e.Description),
		Source:  source,
	}

	if t, ok := e.Published.Time(); ok {
		rec.Published = &t
	} else if t, ok := e.Updated.Time(); ok {
		rec.Published = &t
	}

	rec.Company = firstText(e.Company, e.Author, e.SourceTitle)
	rec.Location = textPtr(e.Location)

	if opts.GuessMetaFromTitle && hasTitle {
		pure, company, location := DecomposeTitle(title)
		if pure != "" {
			rec.Title = pure
		}
		if rec.Company == nil {
			rec.Company = company
		}
		if rec.Location == nil {
			rec.Location = location
		}
	}

	return rec
}

// NormalizeAll normalises entries in order, stopping after limit records
// when limit is positive.
func NormalizeAll(entries []RawEntry, limit int, opts NormalizeOptions) []model.JobRecord {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]model.JobRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, Normalize(e, opts))
	}
	return out
}

// cleanHTML strips markup from the first non-absent candidate and decodes
// entities. Blank results collapse to nil.
func cleanHTML(candidates ...Field) *string {
	for _, f := range candidates {
		raw, ok := f.Text()
		if !ok {
			continue
		}
		text := strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(raw)))
		if text == "" {
			return nil
		}
		return &text
	}
	return nil
}

func textPtr(f Field) *string {
	s, ok := f.Text()
	if !ok {
		return nil
	}
	return &s
}

func firstText(fields ...Field) *string {
	for _, f := range fields {
		if p := textPtr(f); p != nil {
			return p
		}
	}
	return nil
}
