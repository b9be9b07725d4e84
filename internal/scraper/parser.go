package scraper

import (
	"bytes"

	"github.com/mmcdole/gofeed"

	"jobagent/collector-service/internal/model"
)

// ParseFeed decodes an RSS or Atom document into raw entries in document
// order. A document that cannot be parsed yields no entries and a
// *model.ParseAdvisory; callers treat that as a warning, not a failure.
func ParseFeed(url string, body []byte) ([]RawEntry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &model.ParseAdvisory{URL: url, Err: err}
	}

	entries := make([]RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, entryFromItem(item))
	}
	return entries, nil
}

func entryFromItem(item *gofeed.Item) RawEntry {
	links := make([]any, 0, 1+len(item.Links))
	links = append(links, item.Link)
	for _, l := range item.Links {
		links = append(links, l)
	}

	authors := make([]any, 0, 1+len(item.Authors))
	if item.Author != nil {
		authors = append(authors, item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil {
			authors = append(authors, a.Name)
		}
	}

	var publisher Field
	if item.DublinCoreExt != nil {
		publisher = List(stringsToAny(item.DublinCoreExt.Publisher)...)
	}

	return RawEntry{
		Title:       Scalar(item.Title),
		Link:        List(links...),
		Summary:     Scalar(item.Description),
		Description: Scalar(item.Content),
		Published:   List(item.PublishedParsed, item.Published),
		Updated:     List(item.UpdatedParsed, item.Updated),
		Author:      List(authors...),
		SourceTitle: publisher,
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
