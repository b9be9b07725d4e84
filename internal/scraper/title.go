package scraper

import (
	"regexp"
	"strings"
)

// titleMetaRe matches "TITLE [-–| COMPANY] [(LOCATION)|[LOCATION]]".
var titleMetaRe = regexp.MustCompile(
	`^(?P<title>[^–\-|]+?)(?:\s*[-–|]\s*(?P<company>[^(\[]+?))?(?:\s*[\[(]\s*(?P<location>[^)\]]+)\s*[\])])?$`,
)

var (
	titleGroup    = titleMetaRe.SubexpIndex("title")
	companyGroup  = titleMetaRe.SubexpIndex("company")
	locationGroup = titleMetaRe.SubexpIndex("location")
)

// DecomposeTitle splits a listing title such as
// "Senior SOC Analyst - ACME Corp (Melbourne)" into its parts.
// When the title does not fit the pattern it is returned trimmed, with no
// company or location.
func DecomposeTitle(raw string) (title string, company, location *string) {
	s := strings.TrimSpace(raw)
	m := titleMetaRe.FindStringSubmatch(s)
	if m == nil {
		return s, nil, nil
	}
	title = strings.TrimSpace(m[titleGroup])
	company = trimmedPtr(m[companyGroup])
	location = trimmedPtr(m[locationGroup])
	return title, company, location
}

func trimmedPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
