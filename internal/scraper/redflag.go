// Package scraper turns remote job feeds into normalised job records:
// fetching, parsing, cleaning and filtering happen here.
package scraper

import (
	"strings"

	"jobagent/collector-service/internal/model"
)

// ContainsRedFlag reports whether any exclusion term appears
// (case-insensitive) in the record's title, company or summary.
func ContainsRedFlag(rec model.JobRecord, redFlags []string) bool {
	if len(redFlags) == 0 {
		return false
	}
	combined := strings.ToLower(rec.Title + " " + deref(rec.Company) + " " + deref(rec.Summary))
	for _, flag := range redFlags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}

// FilterRedFlags drops flagged records, keeping order. It returns the kept
// records and the number dropped.
func FilterRedFlags(recs []model.JobRecord, redFlags []string) ([]model.JobRecord, int) {
	if len(redFlags) == 0 {
		return recs, 0
	}
	kept := make([]model.JobRecord, 0, len(recs))
	for _, r := range recs {
		if ContainsRedFlag(r, redFlags) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(recs) - len(kept)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
