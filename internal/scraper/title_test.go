package scraper_test

import (
	"testing"

	"jobagent/collector-service/internal/scraper"
)

func str(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

// ── DecomposeTitle ─────────────────────────────────────────────────────────

func TestDecomposeTitle_Patterns(t *testing.T) {
	cases := []struct {
		in, title, company, location string
	}{
		{"Senior SOC Analyst - ACME Corp (Melbourne)", "Senior SOC Analyst", "ACME Corp", "Melbourne"},
		{"Backend Engineer | Globex", "Backend Engineer", "Globex", "<nil>"},
		{"Data Engineer – Initech [Remote]", "Data Engineer", "Initech", "Remote"},
		{"Platform Engineer (Berlin)", "Platform Engineer", "<nil>", "Berlin"},
		{"Site Reliability Engineer", "Site Reliability Engineer", "<nil>", "<nil>"},
		{"  Padded Title  -  Padded Co  ( Paris )  ", "Padded Title", "Padded Co", "Paris"},
	}
	for _, c := range cases {
		title, company, location := scraper.DecomposeTitle(c.in)
		if title != c.title || str(company) != c.company || str(location) != c.location {
			t.Errorf("DecomposeTitle(%q) = (%q, %q, %q), want (%q, %q, %q)",
				c.in, title, str(company), str(location), c.title, c.company, c.location)
		}
	}
}

func TestDecomposeTitle_NoMatchReturnsTrimmedInput(t *testing.T) {
	// A leading separator leaves the title group empty, so nothing matches.
	title, company, location := scraper.DecomposeTitle("  - ACME  ")
	if title != "- ACME" {
		t.Errorf("title = %q, want %q", title, "- ACME")
	}
	if company != nil || location != nil {
		t.Errorf("expected no company/location, got %q / %q", str(company), str(location))
	}
}

func TestDecomposeTitle_Empty(t *testing.T) {
	title, company, location := scraper.DecomposeTitle("")
	if title != "" || company != nil || location != nil {
		t.Errorf("DecomposeTitle(\"\") = (%q, %v, %v)", title, company, location)
	}
}
