package sources

import (
	"context"
	"regexp"
	"strings"
	"time"

	"jobagent/collector-service/internal/scraper"
)

// Platforms reported by the resolver.
const (
	PlatformGreenhouse = "greenhouse"
	PlatformLever      = "lever"
	PlatformWorkday    = "workday"
	PlatformGeneric    = "generic"
)

var workdayRe = regexp.MustCompile(`/workday/|/wd\d?/|myworkdayjobs\.com`)

// Resolver guesses which applicant tracking system hosts a careers page.
type Resolver struct {
	get Getter
}

// NewResolver returns a Resolver.
func NewResolver(get Getter) *Resolver {
	return &Resolver{get: get}
}

// Detect fetches domainOrURL and classifies it. Any fetch failure yields
// PlatformGeneric.
func (r *Resolver) Detect(ctx context.Context, domainOrURL string) string {
	target := strings.TrimSpace(domainOrURL)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	body, err := r.get.Get(ctx, target, scraper.HTMLAccept, 10*time.Second)
	if err != nil {
		return PlatformGeneric
	}
	return DetectPlatform(string(body))
}

// DetectPlatform classifies a page by the ATS hosts it references.
func DetectPlatform(page string) string {
	t := strings.ToLower(page)
	switch {
	case strings.Contains(t, "boards.greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(t, "jobs.lever.co"):
		return PlatformLever
	case workdayRe.MatchString(t):
		return PlatformWorkday
	default:
		return PlatformGeneric
	}
}
