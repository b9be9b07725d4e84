package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"jobagent/collector-service/internal/model"
)

var (
	// ErrDisallowed is returned for sites the policy or robots.txt forbids.
	ErrDisallowed = errors.New("fetch disallowed by site policy")
	// ErrHalted is returned while a site is paused after repeated errors.
	ErrHalted = errors.New("site paused after repeated errors")
)

const (
	robotsTTL       = time.Hour
	robotsTimeout   = 5 * time.Second
	defaultCooldown = 10 * time.Minute
)

type robotsEntry struct {
	data    *robotstxt.RobotsData // nil means allow all
	fetched time.Time
}

// Guard enforces a policy File. It implements scraper.FetchGuard and is safe
// for concurrent use.
type Guard struct {
	policy    *File
	userAgent string
	client    *http.Client
	cooldown  time.Duration
	logger    *slog.Logger
	jitter    func(span time.Duration) time.Duration
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	robots   map[string]robotsEntry
	errCount map[string]int
	halted   map[string]time.Time
}

// NewGuard builds a Guard. userAgent overrides the policy's default agent
// when non-empty.
func NewGuard(p *File, userAgent string, logger *slog.Logger) *Guard {
	if userAgent == "" {
		userAgent = p.Default.UserAgent
	}
	return &Guard{
		policy:    p,
		userAgent: userAgent,
		client:    &http.Client{Timeout: robotsTimeout},
		cooldown:  defaultCooldown,
		logger:    logger,
		jitter: func(span time.Duration) time.Duration {
			if span <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(span)))
		},
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]robotsEntry),
		errCount: make(map[string]int),
		halted:   make(map[string]time.Time),
	}
}

// Before checks the policy for rawURL and then waits for the host's polite
// delay. It returns an error wrapping ErrDisallowed or ErrHalted when the
// fetch must not happen.
func (g *Guard) Before(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("policy: invalid url %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	rule := g.policy.RuleFor(host)

	if !rule.allowed() {
		return fmt.Errorf("%w: %s", ErrDisallowed, host)
	}
	if until, ok := g.haltedUntil(host); ok {
		return fmt.Errorf("%w: %s until %s", ErrHalted, host, until.Format(time.RFC3339))
	}
	if rule.respectRobots() && !g.robotsAllow(ctx, u) {
		return fmt.Errorf("%w: robots.txt forbids %s", ErrDisallowed, u.EscapedPath())
	}
	return g.wait(ctx, host, rule)
}

// After records the outcome of a fetch. Consecutive failures, or a status
// listed in stop_on, pause the host for the cooldown period.
func (g *Guard) After(rawURL string, fetchErr error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	host := strings.ToLower(u.Hostname())

	g.mu.Lock()
	defer g.mu.Unlock()

	if fetchErr == nil {
		delete(g.errCount, host)
		return
	}
	g.errCount[host]++

	rule := g.policy.RuleFor(host)
	status := 0
	var fe *model.FetchError
	if errors.As(fetchErr, &fe) {
		status = fe.StatusCode
	}
	stop := (status != 0 && rule.stopsOn(status)) ||
		(rule.MaxConsecutiveErrors > 0 && g.errCount[host] >= rule.MaxConsecutiveErrors)
	if !stop {
		return
	}

	g.halted[host] = g.now().Add(g.cooldown)
	g.errCount[host] = 0
	g.logger.Warn("site paused by policy",
		"host", host,
		"status", status,
		"cooldown", g.cooldown,
		"error", fetchErr,
	)
}

func (g *Guard) haltedUntil(host string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.halted[host]
	if !ok {
		return time.Time{}, false
	}
	if g.now().After(until) {
		delete(g.halted, host)
		return time.Time{}, false
	}
	return until, true
}

func (g *Guard) wait(ctx context.Context, host string, rule Rule) error {
	lo, hi := rule.delayRange()
	if lo > 0 {
		if err := g.limiter(host, lo).Wait(ctx); err != nil {
			return fmt.Errorf("polite wait: %w", err)
		}
	}
	extra := g.jitter(hi - lo)
	if extra <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("polite wait: %w", ctx.Err())
	case <-time.After(extra):
		return nil
	}
}

func (g *Guard) limiter(host string, every time.Duration) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(every), 1)
		g.limiters[host] = l
	}
	return l
}

// robotsAllow consults the host's robots.txt, cached for robotsTTL. An
// unreachable robots.txt allows the fetch.
func (g *Guard) robotsAllow(ctx context.Context, u *url.URL) bool {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	entry, ok := g.robots[key]
	g.mu.Unlock()

	if !ok || g.now().Sub(entry.fetched) > robotsTTL {
		entry = robotsEntry{data: g.fetchRobots(ctx, key), fetched: g.now()}
		g.mu.Lock()
		g.robots[key] = entry
		g.mu.Unlock()
	}
	if entry.data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, g.userAgent)
}

func (g *Guard) fetchRobots(ctx context.Context, base string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt unreachable, allowing", "base", base, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.Debug("robots.txt unparseable, allowing", "base", base, "error", err)
		return nil
	}
	return data
}
