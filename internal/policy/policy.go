// Package policy decides whether, and how fast, a remote site may be
// fetched: a YAML site policy, robots.txt, and a per-host polite delay.
package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule is the policy for one site, or the default for all sites.
type Rule struct {
	UserAgent            string    `yaml:"user_agent"`
	Allowed              *bool     `yaml:"allowed"`
	RespectRobots        *bool     `yaml:"respect_robots"`
	DelaySeconds         []float64 `yaml:"delay_seconds"` // [min, max]
	StopOn               []string  `yaml:"stop_on"`       // status codes that halt the site at once
	MaxConsecutiveErrors int       `yaml:"max_consecutive_errors"`
}

// File is the parsed site policy document.
//
//	default:
//	  user_agent: "JobAutomationAgent/0.1"
//	  delay_seconds: [2, 5]
//	  max_consecutive_errors: 3
//	  stop_on: ["403", "429"]
//	sites:
//	  linkedin.com: { allowed: false }
type File struct {
	Default Rule            `yaml:"default"`
	Sites   map[string]Rule `yaml:"sites"`
}

// LoadFile reads and parses a site policy file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a site policy document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse site policy: %w", err)
	}
	if err := f.Default.validate("default"); err != nil {
		return nil, err
	}
	for host, r := range f.Sites {
		if err := r.validate(host); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (r Rule) validate(name string) error {
	switch len(r.DelaySeconds) {
	case 0:
		return nil
	case 2:
		if r.DelaySeconds[0] < 0 || r.DelaySeconds[1] < r.DelaySeconds[0] {
			return fmt.Errorf("site policy %s: delay_seconds must be [min, max] with 0 <= min <= max", name)
		}
		return nil
	default:
		return fmt.Errorf("site policy %s: delay_seconds must have two values", name)
	}
}

// RuleFor returns the rule for host, falling back to the default. A rule
// for "example.com" also covers "www.example.com" and "jobs.example.com".
func (f *File) RuleFor(host string) Rule {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for h := host; h != ""; {
		if r, ok := f.Sites[h]; ok {
			return r
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return f.Default
}

func (r Rule) allowed() bool { return r.Allowed == nil || *r.Allowed }

func (r Rule) respectRobots() bool { return r.RespectRobots == nil || *r.RespectRobots }

func (r Rule) delayRange() (lo, hi time.Duration) {
	if len(r.DelaySeconds) != 2 {
		return 0, 0
	}
	return secs(r.DelaySeconds[0]), secs(r.DelaySeconds[1])
}

func (r Rule) stopsOn(status int) bool {
	code := fmt.Sprint(status)
	for _, s := range r.StopOn {
		if strings.TrimSpace(s) == code {
			return true
		}
	}
	return false
}

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }
