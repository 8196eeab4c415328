package notifier

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// MatchPatterns returns the match patterns covering every page of domains.
func MatchPatterns(domains []string) []string {
	patterns := make([]string, 0, len(domains))
	for _, d := range domains {
		patterns = append(patterns, "*://"+d+"/*")
	}
	return patterns
}

// Matcher tests URLs against match patterns of the form
// <scheme>://<host><path>, where a "*" scheme stands for http, https, ws and
// wss and "*" in the path matches anything.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		g, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func compilePattern(pattern string) (glob.Glob, error) {
	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		return nil, fmt.Errorf("missing scheme separator")
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok || host == "" {
		return nil, fmt.Errorf("missing host")
	}

	if scheme == "*" {
		scheme = "{http,https,ws,wss}"
	} else {
		scheme = glob.QuoteMeta(scheme)
	}
	return glob.Compile(scheme + "://" + glob.QuoteMeta(strings.ToLower(host)) + "/" + path)
}

// Patterns returns the source patterns.
func (m *Matcher) Patterns() []string { return m.patterns }

// Match reports whether rawURL matches one of the patterns. Ports, user info
// and fragments are ignored.
func (m *Matcher) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	normalized := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Hostname()) + path
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}

	for _, g := range m.globs {
		if g.Match(normalized) {
			return true
		}
	}
	return false
}

// Hostname returns the lower-cased host of rawURL without port.
func Hostname(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.ToLower(u.Hostname()), nil
}
