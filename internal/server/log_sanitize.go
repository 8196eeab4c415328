package server

import (
	"regexp"
	"strings"
)

var logRedactions = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	// Credentials embedded in tab URLs
	{regex: regexp.MustCompile(`(?i)(https?|wss?)://[^:@/\s]+:[^@/\s]+@`), replacement: "$1://[redacted]:[redacted]@"},
	// Query parameters commonly carrying secrets
	{regex: regexp.MustCompile(`(?i)([?&](?:access_token|token|code|session|sid|key|api_key|password)=)[^&#\s"]+`), replacement: "${1}[redacted]"},
	{regex: regexp.MustCompile(`(?i)authorization:\s*bearer\s+[a-z0-9\-._~+/=]+`), replacement: "authorization: Bearer [redacted]"},
	{regex: regexp.MustCompile(`(?i)(password|secret|token)=[^\s&]+`), replacement: "$1=[redacted]"},
}

// SanitizeLogLines performs minimal redaction on log lines for safe exposure
func SanitizeLogLines(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		l = strings.TrimRight(l, "\n")
		for _, pattern := range logRedactions {
			l = pattern.regex.ReplaceAllString(l, pattern.replacement)
		}
		out[i] = l
	}
	return out
}
