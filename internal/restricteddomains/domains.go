package restricteddomains

import (
	"slices"
	"strings"
)

// RestrictedDomainsPref is the shared preference consulted by the host's
// permission system.
const RestrictedDomainsPref = "extensions.webextensions.restrictedDomains"

const (
	prefBranch = "extensions.webextensions."

	domainsToPreserveName = "domainsToPreserve"
	managedDomainsName    = "managedDomains"
	disabledName          = "disabled"
)

// ScopedPrefName returns a preference name owned by a single extension.
func ScopedPrefName(extensionID, name string) string {
	return prefBranch + extensionID + "." + name
}

// ParseDomainList splits a comma-joined preference value. Empty segments are
// dropped so an empty value is an empty list.
func ParseDomainList(value string) []string {
	var domains []string
	for _, part := range strings.Split(value, ",") {
		if d := strings.TrimSpace(part); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// JoinDomainList serializes domains, keeping the first occurrence of each.
func JoinDomainList(domains []string) string {
	return strings.Join(unique(domains), ",")
}

// NormalizeDomains trims, lower-cases and de-duplicates a configured list.
func NormalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return unique(out)
}

func unique(domains []string) []string {
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// difference returns the elements of a that are not in b, in a's order.
func difference(a, b []string) []string {
	var out []string
	for _, d := range a {
		if !slices.Contains(b, d) {
			out = append(out, d)
		}
	}
	return out
}

// intersection returns the elements of a that are also in b, in a's order.
func intersection(a, b []string) []string {
	var out []string
	for _, d := range a {
		if slices.Contains(b, d) {
			out = append(out, d)
		}
	}
	return out
}

func sameDomains(a, b []string) bool {
	return len(difference(a, b)) == 0 && len(difference(b, a)) == 0
}
