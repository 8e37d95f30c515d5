package serp

import (
	"strings"
)

// CanonicalHost reduces a URL or bare domain to a normalized host used for
// domain-equality comparisons: lowercase, no scheme, no "www." prefix, no
// port, no path. The function is idempotent.
func CanonicalHost(raw string) string {
	host := strings.TrimSpace(strings.ToLower(raw))

	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}

	// Drop credentials, path, query and fragment
	if idx := strings.IndexAny(host, "/?#"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, "@"); idx != -1 {
		host = host[idx+1:]
	}

	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	host = strings.TrimPrefix(host, "www.")

	return host
}
