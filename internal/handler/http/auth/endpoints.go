package auth

import "strings"

// PublicEndpoints never require a token: health probes and metrics are
// scraped by infrastructure, and portal webhook callbacks authenticate
// with HMAC signatures instead of JWTs.
var PublicEndpoints = []string{
	"/healthz",
	"/ready",
	"/live",
	"/metrics",
	"/webhooks/",
}

// IsPublicEndpoint reports whether the path needs no authentication.
// Entries ending in "/" are prefixes; others match exactly, with an
// optional trailing slash or query string.
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if strings.HasSuffix(endpoint, "/") {
			if strings.HasPrefix(path, endpoint) {
				return true
			}
			continue
		}
		if path == endpoint || path == endpoint+"/" {
			return true
		}
		if strings.HasPrefix(path, endpoint+"?") {
			return true
		}
	}
	return false
}
