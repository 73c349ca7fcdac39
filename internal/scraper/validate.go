package scraper

import (
	"net/url"
	"strings"
)

const (
	rootDomain       = "trustpilot.com"
	reviewPathPrefix = "/review/"
)

// ValidURL reports whether raw is a usable Trustpilot review-page URL.
// Fails closed: any parse problem means false, never an error.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !strings.Contains(u.Host, rootDomain) {
		return false
	}
	return strings.HasPrefix(u.Path, reviewPathPrefix)
}
