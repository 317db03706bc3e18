// Package normalize converts raw source rows into canonical records.
//
// Validation is domain-specific but the contract is uniform: a malformed
// row is rejected with a reason and never aborts the run or its sibling
// rows. Normalization is deterministic - the same raw input always yields
// the same id and content hash, which the diff step depends on.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+420\s*)?(\d{3})\s*(\d{3})\s*(\d{3})`)
	urlPattern   = regexp.MustCompile(`^https?://([\w\d\-]+\.)+[\w\d\-]+(/[\w\d\-._~%/]*)*/?$`)
)

// Email extracts the first well-formed address from s, or "" when none.
func Email(s string) string {
	return emailPattern.FindString(strings.TrimSpace(s))
}

// Phone extracts the first Czech phone number from s and formats it as
// "+420 XXX XXX XXX", or returns "" when none is found.
func Phone(s string) string {
	m := phonePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("+420 %s %s %s", m[1], m[2], m[3])
}

// WebURL validates s as an http(s) URL, prefixing the scheme when absent.
// Returns "" for values that do not look like a URL at all.
func WebURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	if !urlPattern.MatchString(s) {
		return ""
	}
	return s
}

// absoluteLink resolves href against base when it is site-relative.
func absoluteLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
