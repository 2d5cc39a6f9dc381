package link

import (
	"net/url"
	"strings"
)

// Sanitizer validates outbound links against an allow-list of trusted hosts.
type Sanitizer struct {
	trusted []string
}

// NewSanitizer returns a Sanitizer trusting the given hosts and their subdomains.
// Entries may be written as "example.com", ".example.com" or "*.example.com".
func NewSanitizer(hosts []string) *Sanitizer {
	trusted := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "*")
		h = strings.Trim(h, ".")
		if h != "" {
			trusted = append(trusted, h)
		}
	}
	return &Sanitizer{trusted: trusted}
}

// Sanitize returns raw in normalized form when it is an http(s) URL on a
// trusted host, and "" otherwise. It never returns an error.
func (s *Sanitizer) Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	// user:pass@host is a common way to disguise the real host
	if u.User != nil {
		return ""
	}
	if !s.isTrusted(u.Hostname()) {
		return ""
	}
	return u.String()
}

func (s *Sanitizer) isTrusted(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, t := range s.trusted {
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}
