package services

import (
	"net/url"
	"regexp"
	"strings"
)

// emailPattern is the permissive address-shape check applied to every invite
// row: local part, "@", domain with at least one dot, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validRedirectURL accepts https URLs, and http only for local development
// hosts.
func validRedirectURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return u.Host != ""
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	default:
		return false
	}
}

// collapseName squeezes internal whitespace and truncates to max runes.
func collapseName(name string, max int) string {
	name = strings.Join(strings.Fields(name), " ")
	runes := []rune(name)
	if len(runes) > max {
		return string(runes[:max])
	}
	return name
}

// parseBoolDefault reads permissive boolean text, falling back to def for
// anything that is not "true" or "false" in any case.
func parseBoolDefault(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}
