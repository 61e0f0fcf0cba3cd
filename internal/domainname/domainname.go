package domainname

import (
	"fmt"
	"regexp"
	"strings"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

// Clean strips the protocol, a leading www. and any path from user input and
// lowercases the remainder.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize cleans raw input and rejects anything that is not hostname-shaped.
// Everything downstream of the watch-creation path assumes its domain names
// already passed through here.
func Normalize(raw string) (string, error) {
	cleaned := Clean(raw)
	if !hostnamePattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid domain format: %q", raw)
	}
	return cleaned, nil
}
