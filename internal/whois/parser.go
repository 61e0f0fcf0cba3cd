package whois

import (
	"strings"
	"time"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
)

// WHOIS servers do not agree on a date format.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02.01.2006",
	"2006/01/02",
	"January 2 2006",
	"2006-01-02 15:04:05 (MST)",
}

// Responses matching these phrases describe an unregistered domain; they carry
// no registration fields at all.
var notFoundPhrases = []string{
	"no match for",
	"not found",
	"no entries found",
	"domain not found",
	"no data found",
	"status: free",
	"status: available",
	"no object found",
	"object does not exist",
	"the queried object does not exist",
	"no such domain",
	"domain name has not been registered",
	"no matching record",
}

// Parse extracts the registrar, expiry date and creation date from a raw
// WHOIS response. Fields are matched by key substring against the "Key: Value"
// lines of the response; the first hit wins, with an exact "registrar" key
// preferred over a merely containing one ("Registrar WHOIS Server" must not
// shadow "Registrar"). The raw text is always preserved verbatim.
func Parse(raw string) model.FetchedWhois {
	fetched := model.FetchedWhois{RawText: raw}
	if raw == "" {
		fetched.RawText = "No WHOIS data available"
		return fetched
	}

	lower := strings.ToLower(raw)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lower, phrase) {
			return fetched
		}
	}

	var registrarLoose *string

	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		keyLower := strings.ToLower(key)

		if strings.Contains(keyLower, "registrar") {
			if keyLower == "registrar" && fetched.Registrar == nil {
				v := value
				fetched.Registrar = &v
			} else if registrarLoose == nil && !strings.Contains(keyLower, "server") &&
				!strings.Contains(keyLower, "url") && !strings.Contains(keyLower, "email") &&
				!strings.Contains(keyLower, "phone") && !strings.Contains(keyLower, "id") {
				v := value
				registrarLoose = &v
			}
		}

		if fetched.ExpiryDate == nil &&
			(strings.Contains(keyLower, "expiry") || strings.Contains(keyLower, "expiration")) {
			if d, ok := parseDate(value); ok {
				fetched.ExpiryDate = &d
			}
		}

		if fetched.CreationDate == nil &&
			(strings.Contains(keyLower, "creation") || strings.Contains(keyLower, "created")) {
			if d, ok := parseDate(value); ok {
				fetched.CreationDate = &d
			}
		}
	}

	if fetched.Registrar == nil {
		fetched.Registrar = registrarLoose
	}
	return fetched
}

func splitKeyValue(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, ">>>") {
		return "", "", false
	}
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

func parseDate(value string) (time.Time, bool) {
	// Some registries append a comment after the date ("2024-01-01 (active)").
	if i := strings.Index(value, " ("); i > 0 && !strings.Contains(value[:i], ":") {
		value = strings.TrimSpace(value[:i])
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}
