package reconcile

import (
	"time"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
)

// Reconcile compares the previous snapshot of a domain (nil if it was never
// fetched) against freshly fetched WHOIS data and returns the snapshot to
// persist plus zero or more notification intents. It performs no I/O and
// holds no state; calling it twice with the same inputs yields the same
// result.
//
// Transition rules:
//   - dropped: the old snapshot had an expiry date and the fresh data has
//     none. Losing expiry data on a domain that previously had it is the
//     strongest signal of de-registration.
//   - expiry changed: both sides have an expiry date and they differ at full
//     timestamp precision. The first-ever observation of an expiry is not a
//     change.
//
// The persisted snapshot is always the fresh data verbatim with updated_at
// set to fetchedAt. last_notification_sent_at is carried over untouched; it
// belongs to the cooldown policy, not to reconciliation.
func Reconcile(domainName string, old *model.WhoisSnapshot, fresh model.FetchedWhois, fetchedAt time.Time) (model.WhoisSnapshot, []model.NotificationIntent) {
	next := model.WhoisSnapshot{
		Registrar:    fresh.Registrar,
		ExpiryDate:   fresh.ExpiryDate,
		CreationDate: fresh.CreationDate,
		RawText:      fresh.RawText,
		UpdatedAt:    fetchedAt,
	}
	if old != nil {
		next.ID = old.ID
		next.DomainID = old.DomainID
		next.LastNotificationSentAt = old.LastNotificationSentAt
	}

	var intents []model.NotificationIntent

	switch {
	case old != nil && old.ExpiryDate != nil && fresh.ExpiryDate == nil:
		intents = append(intents, model.NotificationIntent{
			Kind:                model.IntentDropped,
			DomainName:          domainName,
			LastKnownExpiryDate: old.ExpiryDate,
		})
	case old != nil && old.ExpiryDate != nil && fresh.ExpiryDate != nil && !old.ExpiryDate.Equal(*fresh.ExpiryDate):
		intents = append(intents, model.NotificationIntent{
			Kind:          model.IntentExpiryChanged,
			DomainName:    domainName,
			OldExpiryDate: old.ExpiryDate,
			NewExpiryDate: fresh.ExpiryDate,
		})
	}

	return next, intents
}

// DaysUntilExpiry returns the number of whole or partial days between now and
// the expiry date, rounded up. A domain expiring in 29.5 days counts as 30
// days out.
func DaysUntilExpiry(expiry, now time.Time) int {
	diff := expiry.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// ApproachingThreshold reports whether the expiry date lands exactly on one of
// the configured day thresholds. The match is exact by design: a domain that
// is never evaluated on precisely the threshold day skips that alert.
func ApproachingThreshold(expiry, now time.Time, thresholds []int) (int, int, bool) {
	days := DaysUntilExpiry(expiry, now)
	for _, t := range thresholds {
		if days == t {
			return t, days, true
		}
	}
	return 0, days, false
}
