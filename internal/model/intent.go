package model

import "time"

type IntentKind string

const (
	IntentDropped           IntentKind = "dropped"
	IntentExpiryChanged     IntentKind = "expiry_changed"
	IntentExpiryApproaching IntentKind = "expiry_approaching"
)

// NotificationIntent is an engine decision that has not been delivered yet.
// It carries everything needed to render a message without re-reading the
// store; the recipient is resolved later, per watcher.
type NotificationIntent struct {
	Kind       IntentKind
	DomainName string

	// Dropped: the expiry date the domain had before it vanished.
	LastKnownExpiryDate *time.Time

	// ExpiryChanged: both sides of the change.
	OldExpiryDate *time.Time
	NewExpiryDate *time.Time

	// ExpiryApproaching: the matched threshold and the remaining days.
	ThresholdDays   int
	DaysUntilExpiry int
	ExpiryDate      *time.Time
}
