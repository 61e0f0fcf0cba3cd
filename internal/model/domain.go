package model

import "time"

// Domain is a tracked domain name, shared by every user watching it.
type Domain struct {
	ID            int
	DomainName    string
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// WhoisSnapshot is the last known WHOIS state for a domain. At most one
// snapshot exists per domain; absence means the domain was never
// successfully fetched.
type WhoisSnapshot struct {
	ID                     int
	DomainID               int
	Registrar              *string
	ExpiryDate             *time.Time
	CreationDate           *time.Time
	RawText                string
	UpdatedAt              time.Time
	LastNotificationSentAt *time.Time
}

// FetchedWhois holds the normalized fields of a single WHOIS fetch.
type FetchedWhois struct {
	Registrar    *string
	ExpiryDate   *time.Time
	CreationDate *time.Time
	RawText      string
}

// Watcher is a user watching a domain, resolved to a deliverable address.
type Watcher struct {
	UserID int
	Email  string
}
