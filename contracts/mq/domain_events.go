package mq

import "time"

// Payloads published to the domain.events exchange. Downstream consumers
// (webhooks, dashboards) bind on the routing keys declared in pkg/mq.

type DomainDroppedPayload struct {
	SweepID             string     `json:"sweep_id"`
	DomainName          string     `json:"domain_name"`
	LastKnownExpiryDate *time.Time `json:"last_known_expiry_date,omitempty"`
}

type DomainExpiryChangedPayload struct {
	SweepID       string     `json:"sweep_id"`
	DomainName    string     `json:"domain_name"`
	OldExpiryDate *time.Time `json:"old_expiry_date,omitempty"`
	NewExpiryDate *time.Time `json:"new_expiry_date,omitempty"`
}

type DomainExpiringPayload struct {
	SweepID         string     `json:"sweep_id"`
	DomainName      string     `json:"domain_name"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	ThresholdDays   int        `json:"threshold_days"`
	DaysUntilExpiry int        `json:"days_until_expiry"`
}
