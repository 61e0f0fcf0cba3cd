package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
	"github.com/fahadwaseem8/whois-tracker/pkg/circuitbreaker"
)

const dateFormat = "January 2, 2006"

// Mailer renders notification intents into HTML emails and delivers them one
// recipient at a time. Deliveries run behind a circuit breaker so a down
// email API fails fast instead of stalling the sweep; rejected sends surface
// as ordinary notification failures and retry on the next sweep.
type Mailer struct {
	client  *ResendClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewMailer(client *ResendClient, logger *zap.Logger) *Mailer {
	return &Mailer{
		client:  client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// Send renders and delivers one intent to one watcher.
func (m *Mailer) Send(ctx context.Context, intent model.NotificationIntent, recipient model.Watcher) error {
	var subject, html string

	switch intent.Kind {
	case model.IntentExpiryApproaching:
		subject = fmt.Sprintf("Domain Expiration Alert: %s", intent.DomainName)
		html = renderExpiring(intent)
	case model.IntentExpiryChanged:
		subject = fmt.Sprintf("Domain Expiry Date Updated: %s", intent.DomainName)
		html = renderExpiryChanged(intent)
	case model.IntentDropped:
		subject = fmt.Sprintf("Domain Registration Dropped: %s", intent.DomainName)
		html = renderDropped(intent)
	default:
		return fmt.Errorf("unknown intent kind: %s", intent.Kind)
	}

	err := m.breaker.Execute(func() error {
		return m.client.Send(ctx, recipient.Email, subject, html)
	})
	if err != nil {
		m.logger.Error("Failed to send notification email",
			zap.String("domain", intent.DomainName),
			zap.String("kind", string(intent.Kind)),
			zap.Int("user_id", recipient.UserID),
			zap.Error(err),
		)
		return err
	}

	m.logger.Info("Notification email sent",
		zap.String("domain", intent.DomainName),
		zap.String("kind", string(intent.Kind)),
		zap.Int("user_id", recipient.UserID),
	)
	return nil
}

// UrgencyLevel maps remaining days to the priority shown in the alert.
func UrgencyLevel(daysUntilExpiry int) string {
	switch {
	case daysUntilExpiry <= 1:
		return "CRITICAL"
	case daysUntilExpiry <= 7:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

func renderExpiring(intent model.NotificationIntent) string {
	dayWord := "days"
	if intent.DaysUntilExpiry == 1 {
		dayWord = "day"
	}

	var b strings.Builder
	writeHeader(&b, "Domain Expiration Alert")
	b.WriteString(`<p>This is an automated notification regarding your tracked domain.</p>`)
	b.WriteString(`<div class="info-section">`)
	fmt.Fprintf(&b, `<p><strong>Domain:</strong> %s</p>`, intent.DomainName)
	fmt.Fprintf(&b, `<p><strong>Expiry Date:</strong> %s</p>`, formatDate(intent.ExpiryDate))
	fmt.Fprintf(&b, `<p><strong>Days Remaining:</strong> %d %s</p>`, intent.DaysUntilExpiry, dayWord)
	fmt.Fprintf(&b, `<p><strong>Priority:</strong> %s</p>`, UrgencyLevel(intent.DaysUntilExpiry))
	b.WriteString(`</div>`)
	b.WriteString(`<p><strong>Action Required:</strong></p>`)
	b.WriteString(`<p>Please renew your domain registration before the expiry date to prevent service disruption.</p>`)
	writeFooter(&b, fmt.Sprintf("You are receiving this because %s is in your monitored domains list.", intent.DomainName))
	return b.String()
}

func renderExpiryChanged(intent model.NotificationIntent) string {
	status := "Shortened"
	summary := "The domain expiration date has been moved to an earlier date."
	if intent.NewExpiryDate != nil && intent.OldExpiryDate != nil && intent.NewExpiryDate.After(*intent.OldExpiryDate) {
		status = "Extended"
		summary = "The domain expiration date has been extended."
	}

	var b strings.Builder
	writeHeader(&b, "Domain Expiry Date Updated")
	b.WriteString(`<p>Our monitoring system has detected a change in the expiration date for your tracked domain.</p>`)
	b.WriteString(`<div class="info-section">`)
	fmt.Fprintf(&b, `<p><strong>Domain:</strong> %s</p>`, intent.DomainName)
	fmt.Fprintf(&b, `<p><strong>Previous Expiry Date:</strong> %s</p>`, formatDate(intent.OldExpiryDate))
	fmt.Fprintf(&b, `<p><strong>New Expiry Date:</strong> %s</p>`, formatDate(intent.NewExpiryDate))
	fmt.Fprintf(&b, `<p><strong>Status:</strong> %s</p>`, status)
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<p>%s</p>`, summary)
	writeFooter(&b, "Change detected during routine WHOIS data synchronization.")
	return b.String()
}

func renderDropped(intent model.NotificationIntent) string {
	var b strings.Builder
	writeHeader(&b, "Domain Registration Dropped")
	b.WriteString(`<p>Our monitoring system can no longer find registration data for your tracked domain. It may have been de-registered or dropped by its registry.</p>`)
	b.WriteString(`<div class="info-section">`)
	fmt.Fprintf(&b, `<p><strong>Domain:</strong> %s</p>`, intent.DomainName)
	fmt.Fprintf(&b, `<p><strong>Last Known Expiry Date:</strong> %s</p>`, formatDate(intent.LastKnownExpiryDate))
	b.WriteString(`</div>`)
	b.WriteString(`<p>If you own this domain, verify its registration status with your registrar immediately.</p>`)
	writeFooter(&b, "Change detected during routine WHOIS data synchronization.")
	return b.String()
}

func writeHeader(b *strings.Builder, title string) {
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>`)
	b.WriteString(`body { font-family: Arial, sans-serif; line-height: 1.6; color: #333333; padding: 20px; }`)
	b.WriteString(`.container { max-width: 600px; }`)
	b.WriteString(`.info-section { margin: 20px 0; padding: 15px 0; border-top: 1px solid #cccccc; border-bottom: 1px solid #cccccc; }`)
	b.WriteString(`.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #cccccc; font-size: 12px; color: #666666; }`)
	b.WriteString(`</style></head><body><div class="container">`)
	fmt.Fprintf(b, `<h2>%s</h2><p>Hello,</p>`, title)
}

func writeFooter(b *strings.Builder, note string) {
	b.WriteString(`<div class="footer"><p>WHOIS Tracker - Automated Domain Monitoring</p>`)
	fmt.Fprintf(b, `<p>%s</p></div></body></html>`, note)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(dateFormat)
}
