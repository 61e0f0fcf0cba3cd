package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "github.com/fahadwaseem8/whois-tracker/contracts/mq"
	"github.com/fahadwaseem8/whois-tracker/internal/model"
	"github.com/fahadwaseem8/whois-tracker/internal/reconcile"
	"github.com/fahadwaseem8/whois-tracker/pkg/logger"
	"github.com/fahadwaseem8/whois-tracker/pkg/metrics"
	"github.com/fahadwaseem8/whois-tracker/pkg/mq"
	"github.com/fahadwaseem8/whois-tracker/pkg/trace"
	"github.com/fahadwaseem8/whois-tracker/pkg/util"
)

// ErrSweepInProgress is returned when another sweep invocation holds the lock.
var ErrSweepInProgress = errors.New("sweep already in progress")

// DomainStore is the durable record of tracked domains, snapshots and watches.
type DomainStore interface {
	ListTrackedDomains(ctx context.Context) ([]model.Domain, error)
	GetSnapshot(ctx context.Context, domainID int) (*model.WhoisSnapshot, error)
	UpsertSnapshot(ctx context.Context, domainID int, snap model.WhoisSnapshot) error
	TouchLastChecked(ctx context.Context, domainID int, t time.Time) error
	ListWatchers(ctx context.Context, domainID int) ([]model.Watcher, error)
	ListSnapshotsWithExpiry(ctx context.Context) ([]model.Domain, []model.WhoisSnapshot, error)
	SetNotificationSentAt(ctx context.Context, domainID int, t time.Time) error
	ClaimNotificationSlot(ctx context.Context, domainID int, now time.Time, window time.Duration) (bool, error)
}

// WhoisProvider fetches normalized registration data for one domain.
type WhoisProvider interface {
	Fetch(ctx context.Context, domainName string) (model.FetchedWhois, error)
}

// NotificationSender delivers one intent to one watcher.
type NotificationSender interface {
	Send(ctx context.Context, intent model.NotificationIntent, recipient model.Watcher) error
}

// Clock is injected so threshold and cooldown decisions are testable.
type Clock interface {
	Now() time.Time
}

// EventPublisher mirrors the mq.Publisher surface; nil disables publishing.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Lock serializes sweep invocations; nil disables the guard.
type Lock interface {
	Acquire(ctx context.Context, sweepID string) bool
	Release(ctx context.Context, sweepID string)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Report aggregates the outcome of one sweep.
type Report struct {
	Success             int
	Failed              int
	Errors              []string
	NotificationsSent   int
	NotificationsFailed int
}

type Options struct {
	ThresholdDays  []int
	CooldownWindow time.Duration
}

// Sweeper drives one full reconciliation cycle across all tracked domains,
// then runs the expiry threshold pass over the updated snapshots.
type Sweeper struct {
	store     DomainStore
	provider  WhoisProvider
	sender    NotificationSender
	clock     Clock
	publisher EventPublisher
	lock      Lock
	opts      Options
	logger    *zap.Logger
}

func NewSweeper(
	store DomainStore,
	provider WhoisProvider,
	sender NotificationSender,
	clock Clock,
	publisher EventPublisher,
	lock Lock,
	opts Options,
	log *zap.Logger,
) *Sweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sweeper{
		store:     store,
		provider:  provider,
		sender:    sender,
		clock:     clock,
		publisher: publisher,
		lock:      lock,
		opts:      opts,
		logger:    log,
	}
}

type domainStatus string

const (
	statusSuccess      domainStatus = "success"
	statusFetchError   domainStatus = "fetch_error"
	statusPersistError domainStatus = "persist_error"
)

// domainOutcome is the typed result of processing one domain; the report is
// folded from these.
type domainOutcome struct {
	status              domainStatus
	err                 error
	notificationsSent   int
	notificationsFailed int
}

// RunSweep processes every tracked domain in staleness order, isolating
// per-domain failures, and finishes with the expiry threshold pass. Only a
// store that cannot even list domains aborts the sweep.
func (s *Sweeper) RunSweep(ctx context.Context) (Report, error) {
	sweepID := trace.NewSweepID()
	ctx = trace.WithContext(ctx, sweepID)
	log := logger.WithSweep(ctx, s.logger)

	if s.lock != nil {
		if !s.lock.Acquire(ctx, sweepID) {
			return Report{}, ErrSweepInProgress
		}
		defer s.lock.Release(ctx, sweepID)
	}

	started := s.clock.Now()
	defer func() {
		metrics.RecordSweepDuration(time.Since(started))
	}()

	var report Report

	domains, err := s.store.ListTrackedDomains(ctx)
	if err != nil {
		log.Error("Failed to list tracked domains", zap.Error(err))
		return report, fmt.Errorf("list tracked domains: %w", err)
	}

	log.Info("Sweep started", zap.Int("domain_count", len(domains)))

	for _, domain := range domains {
		outcome := s.processDomain(ctx, log, domain)

		metrics.IncrementDomainChecked(string(outcome.status))
		report.NotificationsSent += outcome.notificationsSent
		report.NotificationsFailed += outcome.notificationsFailed

		if outcome.status == statusSuccess {
			report.Success++
			continue
		}
		report.Failed++
		if outcome.err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Domain %s: %v", domain.DomainName, outcome.err))
		}
	}

	s.runThresholdPass(ctx, log, &report)

	log.Info("Sweep completed",
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
		zap.Int("notifications_sent", report.NotificationsSent),
		zap.Int("notifications_failed", report.NotificationsFailed),
	)
	return report, nil
}

// processDomain runs fetch, reconcile, persist and notify for one domain. A
// fetch failure leaves the stored snapshot untouched; a persist failure
// swallows any computed intents so the persisted and notified states never
// diverge.
func (s *Sweeper) processDomain(ctx context.Context, log *zap.Logger, domain model.Domain) domainOutcome {
	fetchedAt := s.clock.Now()

	fresh, err := s.provider.Fetch(ctx, domain.DomainName)
	if err != nil {
		_, errType := util.ClassifyError(err)
		log.Warn("WHOIS fetch failed",
			zap.String("domain", domain.DomainName),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return domainOutcome{status: statusFetchError, err: err}
	}

	old, err := s.store.GetSnapshot(ctx, domain.ID)
	if err != nil {
		log.Error("Failed to load snapshot",
			zap.String("domain", domain.DomainName),
			zap.Error(err),
		)
		return domainOutcome{status: statusPersistError, err: err}
	}

	next, intents := reconcile.Reconcile(domain.DomainName, old, fresh, fetchedAt)

	if err := s.store.UpsertSnapshot(ctx, domain.ID, next); err != nil {
		log.Error("Failed to persist snapshot",
			zap.String("domain", domain.DomainName),
			zap.Error(err),
		)
		return domainOutcome{status: statusPersistError, err: err}
	}
	if err := s.store.TouchLastChecked(ctx, domain.ID, fetchedAt); err != nil {
		log.Error("Failed to update last_checked_at",
			zap.String("domain", domain.DomainName),
			zap.Error(err),
		)
		return domainOutcome{status: statusPersistError, err: err}
	}

	outcome := domainOutcome{status: statusSuccess}
	if len(intents) == 0 {
		return outcome
	}

	sent, failed := s.deliverIntents(ctx, log, domain, intents)
	outcome.notificationsSent = sent
	outcome.notificationsFailed = failed

	if sent > 0 {
		if err := s.store.SetNotificationSentAt(ctx, domain.ID, s.clock.Now()); err != nil {
			log.Error("Failed to stamp notification time",
				zap.String("domain", domain.DomainName),
				zap.Error(err),
			)
		}
	}
	return outcome
}

// deliverIntents fans the domain's intents out to every current watcher.
// Delivery failures are independent per watcher.
func (s *Sweeper) deliverIntents(ctx context.Context, log *zap.Logger, domain model.Domain, intents []model.NotificationIntent) (sent, failed int) {
	watchers, err := s.store.ListWatchers(ctx, domain.ID)
	if err != nil {
		log.Error("Failed to resolve watchers",
			zap.String("domain", domain.DomainName),
			zap.Error(err),
		)
		return 0, 0
	}

	for _, intent := range intents {
		s.publishEvent(ctx, log, intent)

		for _, watcher := range watchers {
			if err := s.sender.Send(ctx, intent, watcher); err != nil {
				failed++
				metrics.IncrementNotification(string(intent.Kind), "failed")
				continue
			}
			sent++
			metrics.IncrementNotification(string(intent.Kind), "sent")
		}
	}
	return sent, failed
}

// runThresholdPass scans every stored snapshot with an expiry date and sends
// approaching-expiry alerts for exact threshold-day matches, subject to the
// per-domain cooldown.
func (s *Sweeper) runThresholdPass(ctx context.Context, log *zap.Logger, report *Report) {
	domains, snapshots, err := s.store.ListSnapshotsWithExpiry(ctx)
	if err != nil {
		log.Error("Threshold pass failed to list snapshots", zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("threshold pass: %v", err))
		return
	}

	for i, snap := range snapshots {
		domain := domains[i]
		now := s.clock.Now()

		threshold, days, ok := reconcile.ApproachingThreshold(*snap.ExpiryDate, now, s.opts.ThresholdDays)
		if !ok {
			continue
		}

		if snap.LastNotificationSentAt != nil && now.Sub(*snap.LastNotificationSentAt) < s.opts.CooldownWindow {
			log.Debug("Expiry alert suppressed by cooldown",
				zap.String("domain", domain.DomainName),
				zap.Int("days_until_expiry", days),
			)
			continue
		}

		intent := model.NotificationIntent{
			Kind:            model.IntentExpiryApproaching,
			DomainName:      domain.DomainName,
			ThresholdDays:   threshold,
			DaysUntilExpiry: days,
			ExpiryDate:      snap.ExpiryDate,
		}

		sent, failed := s.deliverIntents(ctx, log, domain, []model.NotificationIntent{intent})
		report.NotificationsSent += sent
		report.NotificationsFailed += failed

		if sent > 0 {
			claimed, err := s.store.ClaimNotificationSlot(ctx, domain.ID, now, s.opts.CooldownWindow)
			if err != nil {
				log.Error("Failed to claim notification slot",
					zap.String("domain", domain.DomainName),
					zap.Error(err),
				)
			} else if !claimed {
				log.Warn("Notification slot already claimed by a concurrent sweep",
					zap.String("domain", domain.DomainName),
				)
			}
		}
	}
}

func (s *Sweeper) publishEvent(ctx context.Context, log *zap.Logger, intent model.NotificationIntent) {
	if s.publisher == nil {
		return
	}

	sweepID := trace.FromContext(ctx)

	var routingKey string
	var payload any
	switch intent.Kind {
	case model.IntentDropped:
		routingKey = mq.RoutingKeyDropped
		payload = mqcontracts.DomainDroppedPayload{
			SweepID:             sweepID,
			DomainName:          intent.DomainName,
			LastKnownExpiryDate: intent.LastKnownExpiryDate,
		}
	case model.IntentExpiryChanged:
		routingKey = mq.RoutingKeyExpiryChanged
		payload = mqcontracts.DomainExpiryChangedPayload{
			SweepID:       sweepID,
			DomainName:    intent.DomainName,
			OldExpiryDate: intent.OldExpiryDate,
			NewExpiryDate: intent.NewExpiryDate,
		}
	case model.IntentExpiryApproaching:
		routingKey = mq.RoutingKeyExpiring
		payload = mqcontracts.DomainExpiringPayload{
			SweepID:         sweepID,
			DomainName:      intent.DomainName,
			ExpiryDate:      intent.ExpiryDate,
			ThresholdDays:   intent.ThresholdDays,
			DaysUntilExpiry: intent.DaysUntilExpiry,
		}
	default:
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		log.Warn("Failed to publish domain event",
			zap.String("routing_key", routingKey),
			zap.String("domain", intent.DomainName),
			zap.Error(err),
		)
	}
}
