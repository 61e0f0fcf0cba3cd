package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type fakeStore struct {
	domains   []model.Domain
	snapshots map[int]*model.WhoisSnapshot
	watchers  map[int][]model.Watcher

	upsertErr  map[int]error
	touchedAt  map[int]time.Time
	claimCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[int]*model.WhoisSnapshot),
		watchers:  make(map[int][]model.Watcher),
		upsertErr: make(map[int]error),
		touchedAt: make(map[int]time.Time),
	}
}

func (s *fakeStore) ListTrackedDomains(ctx context.Context) ([]model.Domain, error) {
	return s.domains, nil
}

func (s *fakeStore) GetSnapshot(ctx context.Context, domainID int) (*model.WhoisSnapshot, error) {
	snap, ok := s.snapshots[domainID]
	if !ok {
		return nil, nil
	}
	copied := *snap
	return &copied, nil
}

func (s *fakeStore) UpsertSnapshot(ctx context.Context, domainID int, snap model.WhoisSnapshot) error {
	if err := s.upsertErr[domainID]; err != nil {
		return err
	}
	stored := snap
	stored.DomainID = domainID
	if prev, ok := s.snapshots[domainID]; ok {
		stored.LastNotificationSentAt = prev.LastNotificationSentAt
	}
	s.snapshots[domainID] = &stored
	return nil
}

func (s *fakeStore) TouchLastChecked(ctx context.Context, domainID int, t time.Time) error {
	s.touchedAt[domainID] = t
	return nil
}

func (s *fakeStore) ListWatchers(ctx context.Context, domainID int) ([]model.Watcher, error) {
	return s.watchers[domainID], nil
}

func (s *fakeStore) ListSnapshotsWithExpiry(ctx context.Context) ([]model.Domain, []model.WhoisSnapshot, error) {
	var domains []model.Domain
	var snaps []model.WhoisSnapshot
	for _, d := range s.domains {
		snap, ok := s.snapshots[d.ID]
		if !ok || snap.ExpiryDate == nil {
			continue
		}
		domains = append(domains, d)
		snaps = append(snaps, *snap)
	}
	return domains, snaps, nil
}

func (s *fakeStore) SetNotificationSentAt(ctx context.Context, domainID int, t time.Time) error {
	if snap, ok := s.snapshots[domainID]; ok {
		stamped := t
		snap.LastNotificationSentAt = &stamped
	}
	return nil
}

func (s *fakeStore) ClaimNotificationSlot(ctx context.Context, domainID int, now time.Time, window time.Duration) (bool, error) {
	s.claimCalls++
	snap, ok := s.snapshots[domainID]
	if !ok {
		return false, nil
	}
	if snap.LastNotificationSentAt != nil && snap.LastNotificationSentAt.After(now.Add(-window)) {
		return false, nil
	}
	stamped := now
	snap.LastNotificationSentAt = &stamped
	return true, nil
}

type fakeProvider struct {
	results map[string]model.FetchedWhois
	errs    map[string]error
	fetched []string
}

func (p *fakeProvider) Fetch(ctx context.Context, domainName string) (model.FetchedWhois, error) {
	p.fetched = append(p.fetched, domainName)
	if err := p.errs[domainName]; err != nil {
		return model.FetchedWhois{}, err
	}
	return p.results[domainName], nil
}

type sentMail struct {
	intent    model.NotificationIntent
	recipient model.Watcher
}

type fakeSender struct {
	sent    []sentMail
	failFor map[string]error
}

func (s *fakeSender) Send(ctx context.Context, intent model.NotificationIntent, recipient model.Watcher) error {
	if err := s.failFor[recipient.Email]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMail{intent: intent, recipient: recipient})
	return nil
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func newTestSweeper(store *fakeStore, provider *fakeProvider, sender *fakeSender, clock Clock) *Sweeper {
	return NewSweeper(store, provider, sender, clock, nil, nil, Options{
		ThresholdDays:  []int{30, 7, 1},
		CooldownWindow: 12 * time.Hour,
	}, zap.NewNop())
}

func TestSweepUpdatesSnapshotAndLastChecked(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"example.com": {ExpiryDate: tsp("2025-06-01T00:00:00Z"), RawText: "raw"},
	}}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, sender.sent) // first observation, no intents

	require.Contains(t, store.snapshots, 1)
	assert.True(t, store.snapshots[1].ExpiryDate.Equal(ts("2025-06-01T00:00:00Z")))
	assert.Equal(t, clock.now, store.touchedAt[1])
}

func TestSweepFetchErrorIsolation(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{
		{ID: 1, DomainName: "broken.com"},
		{ID: 2, DomainName: "fine.com"},
	}

	provider := &fakeProvider{
		results: map[string]model.FetchedWhois{
			"fine.com": {ExpiryDate: tsp("2025-06-01T00:00:00Z")},
		},
		errs: map[string]error{
			"broken.com": errors.New("whois server unreachable"),
		},
	}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Domain broken.com")

	// The failed domain keeps no snapshot and no last_checked update.
	assert.NotContains(t, store.snapshots, 1)
	assert.NotContains(t, store.touchedAt, 1)

	// The healthy domain processed after it is untouched by the failure.
	assert.Contains(t, store.snapshots, 2)
	assert.Equal(t, []string{"broken.com", "fine.com"}, provider.fetched)
}

func TestSweepDroppedNotification(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{DomainID: 1, ExpiryDate: tsp("2024-05-01T00:00:00Z")}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "a@example.org"}, {UserID: 11, Email: "b@example.org"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"example.com": {RawText: "No match for example.com"},
	}}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.NotificationsSent)
	require.Len(t, sender.sent, 2)
	for _, mail := range sender.sent {
		assert.Equal(t, model.IntentDropped, mail.intent.Kind)
		require.NotNil(t, mail.intent.LastKnownExpiryDate)
		assert.True(t, mail.intent.LastKnownExpiryDate.Equal(ts("2024-05-01T00:00:00Z")))
	}

	// Successful sends stamp the shared notification timestamp.
	require.NotNil(t, store.snapshots[1].LastNotificationSentAt)
}

func TestSweepPersistErrorSuppressesNotifications(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{DomainID: 1, ExpiryDate: tsp("2024-05-01T00:00:00Z")}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "a@example.org"}}
	store.upsertErr[1] = errors.New("disk full")

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"example.com": {RawText: "No match for example.com"}, // would be a drop
	}}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, sender.sent, "persisted and notified state must not diverge")
	assert.Equal(t, 0, report.NotificationsSent)
}

func TestSweepWatcherFailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{DomainID: 1, ExpiryDate: tsp("2024-05-01T00:00:00Z")}
	store.watchers[1] = []model.Watcher{
		{UserID: 10, Email: "x@example.org"},
		{UserID: 11, Email: "y@example.org"},
	}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"example.com": {ExpiryDate: tsp("2024-09-01T00:00:00Z")},
	}}
	sender := &fakeSender{failFor: map[string]error{"x@example.org": errors.New("mailbox full")}}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsSent)
	assert.Equal(t, 1, report.NotificationsFailed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "y@example.org", sender.sent[0].recipient.Email)
	assert.Equal(t, model.IntentExpiryChanged, sender.sent[0].intent.Kind)

	// The snapshot itself persisted despite the partial delivery failure.
	assert.True(t, store.snapshots[1].ExpiryDate.Equal(ts("2024-09-01T00:00:00Z")))
}

func TestSweepAllWatchersFailLeavesCooldownUntouched(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{DomainID: 1, ExpiryDate: tsp("2024-05-01T00:00:00Z")}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "x@example.org"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"example.com": {ExpiryDate: tsp("2024-09-01T00:00:00Z")},
	}}
	sender := &fakeSender{failFor: map[string]error{"x@example.org": errors.New("smtp down")}}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsFailed)
	assert.Nil(t, store.snapshots[1].LastNotificationSentAt, "failed sends must not consume the cooldown")
}

func TestThresholdPassExactMatch(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{
		{ID: 1, DomainName: "thirty.com"},
		{ID: 2, DomainName: "nearly.com"},
	}
	// 30 days out exactly; expiry checked against now = 2024-01-01.
	store.snapshots[1] = &model.WhoisSnapshot{DomainID: 1, ExpiryDate: tsp("2024-01-31T00:00:00Z")}
	// 29 days out: no exact threshold match, silently skipped.
	store.snapshots[2] = &model.WhoisSnapshot{DomainID: 2, ExpiryDate: tsp("2024-01-30T00:00:00Z")}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "a@example.org"}}
	store.watchers[2] = []model.Watcher{{UserID: 10, Email: "a@example.org"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"thirty.com": {ExpiryDate: tsp("2024-01-31T00:00:00Z")},
		"nearly.com": {ExpiryDate: tsp("2024-01-30T00:00:00Z")},
	}}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, model.IntentExpiryApproaching, sender.sent[0].intent.Kind)
	assert.Equal(t, "thirty.com", sender.sent[0].intent.DomainName)
	assert.Equal(t, 30, sender.sent[0].intent.ThresholdDays)
	assert.Equal(t, 1, report.NotificationsSent)
	assert.Equal(t, 1, store.claimCalls)
}

func TestThresholdPassCooldownSuppression(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "thirty.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{
		DomainID:               1,
		ExpiryDate:             tsp("2024-01-31T06:00:00Z"),
		LastNotificationSentAt: tsp("2024-01-01T01:00:00Z"),
	}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "a@example.org"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"thirty.com": {ExpiryDate: tsp("2024-01-31T06:00:00Z")},
	}}
	sender := &fakeSender{}
	// 5 hours after the last notification: inside the 12h cooldown.
	clock := &fixedClock{now: ts("2024-01-01T06:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, report.NotificationsSent)
}

func TestThresholdPassAfterCooldownExpires(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "seven.com"}}
	store.snapshots[1] = &model.WhoisSnapshot{
		DomainID:               1,
		ExpiryDate:             tsp("2024-01-08T00:00:00Z"),
		LastNotificationSentAt: tsp("2023-12-30T00:00:00Z"),
	}
	store.watchers[1] = []model.Watcher{{UserID: 10, Email: "a@example.org"}}

	provider := &fakeProvider{results: map[string]model.FetchedWhois{
		"seven.com": {ExpiryDate: tsp("2024-01-08T00:00:00Z")},
	}}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 7, sender.sent[0].intent.ThresholdDays)
	assert.Equal(t, 1, report.NotificationsSent)
	// The cooldown stamp moved forward to this send.
	require.NotNil(t, store.snapshots[1].LastNotificationSentAt)
	assert.True(t, store.snapshots[1].LastNotificationSentAt.Equal(clock.now))
}

type fakeLock struct {
	held bool
}

func (l *fakeLock) Acquire(ctx context.Context, sweepID string) bool { return !l.held }
func (l *fakeLock) Release(ctx context.Context, sweepID string)      {}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	store := newFakeStore()
	store.domains = []model.Domain{{ID: 1, DomainName: "example.com"}}
	provider := &fakeProvider{}
	sender := &fakeSender{}

	sweeper := NewSweeper(store, provider, sender, &fixedClock{now: ts("2024-01-01T00:00:00Z")},
		nil, &fakeLock{held: true}, Options{ThresholdDays: []int{30, 7, 1}, CooldownWindow: 12 * time.Hour}, zap.NewNop())

	_, err := sweeper.RunSweep(context.Background())
	require.ErrorIs(t, err, ErrSweepInProgress)
	assert.Empty(t, provider.fetched)
}

func TestSweepReportErrorsCollected(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 3; i++ {
		store.domains = append(store.domains, model.Domain{ID: i, DomainName: fmt.Sprintf("d%d.com", i)})
	}
	provider := &fakeProvider{
		results: map[string]model.FetchedWhois{"d2.com": {}},
		errs: map[string]error{
			"d1.com": errors.New("timeout"),
			"d3.com": errors.New("refused"),
		},
	}
	sender := &fakeSender{}
	clock := &fixedClock{now: ts("2024-01-01T00:00:00Z")}

	report, err := newTestSweeper(store, provider, sender, clock).RunSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.Errors, 2)
}
