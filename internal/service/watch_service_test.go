package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
)

type memoryStore struct {
	nextID    int
	domains   map[string]*model.Domain
	watches   map[[2]int]bool
	snapshots map[int]*model.WhoisSnapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:    1,
		domains:   make(map[string]*model.Domain),
		watches:   make(map[[2]int]bool),
		snapshots: make(map[int]*model.WhoisSnapshot),
	}
}

func (m *memoryStore) FindDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	return m.domains[name], nil
}

func (m *memoryStore) CreateDomain(ctx context.Context, name string) (*model.Domain, error) {
	if d, ok := m.domains[name]; ok {
		return d, nil
	}
	d := &model.Domain{ID: m.nextID, DomainName: name, CreatedAt: time.Now()}
	m.nextID++
	m.domains[name] = d
	return d, nil
}

func (m *memoryStore) IsUserWatching(ctx context.Context, userID, domainID int) (bool, error) {
	return m.watches[[2]int{userID, domainID}], nil
}

func (m *memoryStore) AddWatch(ctx context.Context, userID, domainID int) error {
	m.watches[[2]int{userID, domainID}] = true
	return nil
}

func (m *memoryStore) RemoveWatch(ctx context.Context, userID, domainID int) (bool, error) {
	key := [2]int{userID, domainID}
	if !m.watches[key] {
		return false, nil
	}
	delete(m.watches, key)
	return true, nil
}

func (m *memoryStore) ListDomainsByUser(ctx context.Context, userID int) ([]model.Domain, map[int]*model.WhoisSnapshot, error) {
	var domains []model.Domain
	snapshots := make(map[int]*model.WhoisSnapshot)
	for _, d := range m.domains {
		if m.watches[[2]int{userID, d.ID}] {
			domains = append(domains, *d)
			if s, ok := m.snapshots[d.ID]; ok {
				snapshots[d.ID] = s
			}
		}
	}
	return domains, snapshots, nil
}

func (m *memoryStore) GetSnapshot(ctx context.Context, domainID int) (*model.WhoisSnapshot, error) {
	return m.snapshots[domainID], nil
}

func newTestService(store Store) *WatchService {
	return NewWatchService(store, zap.NewNop())
}

func TestWatchNormalizesAndCreates(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	domain, err := svc.Watch(ctx, 1, "https://www.Example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain.DomainName)

	// A second user watching the same domain reuses the shared record.
	again, err := svc.Watch(ctx, 2, "example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ID, again.ID)
	assert.Len(t, store.domains, 1)
}

func TestWatchConflict(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()

	_, err := svc.Watch(ctx, 1, "example.com")
	require.NoError(t, err)

	_, err = svc.Watch(ctx, 1, "example.com")
	assert.ErrorIs(t, err, ErrAlreadyWatching)
}

func TestWatchRejectsMalformedNames(t *testing.T) {
	svc := newTestService(newMemoryStore())

	_, err := svc.Watch(context.Background(), 1, "not a domain at all")
	assert.Error(t, err)
}

func TestUnwatchKeepsDomainAndSnapshot(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	domain, err := svc.Watch(ctx, 1, "example.com")
	require.NoError(t, err)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.snapshots[domain.ID] = &model.WhoisSnapshot{DomainID: domain.ID, ExpiryDate: &expiry}

	require.NoError(t, svc.Unwatch(ctx, 1, "example.com"))

	// Last watcher gone, but fetch history survives.
	assert.Contains(t, store.domains, "example.com")
	assert.Contains(t, store.snapshots, domain.ID)

	assert.ErrorIs(t, svc.Unwatch(ctx, 1, "example.com"), ErrNotWatching)
	assert.ErrorIs(t, svc.Unwatch(ctx, 1, "never-seen.com"), ErrDomainNotFound)
}

func TestGetWhois(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	domain, err := svc.Watch(ctx, 1, "example.com")
	require.NoError(t, err)

	// Tracked but never fetched: nil snapshot, no error.
	got, err := svc.GetWhois(ctx, 1, "example.com")
	require.NoError(t, err)
	assert.Nil(t, got.Snapshot)

	registrar := "Example Registrar"
	store.snapshots[domain.ID] = &model.WhoisSnapshot{DomainID: domain.ID, Registrar: &registrar}

	got, err = svc.GetWhois(ctx, 1, "example.com")
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "Example Registrar", *got.Snapshot.Registrar)

	_, err = svc.GetWhois(ctx, 99, "example.com")
	assert.ErrorIs(t, err, ErrNotWatching)

	_, err = svc.GetWhois(ctx, 1, "unknown.com")
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestListWatched(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Watch(ctx, 1, "one.com")
	require.NoError(t, err)
	_, err = svc.Watch(ctx, 1, "two.com")
	require.NoError(t, err)
	_, err = svc.Watch(ctx, 2, "three.com")
	require.NoError(t, err)

	watched, err := svc.ListWatched(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, watched, 2)
}
