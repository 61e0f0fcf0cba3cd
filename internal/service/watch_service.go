package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/internal/domainname"
	"github.com/fahadwaseem8/whois-tracker/internal/model"
)

var (
	ErrAlreadyWatching = errors.New("already watching this domain")
	ErrNotWatching     = errors.New("not watching this domain")
	ErrDomainNotFound  = errors.New("domain not found")
)

// Store is the slice of the domain repository the watch service needs.
type Store interface {
	FindDomainByName(ctx context.Context, name string) (*model.Domain, error)
	CreateDomain(ctx context.Context, name string) (*model.Domain, error)
	IsUserWatching(ctx context.Context, userID, domainID int) (bool, error)
	AddWatch(ctx context.Context, userID, domainID int) error
	RemoveWatch(ctx context.Context, userID, domainID int) (bool, error)
	ListDomainsByUser(ctx context.Context, userID int) ([]model.Domain, map[int]*model.WhoisSnapshot, error)
	GetSnapshot(ctx context.Context, domainID int) (*model.WhoisSnapshot, error)
}

// WatchService manages which users watch which domains. Domains are shared:
// the first watch request creates the domain, and removing the last watch
// keeps the domain and its snapshot so fetch history stays system-wide.
type WatchService struct {
	store  Store
	logger *zap.Logger
}

func NewWatchService(store Store, logger *zap.Logger) *WatchService {
	return &WatchService{
		store:  store,
		logger: logger,
	}
}

// Watch adds rawDomain to the user's watch list, creating the shared domain
// record on first sight. The name is normalized before anything touches the
// store.
func (s *WatchService) Watch(ctx context.Context, userID int, rawDomain string) (*model.Domain, error) {
	name, err := domainname.Normalize(rawDomain)
	if err != nil {
		return nil, err
	}

	domain, err := s.store.FindDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		domain, err = s.store.CreateDomain(ctx, name)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Tracking new domain",
			zap.String("domain", name),
			zap.Int("user_id", userID),
		)
	}

	watching, err := s.store.IsUserWatching(ctx, userID, domain.ID)
	if err != nil {
		return nil, err
	}
	if watching {
		return nil, ErrAlreadyWatching
	}

	if err := s.store.AddWatch(ctx, userID, domain.ID); err != nil {
		return nil, err
	}
	return domain, nil
}

// Unwatch removes rawDomain from the user's watch list.
func (s *WatchService) Unwatch(ctx context.Context, userID int, rawDomain string) error {
	name, err := domainname.Normalize(rawDomain)
	if err != nil {
		return err
	}

	domain, err := s.store.FindDomainByName(ctx, name)
	if err != nil {
		return err
	}
	if domain == nil {
		return ErrDomainNotFound
	}

	removed, err := s.store.RemoveWatch(ctx, userID, domain.ID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotWatching
	}
	return nil
}

// WatchedDomain pairs a watched domain with its snapshot, if any.
type WatchedDomain struct {
	Domain   model.Domain
	Snapshot *model.WhoisSnapshot
}

// ListWatched returns the user's watched domains with their last known WHOIS
// state.
func (s *WatchService) ListWatched(ctx context.Context, userID int) ([]WatchedDomain, error) {
	domains, snapshots, err := s.store.ListDomainsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	watched := make([]WatchedDomain, 0, len(domains))
	for _, d := range domains {
		watched = append(watched, WatchedDomain{
			Domain:   d,
			Snapshot: snapshots[d.ID],
		})
	}
	return watched, nil
}

// GetWhois returns the stored WHOIS view of one domain for a watching user.
// The snapshot is nil when the sweep has not reached the domain yet.
func (s *WatchService) GetWhois(ctx context.Context, userID int, rawDomain string) (*WatchedDomain, error) {
	name, err := domainname.Normalize(rawDomain)
	if err != nil {
		return nil, err
	}

	domain, err := s.store.FindDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, ErrDomainNotFound
	}

	watching, err := s.store.IsUserWatching(ctx, userID, domain.ID)
	if err != nil {
		return nil, err
	}
	if !watching {
		return nil, ErrNotWatching
	}

	snapshot, err := s.store.GetSnapshot(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	return &WatchedDomain{Domain: *domain, Snapshot: snapshot}, nil
}
