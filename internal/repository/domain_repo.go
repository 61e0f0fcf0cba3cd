package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fahadwaseem8/whois-tracker/internal/model"
	"github.com/fahadwaseem8/whois-tracker/pkg/metrics"
)

type DomainRepository struct {
	db *pgxpool.Pool
}

func NewDomainRepository(db *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{db: db}
}

// ListTrackedDomains returns every tracked domain, stalest first. Domains
// that were never checked sort before everything else so they are picked up
// immediately.
func (r *DomainRepository) ListTrackedDomains(ctx context.Context) ([]model.Domain, error) {
	start := time.Now()
	query := `
        SELECT id, domain_name, last_checked_at, created_at
        FROM domains
        ORDER BY last_checked_at ASC NULLS FIRST, id ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.DomainName, &d.LastCheckedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	metrics.RecordDBQueryDuration("list", "domains", time.Since(start))
	return domains, rows.Err()
}

// FindDomainByName returns the domain with the given normalized name, or nil.
func (r *DomainRepository) FindDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	query := `
        SELECT id, domain_name, last_checked_at, created_at
        FROM domains
        WHERE domain_name = $1
    `
	var d model.Domain
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.DomainName, &d.LastCheckedAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDomain inserts a domain record for a normalized name. Concurrent
// creations of the same name resolve to the existing row.
func (r *DomainRepository) CreateDomain(ctx context.Context, name string) (*model.Domain, error) {
	query := `
        INSERT INTO domains (domain_name)
        VALUES ($1)
        ON CONFLICT (domain_name) DO UPDATE SET domain_name = EXCLUDED.domain_name
        RETURNING id, domain_name, last_checked_at, created_at
    `
	var d model.Domain
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.DomainName, &d.LastCheckedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// IsUserWatching reports whether the user already watches the domain.
func (r *DomainRepository) IsUserWatching(ctx context.Context, userID, domainID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM user_domains WHERE user_id = $1 AND domain_id = $2
        )
    `
	var watching bool
	err := r.db.QueryRow(ctx, query, userID, domainID).Scan(&watching)
	return watching, err
}

// AddWatch links a user to a domain.
func (r *DomainRepository) AddWatch(ctx context.Context, userID, domainID int) error {
	query := `
        INSERT INTO user_domains (user_id, domain_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, userID, domainID)
	return err
}

// RemoveWatch unlinks a user from a domain. The domain row and its snapshot
// are left in place; tracking history is system-wide, not user-owned.
func (r *DomainRepository) RemoveWatch(ctx context.Context, userID, domainID int) (bool, error) {
	query := `
        DELETE FROM user_domains WHERE user_id = $1 AND domain_id = $2
    `
	tag, err := r.db.Exec(ctx, query, userID, domainID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListDomainsByUser returns the domains a user watches together with their
// snapshots (nil snapshot when the domain was never fetched).
func (r *DomainRepository) ListDomainsByUser(ctx context.Context, userID int) ([]model.Domain, map[int]*model.WhoisSnapshot, error) {
	query := `
        SELECT d.id, d.domain_name, d.last_checked_at, d.created_at,
               w.id, w.registrar, w.expiry_date, w.creation_date, w.raw_text,
               w.updated_at, w.last_notification_sent_at
        FROM user_domains ud
        JOIN domains d ON d.id = ud.domain_id
        LEFT JOIN whois_records w ON w.domain_id = d.id
        WHERE ud.user_id = $1
        ORDER BY ud.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var domains []model.Domain
	snapshots := make(map[int]*model.WhoisSnapshot)
	for rows.Next() {
		var d model.Domain
		var snapID *int
		var registrar *string
		var expiry, creation, sentAt *time.Time
		var rawText *string
		var updatedAt *time.Time
		if err := rows.Scan(
			&d.ID, &d.DomainName, &d.LastCheckedAt, &d.CreatedAt,
			&snapID, &registrar, &expiry, &creation, &rawText, &updatedAt, &sentAt,
		); err != nil {
			return nil, nil, err
		}
		domains = append(domains, d)
		if snapID != nil {
			snapshots[d.ID] = &model.WhoisSnapshot{
				ID:                     *snapID,
				DomainID:               d.ID,
				Registrar:              registrar,
				ExpiryDate:             expiry,
				CreationDate:           creation,
				RawText:                *rawText,
				UpdatedAt:              *updatedAt,
				LastNotificationSentAt: sentAt,
			}
		}
	}
	return domains, snapshots, rows.Err()
}

// GetSnapshot returns the snapshot for a domain, or nil if it was never
// successfully fetched.
func (r *DomainRepository) GetSnapshot(ctx context.Context, domainID int) (*model.WhoisSnapshot, error) {
	query := `
        SELECT id, domain_id, registrar, expiry_date, creation_date, raw_text,
               updated_at, last_notification_sent_at
        FROM whois_records
        WHERE domain_id = $1
    `
	var s model.WhoisSnapshot
	err := r.db.QueryRow(ctx, query, domainID).Scan(
		&s.ID, &s.DomainID, &s.Registrar, &s.ExpiryDate, &s.CreationDate,
		&s.RawText, &s.UpdatedAt, &s.LastNotificationSentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnapshotsWithExpiry returns every snapshot carrying an expiry date,
// together with its domain name. Input to the expiry threshold pass.
func (r *DomainRepository) ListSnapshotsWithExpiry(ctx context.Context) ([]model.Domain, []model.WhoisSnapshot, error) {
	query := `
        SELECT d.id, d.domain_name, d.last_checked_at, d.created_at,
               w.id, w.domain_id, w.registrar, w.expiry_date, w.creation_date,
               w.raw_text, w.updated_at, w.last_notification_sent_at
        FROM whois_records w
        JOIN domains d ON d.id = w.domain_id
        WHERE w.expiry_date IS NOT NULL
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var domains []model.Domain
	var snapshots []model.WhoisSnapshot
	for rows.Next() {
		var d model.Domain
		var s model.WhoisSnapshot
		if err := rows.Scan(
			&d.ID, &d.DomainName, &d.LastCheckedAt, &d.CreatedAt,
			&s.ID, &s.DomainID, &s.Registrar, &s.ExpiryDate, &s.CreationDate,
			&s.RawText, &s.UpdatedAt, &s.LastNotificationSentAt,
		); err != nil {
			return nil, nil, err
		}
		domains = append(domains, d)
		snapshots = append(snapshots, s)
	}
	return domains, snapshots, rows.Err()
}

// UpsertSnapshot writes the fresh WHOIS fields for a domain, keyed by domain
// ID. last_notification_sent_at is deliberately not touched here; it belongs
// to the cooldown policy.
func (r *DomainRepository) UpsertSnapshot(ctx context.Context, domainID int, snap model.WhoisSnapshot) error {
	start := time.Now()
	query := `
        INSERT INTO whois_records (domain_id, registrar, expiry_date, creation_date, raw_text, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (domain_id) DO UPDATE SET
            registrar = EXCLUDED.registrar,
            expiry_date = EXCLUDED.expiry_date,
            creation_date = EXCLUDED.creation_date,
            raw_text = EXCLUDED.raw_text,
            updated_at = EXCLUDED.updated_at
    `
	_, err := r.db.Exec(ctx, query,
		domainID, snap.Registrar, snap.ExpiryDate, snap.CreationDate, snap.RawText, snap.UpdatedAt,
	)
	metrics.RecordDBQueryDuration("upsert", "whois_records", time.Since(start))
	return err
}

// TouchLastChecked records that a domain's fetch completed at t, whether or
// not anything changed.
func (r *DomainRepository) TouchLastChecked(ctx context.Context, domainID int, t time.Time) error {
	query := `
        UPDATE domains SET last_checked_at = $2 WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, domainID, t)
	return err
}

// ListWatchers resolves the users watching a domain to deliverable addresses.
func (r *DomainRepository) ListWatchers(ctx context.Context, domainID int) ([]model.Watcher, error) {
	query := `
        SELECT u.id, u.email
        FROM user_domains ud
        JOIN users u ON u.id = ud.user_id
        WHERE ud.domain_id = $1
        ORDER BY u.id
    `
	rows, err := r.db.Query(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watchers []model.Watcher
	for rows.Next() {
		var w model.Watcher
		if err := rows.Scan(&w.UserID, &w.Email); err != nil {
			return nil, err
		}
		watchers = append(watchers, w)
	}
	return watchers, rows.Err()
}

// SetNotificationSentAt stamps the domain's shared notification timestamp
// after a confirmed successful send.
func (r *DomainRepository) SetNotificationSentAt(ctx context.Context, domainID int, t time.Time) error {
	query := `
        UPDATE whois_records SET last_notification_sent_at = $2 WHERE domain_id = $1
    `
	_, err := r.db.Exec(ctx, query, domainID, t)
	return err
}

// ClaimNotificationSlot stamps last_notification_sent_at only when it is
// still unset or older than the cooldown window, in a single conditional
// update. Returns whether this caller won the slot; a racing sweep loses and
// must not send.
func (r *DomainRepository) ClaimNotificationSlot(ctx context.Context, domainID int, now time.Time, window time.Duration) (bool, error) {
	query := `
        UPDATE whois_records
        SET last_notification_sent_at = $2
        WHERE domain_id = $1
          AND (last_notification_sent_at IS NULL OR last_notification_sent_at <= $3)
    `
	tag, err := r.db.Exec(ctx, query, domainID, now, now.Add(-window))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
