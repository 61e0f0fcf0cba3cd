package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tracking tables if they do not exist. The users
// table is owned by the account system; everything here only references it.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS domains (
            id SERIAL PRIMARY KEY,
            domain_name VARCHAR(255) NOT NULL UNIQUE,
            last_checked_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_domains_last_checked_at ON domains(last_checked_at)`,
		`CREATE TABLE IF NOT EXISTS user_domains (
            user_id INTEGER NOT NULL,
            domain_id INTEGER NOT NULL REFERENCES domains(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, domain_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_user_domains_domain_id ON user_domains(domain_id)`,
		`CREATE TABLE IF NOT EXISTS whois_records (
            id SERIAL PRIMARY KEY,
            domain_id INTEGER NOT NULL UNIQUE REFERENCES domains(id) ON DELETE CASCADE,
            registrar TEXT,
            expiry_date TIMESTAMPTZ,
            creation_date TIMESTAMPTZ,
            raw_text TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_notification_sent_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_whois_records_expiry_date ON whois_records(expiry_date)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
