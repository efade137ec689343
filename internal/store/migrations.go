package store

import (
	"fmt"
	"strings"
)

// migrate applies the schema for the configured driver. Statements use
// CREATE TABLE IF NOT EXISTS so migration is idempotent across restarts.
// The DDL is written once with placeholder type names and rewritten per
// dialect: SQLite stores booleans as INTEGER 0/1, Postgres natively.
func (s *Store) migrate() error {
	repl := strings.NewReplacer("$TS", "DATETIME", "$BOOL", "INTEGER", "$TRUE", "1", "$FALSE", "0")
	if s.driver == "postgres" {
		repl = strings.NewReplacer("$TS", "TIMESTAMPTZ", "$BOOL", "BOOLEAN", "$TRUE", "TRUE", "$FALSE", "FALSE")
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'admin',
			is_active $BOOL NOT NULL DEFAULT $TRUE,
			last_login_at $TS,
			created_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS otp_codes (
			id TEXT PRIMARY KEY,
			admin_id TEXT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
			otp_hash TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			used $BOOL NOT NULL DEFAULT $FALSE,
			expires_at $TS NOT NULL,
			created_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_otp_codes_admin
			ON otp_codes (admin_id, used, expires_at)`,

		`CREATE TABLE IF NOT EXISTS login_attempts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			success $BOOL NOT NULL DEFAULT $FALSE,
			created_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS admin_audit_logs (
			id TEXT PRIMARY KEY,
			admin_id TEXT,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			details_json TEXT NOT NULL DEFAULT '{}',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			verified_by TEXT,
			verified_at $TS,
			created_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at $TS NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(repl.Replace(m)); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
