package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fixitug/fixit-admin/internal/model"
)

// Store is the relational backing for the auth core: admin accounts, OTP
// challenges, login attempts, audit logs, and the worker rows the
// verification operation touches. It runs on embedded SQLite by default and
// on Postgres when a DSN is configured.
type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore creates a SQLite-backed store under dataDir. Pass empty string
// for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "fixit-admin.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, driver: "sqlite"}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// NewPostgresStore creates a Postgres-backed store for deployments where the
// back office shares the platform's hosted relational database.
func NewPostgresStore(dsn string) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: "postgres"}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind converts ?-style placeholders to the driver's bindvar syntax.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields on admin are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admin_users
		(id, email, name, role, is_active, created_at, updated_at)
		VALUES
		(:id, :email, :name, :role, :is_active, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, admin); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdminByEmail returns an admin by email regardless of role or active
// state. Used by the provisioning CLI, not by the login flows.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.rebind("SELECT * FROM admin_users WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// GetActiveAdminByEmail resolves the account the login flows operate on:
// matching email, role "admin", and active. Anything else is ErrNotFound so
// the flows can answer without revealing whether the account exists.
func (s *Store) GetActiveAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.rebind("SELECT * FROM admin_users WHERE email = ? AND role = ? AND is_active = ?")
	if err := s.db.GetContext(ctx, &admin, q, email, model.AdminRole, true); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active admin: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by email.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admin_users ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// SetAdminActive toggles the is_active flag for an admin by email.
func (s *Store) SetAdminActive(ctx context.Context, email string, active bool) error {
	q := s.rebind("UPDATE admin_users SET is_active = ?, updated_at = ? WHERE email = ?")
	result, err := s.db.ExecContext(ctx, q, active, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("set admin active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	q := s.rebind("UPDATE admin_users SET last_login_at = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// OTP challenges
// ---------------------------------------------------------------------------

// CreateOTPChallenge inserts a new challenge row. The ID and CreatedAt fields
// are populated after a successful insert.
func (s *Store) CreateOTPChallenge(ctx context.Context, ch *model.OTPChallenge) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO otp_codes
		(id, admin_id, otp_hash, attempts, used, expires_at, created_at)
		VALUES
		(:id, :admin_id, :otp_hash, :attempts, :used, :expires_at, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, ch); err != nil {
		return fmt.Errorf("insert otp challenge: %w", err)
	}
	return nil
}

// LatestActiveChallenge returns the most recently created unused, unexpired
// challenge for an admin. Stale challenges are never deleted here, only
// passed over.
func (s *Store) LatestActiveChallenge(ctx context.Context, adminID string, now time.Time) (*model.OTPChallenge, error) {
	var ch model.OTPChallenge
	q := s.rebind(`SELECT * FROM otp_codes
		WHERE admin_id = ? AND used = ? AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1`)
	if err := s.db.GetContext(ctx, &ch, q, adminID, false, now.UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest challenge: %w", err)
	}
	return &ch, nil
}

// SetChallengeAttempts writes the attempt counter for a challenge. The
// counter is read-modify-written by the verification flow; two overlapping
// verification attempts can both read N and write N+1. Known and accepted,
// see the design notes.
func (s *Store) SetChallengeAttempts(ctx context.Context, id string, attempts int) error {
	q := s.rebind("UPDATE otp_codes SET attempts = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, attempts, id)
	if err != nil {
		return fmt.Errorf("set challenge attempts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set challenge attempts rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkChallengeUsed flips the used flag, retiring the challenge.
func (s *Store) MarkChallengeUsed(ctx context.Context, id string) error {
	q := s.rebind("UPDATE otp_codes SET used = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, true, id)
	if err != nil {
		return fmt.Errorf("mark challenge used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark challenge used rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChallenges removes challenge rows. With expiredOnly it deletes only
// rows past their expiry; otherwise it deletes everything. Returns the number
// of rows removed.
func (s *Store) DeleteChallenges(ctx context.Context, expiredOnly bool) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if expiredOnly {
		q := s.rebind("DELETE FROM otp_codes WHERE expires_at <= ?")
		result, err = s.db.ExecContext(ctx, q, time.Now().UTC())
	} else {
		result, err = s.db.ExecContext(ctx, "DELETE FROM otp_codes")
	}
	if err != nil {
		return 0, fmt.Errorf("delete challenges: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete challenges rows affected: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Login attempts
// ---------------------------------------------------------------------------

// RecordLoginAttempt appends an immutable login attempt record.
func (s *Store) RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool) error {
	attempt := model.LoginAttempt{
		ID:        uuid.NewString(),
		Email:     email,
		IPAddress: ipAddress,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}

	const q = `INSERT INTO login_attempts (id, email, ip_address, success, created_at)
		VALUES (:id, :email, :ip_address, :success, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, attempt); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// ListLoginAttempts returns the most recent attempts for an email, newest
// first.
func (s *Store) ListLoginAttempts(ctx context.Context, email string, limit int) ([]model.LoginAttempt, error) {
	var attempts []model.LoginAttempt
	q := s.rebind("SELECT * FROM login_attempts WHERE email = ? ORDER BY created_at DESC LIMIT ?")
	if err := s.db.SelectContext(ctx, &attempts, q, email, limit); err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	return attempts, nil
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// auditRow is a flat struct that maps 1:1 to the admin_audit_logs columns.
// The details_json column stores the JSON-encoded detail payload.
type auditRow struct {
	ID           string    `db:"id"`
	AdminID      *string   `db:"admin_id"`
	Action       string    `db:"action"`
	ResourceType string    `db:"resource_type"`
	ResourceID   string    `db:"resource_id"`
	DetailsJSON  string    `db:"details_json"`
	IPAddress    string    `db:"ip_address"`
	UserAgent    string    `db:"user_agent"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r auditRow) toModel() (model.AuditLog, error) {
	var details map[string]any
	if r.DetailsJSON != "" && r.DetailsJSON != "{}" {
		if err := json.Unmarshal([]byte(r.DetailsJSON), &details); err != nil {
			return model.AuditLog{}, fmt.Errorf("unmarshal audit details: %w", err)
		}
	}
	return model.AuditLog{
		ID:           r.ID,
		AdminID:      r.AdminID,
		Action:       r.Action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Details:      details,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// AppendAuditLog inserts an audit entry. Callers treat failures as
// best-effort: a failed audit write must not abort the operation it records.
func (s *Store) AppendAuditLog(ctx context.Context, entry *model.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	detailsJSON := "{}"
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		detailsJSON = string(b)
	}

	row := auditRow{
		ID:           entry.ID,
		AdminID:      entry.AdminID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		DetailsJSON:  detailsJSON,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		CreatedAt:    entry.CreatedAt,
	}

	const q = `INSERT INTO admin_audit_logs
		(id, admin_id, action, resource_type, resource_id, details_json, ip_address, user_agent, created_at)
		VALUES
		(:id, :admin_id, :action, :resource_type, :resource_id, :details_json, :ip_address, :user_agent, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit entries for an action tag, newest first. Pass
// an empty action for all entries.
func (s *Store) ListAuditLogs(ctx context.Context, action string, limit int) ([]model.AuditLog, error) {
	var rows []auditRow
	var err error
	if action == "" {
		q := s.rebind("SELECT * FROM admin_audit_logs ORDER BY created_at DESC LIMIT ?")
		err = s.db.SelectContext(ctx, &rows, q, limit)
	} else {
		q := s.rebind("SELECT * FROM admin_audit_logs WHERE action = ? ORDER BY created_at DESC LIMIT ?")
		err = s.db.SelectContext(ctx, &rows, q, action, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	entries := make([]model.AuditLog, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Workers
// ---------------------------------------------------------------------------

// CreateWorker inserts a worker row in pending state. Used by fixtures and
// by the platform's own provisioning, not by the auth core.
func (s *Store) CreateWorker(ctx context.Context, w *model.Worker) error {
	now := time.Now().UTC()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = model.WorkerPending
	}
	w.CreatedAt = now
	w.UpdatedAt = now

	const q = `INSERT INTO workers
		(id, name, email, status, rejection_reason, verified_by, verified_at, created_at, updated_at)
		VALUES
		(:id, :name, :email, :status, :rejection_reason, :verified_by, :verified_at, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, w); err != nil {
		return fmt.Errorf("insert worker: %w", err)
	}
	return nil
}

// GetWorker returns a worker by ID.
func (s *Store) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	var w model.Worker
	q := s.rebind("SELECT * FROM workers WHERE id = ?")
	if err := s.db.GetContext(ctx, &w, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return &w, nil
}

// UpdateWorkerVerification moves a pending worker to verified or suspended.
// The status guard is in the WHERE clause, so a worker that has already been
// decided comes back ErrNotFound and the handler reports a conflict.
func (s *Store) UpdateWorkerVerification(ctx context.Context, workerID, status, reason, adminID string) error {
	now := time.Now().UTC()
	q := s.rebind(`UPDATE workers
		SET status = ?, rejection_reason = ?, verified_by = ?, verified_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	result, err := s.db.ExecContext(ctx, q, status, reason, adminID, now, now, workerID, model.WorkerPending)
	if err != nil {
		return fmt.Errorf("update worker verification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update worker verification rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
