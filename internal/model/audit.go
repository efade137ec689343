package model

import "time"

// Audit action tags written by the auth core.
const (
	ActionOTPRequested   = "OTP_REQUESTED"
	ActionLogin          = "LOGIN"
	ActionLoginError     = "LOGIN_ERROR"
	ActionLogout         = "LOGOUT"
	ActionWorkerApproved = "worker_approved"
	ActionWorkerRejected = "worker_rejected"
)

// Resource types referenced by audit entries.
const (
	ResourceAuth   = "AUTH"
	ResourceWorker = "worker"
)

// LoginAttempt is an append-only record of an authentication attempt,
// successful or not. The auth core only ever writes these.
type LoginAttempt struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	Success   bool      `json:"success" db:"success"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuditLog is an append-only record of an administrative action. AdminID is
// nil when the action failed before an account was resolved (e.g. a login
// error on an unknown email).
type AuditLog struct {
	ID           string         `json:"id" db:"id"`
	AdminID      *string        `json:"admin_id" db:"admin_id"`
	Action       string         `json:"action" db:"action"`
	ResourceType string         `json:"resource_type" db:"resource_type"`
	ResourceID   string         `json:"resource_id" db:"resource_id"`
	Details      map[string]any `json:"details,omitempty" db:"-"`
	IPAddress    string         `json:"ip_address" db:"ip_address"`
	UserAgent    string         `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
