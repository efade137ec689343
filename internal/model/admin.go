package model

import "time"

// AdminRole is the only role the auth core accepts at login time. Accounts
// with any other role value are invisible to the OTP flows.
const AdminRole = "admin"

// Admin represents a back-office administrator account. Accounts are
// provisioned through the CLI; the auth core only ever mutates IsActive
// and LastLoginAt.
type Admin struct {
	ID          string     `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	Name        string     `json:"name" db:"name"`
	Role        string     `json:"role" db:"role"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
