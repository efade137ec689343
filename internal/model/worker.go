package model

import "time"

// Worker verification states. Rejected applications land in the
// suspended state with a rejection reason attached.
const (
	WorkerPending   = "pending"
	WorkerVerified  = "verified"
	WorkerSuspended = "suspended"
)

// Worker is the slice of a marketplace worker profile the admin verification
// operation touches. The rest of the worker schema belongs to the platform
// and is out of scope here.
type Worker struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Email           string     `json:"email" db:"email"`
	Status          string     `json:"status" db:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	VerifiedBy      *string    `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
