package model

import "time"

// OTPChallenge is a single issued login code for an admin account. Only the
// bcrypt hash of the code is ever persisted. A challenge is "current" when it
// is unused and unexpired; verification always picks the most recently
// created such challenge, so issuing a new code supersedes older ones in
// practice even though they stay valid until their own expiry.
type OTPChallenge struct {
	ID        string    `json:"id" db:"id"`
	AdminID   string    `json:"admin_id" db:"admin_id"`
	OTPHash   string    `json:"-" db:"otp_hash"` // bcrypt hash, never expose
	Attempts  int       `json:"attempts" db:"attempts"`
	Used      bool      `json:"used" db:"used"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
