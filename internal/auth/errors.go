package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers every account-resolution failure:
	// unknown email, wrong role, deactivated account. One error, one
	// message, so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOTPExpired means no current challenge exists: never issued,
	// already used, or past expiry.
	ErrOTPExpired = errors.New("otp expired or invalid")

	// ErrMaxAttempts means the challenge is locked out. Terminal: the
	// admin must request a new code.
	ErrMaxAttempts = errors.New("maximum attempts exceeded")
)

// RateLimitError reports a denied OTP issuance with a retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many otp requests, retry after %s", e.RetryAfter)
}

// InvalidOTPError reports a wrong code and how many attempts remain before
// lockout.
type InvalidOTPError struct {
	Remaining int
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("invalid otp, %d attempts remaining", e.Remaining)
}
