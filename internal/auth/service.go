package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fixitug/fixit-admin/internal/mailer"
	"github.com/fixitug/fixit-admin/internal/model"
	"github.com/fixitug/fixit-admin/internal/ratelimit"
	"github.com/fixitug/fixit-admin/internal/store"
)

const (
	// OTPExpiry is how long an issued code stays valid.
	OTPExpiry = 10 * time.Minute

	// MaxOTPAttempts is the number of failed verifications a challenge
	// tolerates before lockout.
	MaxOTPAttempts = 5

	// Issuance limits per admin account per hour. The relaxed limit
	// applies outside production.
	maxOTPRequestsPerHour    = 3
	maxOTPRequestsPerHourDev = 10

	// otpRetryAfter is the hint returned with a rate-limited issuance.
	otpRetryAfter = 60 * time.Second

	bcryptCost = 10
)

// GenericOTPMessage is returned for every issuance request that does not
// resolve to an active admin, so the response shape cannot reveal whether an
// account exists.
const GenericOTPMessage = "If an admin account exists with this email, an OTP has been sent."

// ClientInfo is the request metadata recorded with attempts and audit
// entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Service implements the two-step OTP login: issuance over email, then
// verification against the stored hash. It owns the audit and login-attempt
// writes for both steps.
type Service struct {
	logger     *slog.Logger
	store      *store.Store
	dispatcher mailer.Dispatcher
	otpLimiter ratelimit.Limiter
	mailFrom   string
	production bool
}

// NewService wires the auth flows. otpLimiter must be a dedicated limiter
// instance; it is keyed by admin id, not by caller address, so issuance spam
// toward one inbox is bounded regardless of source.
func NewService(logger *slog.Logger, st *store.Store, dispatcher mailer.Dispatcher, otpLimiter ratelimit.Limiter, mailFrom string, production bool) *Service {
	return &Service{
		logger:     logger,
		store:      st,
		dispatcher: dispatcher,
		otpLimiter: otpLimiter,
		mailFrom:   mailFrom,
		production: production,
	}
}

// SendOTP issues a one-time code for the account behind email. When the
// email does not resolve to an active admin it returns a zero time and no
// error; the caller responds with GenericOTPMessage either way.
func (s *Service) SendOTP(ctx context.Context, email string, client ClientInfo) (time.Time, error) {
	admin, err := s.store.GetActiveAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("resolve admin: %w", err)
	}

	limit := maxOTPRequestsPerHour
	if !s.production {
		limit = maxOTPRequestsPerHourDev
	}
	if !s.otpLimiter.Allow("otp:"+admin.ID, limit, time.Hour) {
		return time.Time{}, &RateLimitError{RetryAfter: otpRetryAfter}
	}

	code, err := generateCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return time.Time{}, fmt.Errorf("hash otp: %w", err)
	}

	expiresAt := time.Now().UTC().Add(OTPExpiry)
	challenge := &model.OTPChallenge{
		AdminID:   admin.ID,
		OTPHash:   string(hash),
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateOTPChallenge(ctx, challenge); err != nil {
		return time.Time{}, fmt.Errorf("store otp challenge: %w", err)
	}

	msg := mailer.Message{
		From:    s.mailFrom,
		To:      admin.Email,
		Subject: mailer.OTPSubject,
		HTML:    mailer.OTPEmailHTML(admin.Name, code, int(OTPExpiry.Minutes())),
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		return time.Time{}, fmt.Errorf("send otp email: %w", err)
	}

	s.audit(ctx, &model.AuditLog{
		AdminID:      &admin.ID,
		Action:       model.ActionOTPRequested,
		ResourceType: model.ResourceAuth,
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
	})

	s.logger.Info("otp issued", "admin_id", admin.ID)
	return expiresAt, nil
}

// VerifyOTP checks a submitted code against the account's current challenge
// and returns the admin on success. Every failure path records a login
// attempt; success additionally updates last_login_at and writes a LOGIN
// audit entry. Unexpected internal failures are audit-logged as LOGIN_ERROR
// before being returned.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, client ClientInfo) (*model.Admin, error) {
	admin, err := s.store.GetActiveAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordAttempt(ctx, email, client.IP, false)
			return nil, ErrInvalidCredentials
		}
		return nil, s.failUnexpected(ctx, nil, client, fmt.Errorf("resolve admin: %w", err))
	}

	challenge, err := s.store.LatestActiveChallenge(ctx, admin.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordAttempt(ctx, email, client.IP, false)
			return nil, ErrOTPExpired
		}
		return nil, s.failUnexpected(ctx, &admin.ID, client, fmt.Errorf("load challenge: %w", err))
	}

	if challenge.Attempts >= MaxOTPAttempts {
		if err := s.store.MarkChallengeUsed(ctx, challenge.ID); err != nil {
			return nil, s.failUnexpected(ctx, &admin.ID, client, fmt.Errorf("retire challenge: %w", err))
		}
		s.recordAttempt(ctx, email, client.IP, false)
		return nil, ErrMaxAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(challenge.OTPHash), []byte(code)); err != nil {
		newAttempts := challenge.Attempts + 1
		if err := s.store.SetChallengeAttempts(ctx, challenge.ID, newAttempts); err != nil {
			return nil, s.failUnexpected(ctx, &admin.ID, client, fmt.Errorf("count attempt: %w", err))
		}
		s.recordAttempt(ctx, email, client.IP, false)

		remaining := MaxOTPAttempts - newAttempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &InvalidOTPError{Remaining: remaining}
	}

	if err := s.store.MarkChallengeUsed(ctx, challenge.ID); err != nil {
		return nil, s.failUnexpected(ctx, &admin.ID, client, fmt.Errorf("retire challenge: %w", err))
	}
	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		return nil, s.failUnexpected(ctx, &admin.ID, client, fmt.Errorf("update last login: %w", err))
	}
	s.recordAttempt(ctx, email, client.IP, true)

	s.audit(ctx, &model.AuditLog{
		AdminID:      &admin.ID,
		Action:       model.ActionLogin,
		ResourceType: model.ResourceAuth,
		Details:      map[string]any{"method": "OTP"},
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
	})

	s.logger.Info("admin logged in", "admin_id", admin.ID)
	return admin, nil
}

// RecordLogout writes the LOGOUT audit entry. Best-effort like every audit
// write.
func (s *Service) RecordLogout(ctx context.Context, adminID string, client ClientInfo) {
	s.audit(ctx, &model.AuditLog{
		AdminID:      &adminID,
		Action:       model.ActionLogout,
		ResourceType: model.ResourceAuth,
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
	})
}

// failUnexpected audit-logs an internal error as LOGIN_ERROR and passes the
// error through. adminID is nil when the failure happened before the account
// was resolved.
func (s *Service) failUnexpected(ctx context.Context, adminID *string, client ClientInfo, err error) error {
	s.audit(ctx, &model.AuditLog{
		AdminID:      adminID,
		Action:       model.ActionLoginError,
		ResourceType: model.ResourceAuth,
		Details:      map[string]any{"error": err.Error()},
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
	})
	return err
}

func (s *Service) recordAttempt(ctx context.Context, email, ip string, success bool) {
	if err := s.store.RecordLoginAttempt(ctx, email, ip, success); err != nil {
		s.logger.Warn("login attempt write failed", "email", email, "error", err)
	}
}

func (s *Service) audit(ctx context.Context, entry *model.AuditLog) {
	if err := s.store.AppendAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", "action", entry.Action, "error", err)
	}
}

// generateCode draws a uniform 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
