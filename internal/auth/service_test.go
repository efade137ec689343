package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/fixitug/fixit-admin/internal/mailer"
	"github.com/fixitug/fixit-admin/internal/model"
	"github.com/fixitug/fixit-admin/internal/ratelimit"
	"github.com/fixitug/fixit-admin/internal/store"
)

// recordingDispatcher captures outgoing mail instead of sending it. The
// plaintext code in a test is only ever recovered from the captured email,
// mirroring what a real admin sees.
type recordingDispatcher struct {
	messages []mailer.Message
	fail     error
}

func (d *recordingDispatcher) Send(_ context.Context, msg mailer.Message) error {
	if d.fail != nil {
		return d.fail
	}
	d.messages = append(d.messages, msg)
	return nil
}

var codePattern = regexp.MustCompile(`class="otp-code">([0-9]{6})<`)

// lastCode extracts the 6-digit code from the most recent captured email.
func (d *recordingDispatcher) lastCode(t *testing.T) string {
	t.Helper()
	if len(d.messages) == 0 {
		t.Fatal("no email captured")
	}
	m := codePattern.FindStringSubmatch(d.messages[len(d.messages)-1].HTML)
	if m == nil {
		t.Fatal("no 6-digit code found in email body")
	}
	return m[1]
}

func newTestService(t *testing.T, production bool) (*Service, *store.Store, *recordingDispatcher) {
	t.Helper()
	st, err := store.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dispatcher := &recordingDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, st, dispatcher, ratelimit.NewMemory(), "no-reply@fixit.ug", production)
	return svc, st, dispatcher
}

func seedAdmin(t *testing.T, st *store.Store, email string, active bool) *model.Admin {
	t.Helper()
	admin := &model.Admin{
		Email:    email,
		Name:     "Test Admin",
		Role:     model.AdminRole,
		IsActive: active,
	}
	if err := st.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return admin
}

var testClient = ClientInfo{IP: "203.0.113.7", UserAgent: "go-test"}

// ---------------------------------------------------------------------------
// Issuance
// ---------------------------------------------------------------------------

func TestSendOTPUnknownEmail(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()

	expiresAt, err := svc.SendOTP(ctx, "nobody@fixit.ug", testClient)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if !expiresAt.IsZero() {
		t.Error("expected zero expiry for an unknown account")
	}
	if len(dispatcher.messages) != 0 {
		t.Errorf("no email should be sent, got %d", len(dispatcher.messages))
	}

	// And no challenge row may exist for anyone.
	if n, _ := st.DeleteChallenges(ctx, false); n != 0 {
		t.Errorf("expected 0 challenge rows, got %d", n)
	}
}

func TestSendOTPInactiveAdmin(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "inactive@fixit.ug", false)

	expiresAt, err := svc.SendOTP(ctx, "inactive@fixit.ug", testClient)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if !expiresAt.IsZero() || len(dispatcher.messages) != 0 {
		t.Error("inactive account must be treated like an unknown one")
	}
}

func TestSendOTPNonAdminRole(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()

	admin := &model.Admin{Email: "support@fixit.ug", Name: "Support", Role: "support", IsActive: true}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	expiresAt, err := svc.SendOTP(ctx, "support@fixit.ug", testClient)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if !expiresAt.IsZero() || len(dispatcher.messages) != 0 {
		t.Error("non-admin role must be invisible to issuance")
	}
}

func TestSendOTPIssuesSixDigitCode(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	admin := seedAdmin(t, st, "admin@fixit.ug", true)

	expiresAt, err := svc.SendOTP(ctx, "admin@fixit.ug", testClient)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if until := time.Until(expiresAt); until < 9*time.Minute || until > 10*time.Minute {
		t.Errorf("expiry %v from now, want ~10m", until)
	}

	code := dispatcher.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("code %q is not 6 digits", code)
	}
	if dispatcher.messages[0].To != "admin@fixit.ug" {
		t.Errorf("mail sent to %q", dispatcher.messages[0].To)
	}
	if dispatcher.messages[0].Subject != mailer.OTPSubject {
		t.Errorf("mail subject %q", dispatcher.messages[0].Subject)
	}

	// Only the hash is persisted. The stored challenge must not contain
	// the plaintext code anywhere.
	challenge, err := st.LatestActiveChallenge(ctx, admin.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("LatestActiveChallenge: %v", err)
	}
	if challenge.OTPHash == code {
		t.Error("plaintext code stored as hash")
	}
	if len(challenge.OTPHash) < 50 {
		t.Errorf("hash suspiciously short: %q", challenge.OTPHash)
	}

	// Issuance writes an OTP_REQUESTED audit entry.
	logs, err := st.ListAuditLogs(ctx, model.ActionOTPRequested, 10)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d OTP_REQUESTED entries, want 1", len(logs))
	}
	if logs[0].AdminID == nil || *logs[0].AdminID != admin.ID {
		t.Error("audit entry not attributed to the admin")
	}
}

func TestSendOTPRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		limit      int
	}{
		{"production limit", true, 3},
		{"development limit", false, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := newTestService(t, tt.production)
			ctx := context.Background()
			seedAdmin(t, st, "admin@fixit.ug", true)

			for i := 0; i < tt.limit; i++ {
				if _, err := svc.SendOTP(ctx, "admin@fixit.ug", testClient); err != nil {
					t.Fatalf("request %d under the limit failed: %v", i+1, err)
				}
			}

			_, err := svc.SendOTP(ctx, "admin@fixit.ug", testClient)
			var rle *RateLimitError
			if !errors.As(err, &rle) {
				t.Fatalf("got %v, want RateLimitError", err)
			}
			if rle.RetryAfter != 60*time.Second {
				t.Errorf("retry hint %v, want 60s", rle.RetryAfter)
			}
		})
	}
}

func TestSendOTPDispatchFailure(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)

	dispatcher.fail = errors.New("smtp down")
	if _, err := svc.SendOTP(ctx, "admin@fixit.ug", testClient); err == nil {
		t.Fatal("expected an error when dispatch fails")
	}
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// issueCode runs a full issuance and returns the plaintext code from the
// captured email.
func issueCode(t *testing.T, svc *Service, dispatcher *recordingDispatcher, email string) string {
	t.Helper()
	if _, err := svc.SendOTP(context.Background(), email, testClient); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	return dispatcher.lastCode(t)
}

func TestVerifyOTPUnknownEmail(t *testing.T) {
	svc, st, _ := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.VerifyOTP(ctx, "nobody@fixit.ug", "123456", testClient)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}

	attempts, err := st.ListLoginAttempts(ctx, "nobody@fixit.ug", 10)
	if err != nil {
		t.Fatalf("ListLoginAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Success {
		t.Errorf("expected one failed attempt, got %+v", attempts)
	}
}

func TestVerifyOTPNoChallenge(t *testing.T) {
	svc, st, _ := newTestService(t, false)
	seedAdmin(t, st, "admin@fixit.ug", true)

	_, err := svc.VerifyOTP(context.Background(), "admin@fixit.ug", "123456", testClient)
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("got %v, want ErrOTPExpired", err)
	}
}

func TestVerifyOTPSuccess(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seeded := seedAdmin(t, st, "admin@fixit.ug", true)
	code := issueCode(t, svc, dispatcher, "admin@fixit.ug")

	admin, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if admin.ID != seeded.ID {
		t.Errorf("got admin %q, want %q", admin.ID, seeded.ID)
	}

	// last_login_at is set.
	updated, err := st.GetAdminByEmail(ctx, "admin@fixit.ug")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if updated.LastLoginAt == nil {
		t.Error("last login not updated")
	}

	// Successful attempt recorded.
	attempts, _ := st.ListLoginAttempts(ctx, "admin@fixit.ug", 10)
	if len(attempts) != 1 || !attempts[0].Success {
		t.Errorf("expected one successful attempt, got %+v", attempts)
	}

	// LOGIN audit entry with method detail.
	logs, _ := st.ListAuditLogs(ctx, model.ActionLogin, 10)
	if len(logs) != 1 {
		t.Fatalf("got %d LOGIN entries, want 1", len(logs))
	}
	if logs[0].Details["method"] != "OTP" {
		t.Errorf("LOGIN details %+v, want method=OTP", logs[0].Details)
	}
}

func TestVerifyOTPSingleUse(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)
	code := issueCode(t, svc, dispatcher, "admin@fixit.ug")

	if _, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient); err != nil {
		t.Fatalf("first verification: %v", err)
	}

	// Replaying the same code must fail: the challenge is retired.
	_, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient)
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("replay got %v, want ErrOTPExpired", err)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)
	code := issueCode(t, svc, dispatcher, "admin@fixit.ug")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := svc.VerifyOTP(ctx, "admin@fixit.ug", wrong, testClient)
	var iotp *InvalidOTPError
	if !errors.As(err, &iotp) {
		t.Fatalf("got %v, want InvalidOTPError", err)
	}
	if iotp.Remaining != 4 {
		t.Errorf("remaining %d, want 4", iotp.Remaining)
	}

	// The counter survives and the correct code still works.
	if _, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient); err != nil {
		t.Fatalf("correct code after one miss: %v", err)
	}
}

func TestVerifyOTPFourMissesThenSuccess(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)
	code := issueCode(t, svc, dispatcher, "admin@fixit.ug")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 4; i++ {
		_, err := svc.VerifyOTP(ctx, "admin@fixit.ug", wrong, testClient)
		var iotp *InvalidOTPError
		if !errors.As(err, &iotp) {
			t.Fatalf("miss %d: got %v, want InvalidOTPError", i+1, err)
		}
		if want := 4 - (i + 1); iotp.Remaining != want {
			t.Errorf("miss %d: remaining %d, want %d", i+1, iotp.Remaining, want)
		}
	}

	// Attempts stand at 4, under the limit of 5: the correct code on the
	// fifth try still succeeds.
	if _, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient); err != nil {
		t.Fatalf("correct 5th attempt: %v", err)
	}
}

func TestVerifyOTPLockout(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)
	code := issueCode(t, svc, dispatcher, "admin@fixit.ug")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.VerifyOTP(ctx, "admin@fixit.ug", wrong, testClient); err == nil {
			t.Fatalf("miss %d unexpectedly succeeded", i+1)
		}
	}

	// Sixth try locks out even with the correct code, and the challenge
	// is retired for good.
	_, err := svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient)
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("6th attempt got %v, want ErrMaxAttempts", err)
	}
	_, err = svc.VerifyOTP(ctx, "admin@fixit.ug", code, testClient)
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("after lockout got %v, want ErrOTPExpired", err)
	}
}

func TestVerifyOTPUsesLatestChallenge(t *testing.T) {
	svc, st, dispatcher := newTestService(t, false)
	ctx := context.Background()
	seedAdmin(t, st, "admin@fixit.ug", true)

	first := issueCode(t, svc, dispatcher, "admin@fixit.ug")
	second := issueCode(t, svc, dispatcher, "admin@fixit.ug")
	if first == second {
		t.Skip("codes collided; the second issuance is indistinguishable")
	}

	// The older code no longer matches the current challenge.
	_, err := svc.VerifyOTP(ctx, "admin@fixit.ug", first, testClient)
	var iotp *InvalidOTPError
	if !errors.As(err, &iotp) {
		t.Fatalf("stale code got %v, want InvalidOTPError", err)
	}

	if _, err := svc.VerifyOTP(ctx, "admin@fixit.ug", second, testClient); err != nil {
		t.Fatalf("latest code: %v", err)
	}
}

func TestRecordLogout(t *testing.T) {
	svc, st, _ := newTestService(t, false)
	ctx := context.Background()
	admin := seedAdmin(t, st, "admin@fixit.ug", true)

	svc.RecordLogout(ctx, admin.ID, testClient)

	logs, err := st.ListAuditLogs(ctx, model.ActionLogout, 10)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d LOGOUT entries, want 1", len(logs))
	}
	if logs[0].AdminID == nil || *logs[0].AdminID != admin.ID {
		t.Error("LOGOUT entry not attributed to the admin")
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("code %q outside [100000, 999999]", code)
		}
	}
}
