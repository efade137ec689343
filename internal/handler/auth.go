package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"time"

	"github.com/fixitug/fixit-admin/internal/auth"
	"github.com/fixitug/fixit-admin/internal/model"
	"github.com/fixitug/fixit-admin/internal/server/middleware"
	"github.com/fixitug/fixit-admin/internal/session"
)

// otpPattern is the schema-level check for submitted codes. Exactly six
// digits, nothing else.
var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// AuthHandler exposes the OTP login surface: issuance, verification, session
// introspection and logout.
type AuthHandler struct {
	svc        *auth.Service
	sessions   *session.Manager
	production bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.Service, sessions *session.Manager, production bool) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		sessions:   sessions,
		production: production,
	}
}

// ---------------------------------------------------------------------------
// OTP issuance
// ---------------------------------------------------------------------------

// sendOTPRequest is the expected payload for SendOTP.
type sendOTPRequest struct {
	Email string `json:"email"`
}

// sendOTPResponse is returned when a code was actually dispatched.
type sendOTPResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendOTP issues a one-time code to the given admin email. Unknown, inactive
// and non-admin accounts get the same generic success response as real ones,
// so the endpoint cannot be used to enumerate accounts.
// POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}

	expiresAt, err := h.svc.SendOTP(r.Context(), req.Email, clientInfo(r))
	if err != nil {
		var rle *auth.RateLimitError
		if errors.As(err, &rle) {
			writeError(w, http.StatusTooManyRequests,
				"Too many OTP requests. Please try again in about an hour.",
				map[string]interface{}{"retry_after": int(rle.RetryAfter.Seconds())})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to send OTP. Please try again.")
		return
	}

	// A zero expiry means no account was resolved and no code was sent.
	// Respond as if one had been, without the expiry.
	if expiresAt.IsZero() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": auth.GenericOTPMessage,
		})
		return
	}

	writeJSON(w, http.StatusOK, sendOTPResponse{
		Success:   true,
		Message:   "OTP sent successfully",
		ExpiresAt: expiresAt,
	})
}

// ---------------------------------------------------------------------------
// OTP verification
// ---------------------------------------------------------------------------

// verifyOTPRequest is the expected payload for VerifyOTP.
type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// loginResponse is the payload for a successful verification.
type loginResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	User      model.SessionUser `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// VerifyOTP checks a submitted code against the current challenge and, on a
// match, establishes the session cookie.
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if !otpPattern.MatchString(req.OTP) {
		writeError(w, http.StatusBadRequest, "OTP must be exactly 6 digits")
		return
	}

	admin, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP, clientInfo(r))
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	user := model.SessionUser{
		ID:    admin.ID,
		Email: admin.Email,
		Name:  admin.Name,
		Role:  admin.Role,
	}
	token, expiresAt, err := h.sessions.Create(user)
	if err != nil {
		ctx := map[string]interface{}{}
		if !h.production {
			ctx["detail"] = err.Error()
		}
		writeError(w, http.StatusInternalServerError, "An error occurred during verification", ctx)
		return
	}

	http.SetCookie(w, h.sessions.Cookie(token, expiresAt))
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Message:   "Login successful",
		User:      user,
		ExpiresAt: expiresAt,
	})
}

// writeVerifyError maps verification failures onto the response contract.
func (h *AuthHandler) writeVerifyError(w http.ResponseWriter, err error) {
	var iotp *auth.InvalidOTPError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrOTPExpired):
		writeError(w, http.StatusUnauthorized, "OTP expired or invalid. Please request a new one.")
	case errors.Is(err, auth.ErrMaxAttempts):
		writeError(w, http.StatusTooManyRequests, "Maximum attempts exceeded. Please request a new OTP.")
	case errors.As(err, &iotp):
		writeError(w, http.StatusUnauthorized, "Invalid OTP",
			map[string]interface{}{"remaining_attempts": iotp.Remaining})
	default:
		ctx := map[string]interface{}{}
		if !h.production {
			ctx["detail"] = err.Error()
		}
		writeError(w, http.StatusInternalServerError, "An error occurred during verification", ctx)
	}
}

// ---------------------------------------------------------------------------
// Session surface
// ---------------------------------------------------------------------------

// GetSession returns the identity behind the current session cookie.
// GET /api/auth/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": sess.User(),
	})
}

// Logout clears the session cookie. When a valid session is present the
// logout is also written to the audit log; without one the call is still a
// success, clearing the cookie is idempotent.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.GetSession(r.Context()); sess != nil {
		h.svc.RecordLogout(r.Context(), sess.AdminID, clientInfo(r))
	}
	http.SetCookie(w, h.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}
