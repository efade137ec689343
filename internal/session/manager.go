package session

import (
	"net/http"
	"time"

	"github.com/fixitug/fixit-admin/internal/model"
)

const (
	// CookieName is the fixed name of the session cookie.
	CookieName = "fixit-admin-session"

	// Duration is the lifetime of every issued session. Sliding expiry
	// re-issues a full Duration rather than extending toward a cap.
	Duration = 30 * time.Minute

	// refreshWindow is how close to expiry a session must be before a
	// qualifying request silently re-issues it.
	refreshWindow = 5 * time.Minute
)

// Session is a verified, decoded session token.
type Session struct {
	AdminID   string
	Email     string
	Name      string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// User returns the admin identity the session asserts.
func (s *Session) User() model.SessionUser {
	return model.SessionUser{ID: s.AdminID, Email: s.Email, Name: s.Name, Role: s.Role}
}

// Manager creates, resolves, refreshes, and clears admin sessions. It holds
// no server-side session state; everything lives in the signed cookie.
type Manager struct {
	codec  *Codec
	secure bool
	now    func() time.Time
}

// NewManager builds a session manager. secure controls the cookie's Secure
// attribute and should be true everywhere except local development.
func NewManager(secret string, secure bool) (*Manager, error) {
	codec, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}
	return &Manager{codec: codec, secure: secure, now: time.Now}, nil
}

// Create issues a fresh session token for an admin.
func (m *Manager) Create(user model.SessionUser) (string, time.Time, error) {
	return m.codec.Sign(user, Duration)
}

// FromRequest resolves the session carried by the request cookie. Returns nil
// for a missing, invalid, or expired session; it never fails.
func (m *Manager) FromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	sess, err := m.codec.Verify(cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

// ShouldRefresh reports whether a session is close enough to expiry that it
// should be transparently re-issued. False for nil sessions.
func (m *Manager) ShouldRefresh(s *Session) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.Sub(m.now()) < refreshWindow
}

// Refresh re-signs the session's claims with a fresh full lifetime.
func (m *Manager) Refresh(s *Session) (string, time.Time, error) {
	return m.codec.Sign(s.User(), Duration)
}

// Cookie builds the session cookie for a newly issued token.
func (m *Manager) Cookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds an expired cookie that removes the session. Clearing a
// session that does not exist is fine.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
