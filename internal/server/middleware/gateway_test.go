package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fixitug/fixit-admin/internal/model"
	"github.com/fixitug/fixit-admin/internal/ratelimit"
	"github.com/fixitug/fixit-admin/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestGateway(t *testing.T, production bool) (*session.Manager, http.Handler) {
	t.Helper()
	sessions, err := session.NewManager(testSecret, production)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := GetSession(r.Context()); sess != nil {
			w.Header().Set("X-Session-Email", sess.Email)
		}
		w.WriteHeader(http.StatusOK)
	})

	h := Gateway(GatewayConfig{
		Sessions:   sessions,
		Limiter:    ratelimit.NewMemory(),
		Production: production,
	})(inner)

	return sessions, h
}

func sessionCookie(t *testing.T, m *session.Manager) *http.Cookie {
	t.Helper()
	token, expiresAt, err := m.Create(model.SessionUser{
		ID: "a1", Email: "admin@fixit.ug", Name: "Jane", Role: "admin",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m.Cookie(token, expiresAt)
}

func TestGatewayAPIUnauthenticated(t *testing.T) {
	_, h := newTestGateway(t, false)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/verify-worker", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("got content type %q, want application/json", ct)
	}
}

func TestGatewayAuthEndpointsArePublic(t *testing.T) {
	_, h := newTestGateway(t, false)

	for _, path := range []string{"/api/auth/send-otp", "/api/auth/verify-otp", "/api/auth/session", "/api/auth/logout"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", path, w.Code)
		}
	}
}

func TestGatewayPageRedirectsToLogin(t *testing.T) {
	_, h := newTestGateway(t, false)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("got %d, want 302", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/login?redirect=") || !strings.Contains(loc, "%2Fdashboard") {
		t.Errorf("redirect location %q, want login with original path", loc)
	}
}

func TestGatewayPublicPageWithSessionRedirects(t *testing.T) {
	sessions, h := newTestGateway(t, false)

	r := httptest.NewRequest(http.MethodGet, "/login", nil)
	r.AddCookie(sessionCookie(t, sessions))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("got %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("redirect location %q, want /dashboard", loc)
	}
}

func TestGatewayPrivatePageWithSession(t *testing.T) {
	sessions, h := newTestGateway(t, false)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(sessionCookie(t, sessions))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Session-Email"); got != "admin@fixit.ug" {
		t.Errorf("session email %q, want attached session", got)
	}
}

func TestGatewayHealthProbesOpen(t *testing.T) {
	_, h := newTestGateway(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", path, w.Code)
		}
	}
}

func TestGatewayAPIRateLimit(t *testing.T) {
	_, h := newTestGateway(t, false)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
		r.Header.Set("X-Forwarded-For", "198.51.100.1")
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	h.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 101: got %d, want 429", w.Code)
	}

	// A different client address is unaffected.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.2")
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("other client: got %d, want 200", w.Code)
	}
}

func TestGatewaySecurityHeaders(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		wantHSTS   bool
	}{
		{"development", false, false},
		{"production", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestGateway(t, tt.production)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			headers := map[string]string{
				"X-Frame-Options":        "DENY",
				"X-Content-Type-Options": "nosniff",
				"Referrer-Policy":        "strict-origin-when-cross-origin",
				"Permissions-Policy":     "camera=(), microphone=(), geolocation=()",
			}
			for k, want := range headers {
				if got := w.Header().Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}

			hsts := w.Header().Get("Strict-Transport-Security")
			if tt.wantHSTS && hsts == "" {
				t.Error("HSTS header missing in production")
			}
			if !tt.wantHSTS && hsts != "" {
				t.Errorf("HSTS header %q set outside production", hsts)
			}
		})
	}
}

func TestGatewaySlidingRefresh(t *testing.T) {
	sessions, err := session.NewManager(testSecret, false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h := Gateway(GatewayConfig{
		Sessions: sessions,
		Limiter:  ratelimit.NewMemory(),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A token with under five minutes left triggers a re-issue.
	user := model.SessionUser{ID: "a1", Email: "admin@fixit.ug", Role: "admin"}
	codec, err := session.NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, expiresAt, err := codec.Sign(user, 2*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(sessions.Cookie(token, expiresAt))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	cookies := w.Result().Cookies()
	var refreshed *http.Cookie
	for _, c := range cookies {
		if c.Name == session.CookieName {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("expected a refreshed session cookie")
	}
	sess, err := codec.Verify(refreshed.Value)
	if err != nil {
		t.Fatalf("Verify refreshed: %v", err)
	}
	if until := time.Until(sess.ExpiresAt); until < 29*time.Minute {
		t.Errorf("refreshed session expires in %v, want a full lifetime", until)
	}

	// A fresh full-lifetime session does not get re-issued.
	token2, expiresAt2, err := codec.Sign(user, 30*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	r2 := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r2.AddCookie(sessions.Cookie(token2, expiresAt2))
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if len(w2.Result().Cookies()) != 0 {
		t.Error("full-lifetime session should not be re-issued")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		rip  string
		want string
	}{
		{"forwarded-for single", "203.0.113.7", "", "203.0.113.7"},
		{"forwarded-for chain", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"real-ip fallback", "", "198.51.100.9", "198.51.100.9"},
		{"no headers", "", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.rip != "" {
				r.Header.Set("X-Real-Ip", tt.rip)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
