package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fixitug/fixit-admin/internal/ratelimit"
	"github.com/fixitug/fixit-admin/internal/session"
)

// General API traffic limit per client address.
const (
	apiRateLimit  = 100
	apiRateWindow = 60 * time.Second
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// publicPaths are the page routes reachable without a session.
var publicPaths = []string{"/login", "/verify-otp"}

type contextKeySession string

// SessionKey is the context key for the resolved session.
const SessionKey contextKeySession = "admin_session"

// GatewayConfig configures the auth gateway.
type GatewayConfig struct {
	Sessions   *session.Manager
	Limiter    ratelimit.Limiter
	Production bool
}

// Gateway is the request-time enforcement point, applied before route
// handling:
//
//   - rate-limits API traffic per client address
//   - classifies the path as public or private
//   - resolves the session and attaches it to the request context
//   - redirects unauthenticated page requests to the login page (the
//     original path survives as a redirect parameter) and answers
//     unauthenticated API requests with 401
//   - redirects already-authenticated requests away from the public pages
//   - transparently re-issues sessions close to expiry
//   - attaches the security response headers, HSTS only in production
func Gateway(cfg GatewayConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			setSecurityHeaders(w, cfg.Production)

			isAPI := strings.HasPrefix(path, "/api")
			if isAPI {
				if !cfg.Limiter.Allow(ClientIP(r), apiRateLimit, apiRateWindow) {
					writeGatewayError(w, http.StatusTooManyRequests, "Too many requests")
					return
				}
			}

			sess := cfg.Sessions.FromRequest(r)

			if !isPublic(path, isAPI) && sess == nil {
				if isAPI {
					writeGatewayError(w, http.StatusUnauthorized, "Not authenticated")
					return
				}
				loginURL := loginPath + "?redirect=" + url.QueryEscape(path)
				http.Redirect(w, r, loginURL, http.StatusFound)
				return
			}

			if !isAPI && isPublic(path, isAPI) && sess != nil {
				http.Redirect(w, r, dashboardPath, http.StatusFound)
				return
			}

			if sess != nil && cfg.Sessions.ShouldRefresh(sess) {
				if token, expiresAt, err := cfg.Sessions.Refresh(sess); err == nil {
					http.SetCookie(w, cfg.Sessions.Cookie(token, expiresAt))
				}
			}

			if sess != nil {
				r = r.WithContext(context.WithValue(r.Context(), SessionKey, sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isPublic reports whether a path is reachable without a session. The auth
// API endpoints manage their own session semantics; everything else under
// /api and every non-listed page requires one. Health probes stay open.
func isPublic(path string, isAPI bool) bool {
	if isAPI {
		return strings.HasPrefix(path, "/api/auth/")
	}
	if path == "/healthz" || path == "/readyz" {
		return true
	}
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// GetSession extracts the gateway-resolved session from the context. Returns
// nil for unauthenticated requests.
func GetSession(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(SessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// ClientIP derives the rate-limit key from the forwarding headers, falling
// back to "unknown". This trusts the reverse proxy to set the headers; with
// no trusted proxy in front the limiter is spoofable. Deliberate, see the
// design notes.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	return "unknown"
}

func setSecurityHeaders(w http.ResponseWriter, production bool) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	if production {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

func writeGatewayError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid an import cycle with the handler
	// helpers.
	w.Write([]byte(`{"error":{"code":` + statusString(status) + `,"message":"` + message + `"}}`))
}

func statusString(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "401"
	case http.StatusTooManyRequests:
		return "429"
	default:
		return "500"
	}
}
