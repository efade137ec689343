package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixitug/fixit-admin/internal/model"
)

// ErrNoSession is returned by Verify for every failure mode: missing token,
// bad signature, expired, malformed. Callers treat it as "unauthenticated",
// never as a fault.
var ErrNoSession = errors.New("no session")

// minSecretLen is the minimum signing secret length. A shorter secret is a
// configuration error, caught when the codec is built rather than at request
// time.
const minSecretLen = 32

// claims is the compact signed payload carried by the session cookie.
type claims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies self-contained session tokens with HMAC-SHA256.
// Sessions are stateless: validity is signature plus expiry, never a lookup.
type Codec struct {
	secret []byte
}

// NewCodec builds a codec from the configured signing secret. The secret must
// be at least 32 bytes.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes, got %d", minSecretLen, len(secret))
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Sign issues a token for the given admin identity, valid for ttl from now.
func (c *Codec) Sign(user model.SessionUser, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AdminID: user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Role:    user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "fixit-admin",
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning the session it asserts.
// Any failure collapses to ErrNoSession.
func (c *Codec) Verify(tokenStr string) (*Session, error) {
	if tokenStr == "" {
		return nil, ErrNoSession
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenStr, parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoSession
	}
	if parsed.ExpiresAt == nil || parsed.IssuedAt == nil {
		return nil, ErrNoSession
	}

	return &Session{
		AdminID:   parsed.AdminID,
		Email:     parsed.Email,
		Name:      parsed.Name,
		Role:      parsed.Role,
		IssuedAt:  parsed.IssuedAt.Time,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}
