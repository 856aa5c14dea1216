// Package session owns the signed session token and its cookie-backed
// lifecycle. A session is only ever minted from a successful identity
// provider response; a token that fails verification is treated the same
// as no session at all.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "classgate"

// DefaultTTL is the absolute session lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidSession indicates the token failed verification for any reason:
// bad signature, malformed token, or expiry. Callers must treat it as
// "no session", never as a fault.
var ErrInvalidSession = errors.New("invalid session")

// User is the identity block carried inside a session.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

// Payload is the unit of authenticated identity: the user plus the opaque
// tokens issued by the identity provider.
type Payload struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims is the JWT claim set: the payload fields plus registered claims.
type Claims struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	jwt.RegisteredClaims
}

// Encrypt signs the payload into a session token with the default lifetime.
func Encrypt(payload Payload) (string, error) {
	return EncryptWithTTL(payload, DefaultTTL)
}

// EncryptWithTTL signs the payload using HS256 with an explicit lifetime.
func EncryptWithTTL(payload Payload, ttl time.Duration) (string, error) {
	if strings.TrimSpace(payload.User.ID) == "" {
		return "", errors.New("session: user id is required")
	}
	if payload.AccessToken == "" {
		return "", errors.New("session: access token is required")
	}
	if ttl <= 0 {
		return "", errors.New("session: ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		User:         payload.User,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   payload.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decrypt verifies the token signature and expiry and reconstructs the
// payload. Every failure mode collapses to ErrInvalidSession.
func Decrypt(token string) (*Payload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSession
		}
		return secretBytes, nil
	})
	if err != nil {
		return nil, ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidSession
	}
	return &Payload{
		User:         claims.User,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
	}, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return errors.New("unexpected issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Subject != claims.User.ID {
		return errors.New("subject mismatch")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
