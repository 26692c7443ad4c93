package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding of the digest
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
	"github.com/google/uuid"

	"github.com/iliyamo/invoice-billing/internal/model"
)

// ErrInvalidToken is returned for any token that fails signature, algorithm,
// expiry or claim checks.  Callers do not learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token.  It carries enough of the
// user to authorise a request without a store lookup.
type AccessClaims struct {
	UserID        string     `json:"id"`
	Email         string     `json:"email"`
	Role          model.Role `json:"role"`
	AccountNumber string     `json:"account_number"`
	jwt.RegisteredClaims
}

// Viewer returns the caller identity carried by the claims.
func (c *AccessClaims) Viewer() model.Viewer {
	return model.Viewer{ID: c.UserID, Email: c.Email, Role: c.Role, AccountNumber: c.AccountNumber}
}

// RefreshClaims is the payload of a refresh token: the user id plus a random
// token id (jti) so two tokens issued in the same second never collide.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// The Raw field is returned to the client; the store only keeps
// HashRefreshRaw(Raw).
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for u, valid for ttl.  The
// claims are taken from u as it is now so a changed role shows up in the
// next token issued.
func NewAccessToken(secret string, u *model.User, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := AccessClaims{
		UserID:        u.ID,
		Email:         u.Email,
		Role:          u.Role,
		AccountNumber: u.AccountNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs a refresh JWT for userID with the refresh secret.
func NewRefreshToken(secret, userID string, ttl time.Duration) (RefreshToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseAccess verifies raw with secret and returns its claims.
func ParseAccess(secret, raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(secret, raw, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ParseRefresh verifies raw with the refresh secret and returns its claims.
func ParseRefresh(secret, raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(secret, raw, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func parse(secret, raw string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Only this digest is persisted.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
