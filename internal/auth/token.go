// Package auth issues and verifies session tokens and turns them into
// authorization decisions for the task API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/baiirun/taskboard/internal/model"
)

// ErrInvalidToken is returned by Verify for absent, malformed, expired or
// wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the (user id, role) pair carried by a verified token.
type Identity struct {
	UserID int64
	Role   model.Role
}

// Claims is the JWT payload. The user id travels in the standard "sub" claim.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs session tokens with a process-wide HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a service signing with secret. A zero ttl issues
// tokens without an expiry.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}
}

// Issue produces a signed token embedding the user's id and role.
func (s *TokenService) Issue(user *model.User) (string, error) {
	if !user.Role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", user.Role)
	}
	now := s.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the identity it
// encodes. Every failure wraps ErrInvalidToken.
func (s *TokenService) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing", ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	if !claims.Role.IsValid() {
		return Identity{}, fmt.Errorf("%w: bad role %q", ErrInvalidToken, claims.Role)
	}
	return Identity{UserID: id, Role: claims.Role}, nil
}
