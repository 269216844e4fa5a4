// Package auth issues and validates the bearer tokens that carry a caller's
// identity.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/labyard/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated caller.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// Can reports whether the identity holds one of roles.
func (id Identity) Can(roles ...string) bool {
	return slices.Contains(roles, id.Role)
}

// Approvers may approve storage deletions and edit the catalog.
var Approvers = []string{models.RoleAdmin, models.RoleLabHead}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 token for id that expires after ttl.
func Issue(secret string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("auth: secret is required")
	}
	if id.Subject == "" {
		return "", fmt.Errorf("auth: subject is required")
	}
	now := time.Now()
	c := claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    "labyard",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its identity. Only HS256 is accepted.
func Parse(secret, token string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("labyard"),
		jwt.WithExpirationRequired(),
	)
	var c claims
	_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{Subject: c.Subject, Email: c.Email, Role: c.Role}, nil
}
