// Package identity resolves a caller to a user id and a role. Tokens only
// carry the user id; the role always comes from the role table so a client
// cannot claim staff rights for itself.
package identity

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the acting user of a core operation.
type Identity struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// IsStaff reports whether the identity may triage complaints.
func (i Identity) IsStaff() bool { return i.Role.IsStaff() }

// RoleLookup is the slice of storage the provider needs.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (models.Role, error)
}

// Provider issues and verifies HS256 bearer tokens.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	roles  RoleLookup
	now    func() time.Time
}

func NewProvider(secret []byte, issuer string, ttl time.Duration, roles RoleLookup) *Provider {
	return &Provider{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		roles:  roles,
		now:    time.Now,
	}
}

// Issue mints a token whose subject is userID.
func (p *Provider) Issue(userID string) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Resolve verifies tokenString and looks up the caller's role.
func (p *Provider) Resolve(ctx context.Context, tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject: %w", apperr.ErrUnauthenticated)
	}

	role, err := p.roles.GetUserRole(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return Identity{}, fmt.Errorf("user %s has no role: %w", claims.Subject, apperr.ErrUnauthenticated)
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
