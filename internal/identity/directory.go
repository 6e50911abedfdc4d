// Package identity maps opaque access tokens to user ids and email addresses
// to user ids. It is the only capability the tracker uses to learn who a
// caller is.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasktrack/api/internal/auth"
	"tasktrack/api/internal/store"
)

// ErrInvalidToken is returned for missing, malformed, expired or revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// Users is the subset of the account store the directory reads.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
}

// Revocations records tokens that were logged out before expiry.
type Revocations interface {
	Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Identity is a resolved caller.
type Identity struct {
	UserID    int64
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type Directory struct {
	secret      []byte
	ttl         time.Duration
	users       Users
	revocations Revocations
	now         func() time.Time
}

func NewDirectory(secret string, ttl time.Duration, users Users, revocations Revocations) *Directory {
	return &Directory{
		secret:      []byte(secret),
		ttl:         ttl,
		users:       users,
		revocations: revocations,
		now:         time.Now,
	}
}

// Issue mints an access token for user.
func (d *Directory) Issue(user store.User) (string, Identity, error) {
	claims := auth.NewClaims(user.ID, user.Email, d.ttl, d.now())
	token, err := auth.IssueToken(d.secret, claims)
	if err != nil {
		return "", Identity{}, err
	}
	return token, identityFromClaims(claims), nil
}

// Resolve verifies token and returns the caller it was issued to.
func (d *Directory) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	claims, err := auth.ParseToken(d.secret, token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	revoked, err := d.revocations.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Identity{}, ErrInvalidToken
	}
	return identityFromClaims(claims), nil
}

// Revoke invalidates the token behind id for the rest of its lifetime.
func (d *Directory) Revoke(ctx context.Context, id Identity) error {
	if err := d.revocations.Revoke(ctx, id.TokenID, id.UserID, id.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// LookupEmail resolves an email address to a user id. found is false when no
// account uses the address.
func (d *Directory) LookupEmail(ctx context.Context, email string) (userID int64, found bool, err error) {
	user, err := d.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup email: %w", err)
	}
	return user.ID, true, nil
}

func identityFromClaims(claims auth.Claims) Identity {
	return Identity{
		UserID:    claims.Sub,
		Email:     claims.Email,
		TokenID:   claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}
}
