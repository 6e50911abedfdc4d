package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasktrack/api/internal/session"
	"tasktrack/api/internal/store"
)

type brokenRevocations struct{}

func (brokenRevocations) Revoke(context.Context, string, int64, time.Time) error {
	return errors.New("unreachable")
}
func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("unreachable")
}

func newTestDirectory(t *testing.T) (*Directory, store.User) {
	t.Helper()
	users := store.NewMemoryUserStore()
	user, err := users.CreateUser(context.Background(), store.User{Email: "ada@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return NewDirectory("test-secret", time.Hour, users, session.NewMemoryStore()), user
}

func TestIssueAndResolve(t *testing.T) {
	dir, user := newTestDirectory(t)
	ctx := context.Background()

	token, issued, err := dir.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	got, err := dir.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.UserID != user.ID || got.TokenID != issued.TokenID {
		t.Fatalf("Resolve() = %+v, want user %d token %s", got, user.ID, issued.TokenID)
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	dir, user := newTestDirectory(t)
	ctx := context.Background()

	other := NewDirectory("other-secret", time.Hour, store.NewMemoryUserStore(), session.NewMemoryStore())
	foreign, _, err := other.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"foreign secret": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := dir.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Resolve() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRevokedTokenNoLongerResolves(t *testing.T) {
	dir, user := newTestDirectory(t)
	ctx := context.Background()

	token, id, err := dir.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := dir.Revoke(ctx, id); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := dir.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Resolve() after revoke error = %v, want ErrInvalidToken", err)
	}
}

func TestResolveSurfacesRevocationBackendErrors(t *testing.T) {
	users := store.NewMemoryUserStore()
	dir := NewDirectory("s", time.Hour, users, brokenRevocations{})
	token, _, err := dir.Issue(store.User{ID: 1, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	_, err = dir.Resolve(context.Background(), token)
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLookupEmail(t *testing.T) {
	dir, user := newTestDirectory(t)
	ctx := context.Background()

	id, found, err := dir.LookupEmail(ctx, "ADA@example.com")
	if err != nil || !found || id != user.ID {
		t.Fatalf("LookupEmail() = %d, %v, %v", id, found, err)
	}
	_, found, err = dir.LookupEmail(ctx, "nobody@example.com")
	if err != nil || found {
		t.Fatalf("LookupEmail(unknown) found=%v err=%v", found, err)
	}
}
