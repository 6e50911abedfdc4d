package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasktrack/api/internal/authpw"
	"tasktrack/api/internal/identity"
	"tasktrack/api/internal/store"
)

type Session struct {
	Token     string
	UserID    int64
	Email     string
	JTI       string
	ExpiresAt time.Time
}

// Directory is the identity capability the service consumes.
type Directory interface {
	Issue(user store.User) (string, identity.Identity, error)
	Resolve(ctx context.Context, token string) (identity.Identity, error)
	Revoke(ctx context.Context, id identity.Identity) error
	LookupEmail(ctx context.Context, email string) (int64, bool, error)
}

// Accounts manages credentials and profiles.
type Accounts interface {
	SignUp(ctx context.Context, req authpw.SignUpRequest) (store.User, error)
	SignIn(ctx context.Context, req authpw.SignInRequest) (store.User, error)
	User(ctx context.Context, id int64) (store.User, error)
	UpdateDisplayName(ctx context.Context, id int64, displayName string) (store.User, error)
}

// Outbox receives notifications after the mutation that produced them has
// committed. Enqueue must not block.
type Outbox interface {
	Enqueue(notifications ...store.Notification)
}

// Check is a named readiness probe for a backing service.
type Check struct {
	Name string
	Ping func(context.Context) error
}

type Deps struct {
	Entities  *store.EntityStore
	Directory Directory
	Accounts  Accounts
	Outbox    Outbox
	Checks    []Check
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	entities  *store.EntityStore
	directory Directory
	accounts  Accounts
	outbox    Outbox
	checks    []Check
	log       *zap.Logger
	now       func() time.Time
	notify    dispatcher
}

func New(deps Deps) *Service {
	s := &Service{
		entities:  deps.Entities,
		directory: deps.Directory,
		accounts:  deps.Accounts,
		outbox:    deps.Outbox,
		checks:    deps.Checks,
		log:       deps.Logger,
		now:       deps.Now,
	}
	if s.entities == nil {
		s.entities = store.NewEntityStore()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.notify = dispatcher{now: s.now}
	return s
}

// Entities exposes the backing store so tests and tooling can inspect or reset it.
func (s *Service) Entities() *store.EntityStore {
	return s.entities
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// deliver hands committed notifications to the outbox. Must be called after
// the Update that created them has returned.
func (s *Service) deliver(notifications []store.Notification) {
	if s.outbox == nil || len(notifications) == 0 {
		return
	}
	s.outbox.Enqueue(notifications...)
}

// Ready runs every registered probe and returns the failures by name.
func (s *Service) Ready(ctx context.Context) map[string]error {
	failures := map[string]error{}
	for _, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			failures[check.Name] = err
		}
	}
	return failures
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileInput struct {
	DisplayName Optional[string] `json:"displayName"`
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput) (Session, store.User, error) {
	user, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		return Session{}, store.User{}, mapAccountError(err)
	}
	session, err := s.issueSession(user)
	if err != nil {
		return Session{}, store.User{}, err
	}
	return session, user, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (Session, store.User, error) {
	user, err := s.accounts.SignIn(ctx, authpw.SignInRequest{Email: input.Email, Password: input.Password})
	if err != nil {
		return Session{}, store.User{}, mapAccountError(err)
	}
	session, err := s.issueSession(user)
	if err != nil {
		return Session{}, store.User{}, err
	}
	return session, user, nil
}

func (s *Service) issueSession(user store.User) (Session, error) {
	token, id, err := s.directory.Issue(user)
	if err != nil {
		return Session{}, internalError(err)
	}
	session := sessionFromIdentity(id)
	session.Token = token
	return session, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	id, err := s.directory.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return Session{}, unauthenticatedError("Unauthorized")
		}
		return Session{}, internalError(err)
	}
	session := sessionFromIdentity(id)
	session.Token = token
	return session, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	err := s.directory.Revoke(ctx, identity.Identity{
		UserID:    session.UserID,
		Email:     session.Email,
		TokenID:   session.JTI,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return internalError(err)
	}
	return nil
}

func (s *Service) CurrentUser(ctx context.Context, session Session) (store.User, error) {
	user, err := s.accounts.User(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User")
	}
	if err != nil {
		return store.User{}, internalError(err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, input ProfileInput) (store.User, error) {
	if !input.DisplayName.Set {
		return s.CurrentUser(ctx, session)
	}
	if input.DisplayName.Null || strings.TrimSpace(input.DisplayName.Value) == "" {
		return store.User{}, validationError("Display name cannot be empty")
	}
	user, err := s.accounts.UpdateDisplayName(ctx, session.UserID, input.DisplayName.Value)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User")
	}
	if err != nil {
		return store.User{}, internalError(err)
	}
	return user, nil
}

func sessionFromIdentity(id identity.Identity) Session {
	return Session{
		UserID:    id.UserID,
		Email:     id.Email,
		JTI:       id.TokenID,
		ExpiresAt: id.ExpiresAt,
	}
}

func mapAccountError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrMissingFields),
		errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrWeakPassword):
		return validationError(err.Error())
	case errors.Is(err, authpw.ErrEmailTaken):
		return conflictError("Email already registered")
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return unauthenticatedError("Invalid email or password")
	default:
		return internalError(err)
	}
}
