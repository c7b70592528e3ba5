package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/userhub/backend/internal/db"
	"github.com/userhub/backend/internal/model"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
	ErrMisconfigured = errors.New("auth config invalid")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// UserRepository is the persistence surface the auth flows need. The real
// implementation is *db.Postgres; tests substitute fakes.
type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
}

type AuthService struct {
	repo   UserRepository
	hasher *PasswordHasher
	tokens *TokenService

	// Verifier of a throwaway password, compared against when the username
	// does not exist so that unknown-user and wrong-password logins take
	// the same bcrypt time and cannot be told apart by latency.
	dummyHash string
}

func NewAuthService(repo UserRepository, hasher *PasswordHasher, tokens *TokenService) (*AuthService, error) {
	dummyHash, err := hasher.Hash("userhub-timing-pad")
	if err != nil {
		return nil, err
	}
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummyHash,
	}, nil
}

// Register creates an account. It does not issue a token; login is a
// separate, explicit step. Duplicate usernames surface as ErrConflict even
// under concurrent registration, backed by the store's unique constraint.
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	if _, err := s.repo.CreateUser(ctx, username, hash); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Login verifies credentials and issues a bearer token. Unknown usernames
// and wrong passwords both return ErrUnauthorized with nothing to
// distinguish which was the case.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	if username == "" || password == "" {
		return "", nil, ErrUnauthorized
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			s.hasher.Verify(password, s.dummyHash)
			return "", nil, ErrUnauthorized
		}
		return "", nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", nil, ErrUnauthorized
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	return s.repo.ListUsers(ctx)
}

func (s *AuthService) ValidateToken(tokenStr string) (*model.AuthUser, error) {
	return s.tokens.Validate(tokenStr)
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return ErrInvalidInput
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength {
		return ErrInvalidInput
	}
	return nil
}
