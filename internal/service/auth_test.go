package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/userhub/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo enforces username uniqueness under a mutex, the same
// guarantee the real store gets from its unique constraint.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[username]; exists {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.users[username] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []model.UserSummary{}
	for _, user := range f.users {
		users = append(users, model.UserSummary{Username: user.Username, CreatedAt: user.CreatedAt})
	}
	return users, nil
}

func newTestAuthService(t *testing.T, repo UserRepository) *AuthService {
	t.Helper()
	tokens, err := NewTokenService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	svc, err := NewAuthService(repo, NewPasswordHasher(bcrypt.MinCost), tokens)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return svc
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"missing username", "", "secret1"},
		{"missing password", "alice", ""},
		{"username too short", "ab", "secret1"},
		{"username too long", "a_very_long_username_that_goes_on", "secret1"},
		{"bad characters", "alice!", "secret1"},
		{"space in username", "al ice", "secret1"},
		{"password too short", "alice", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Register(ctx, tc.username, tc.password); err != ErrInvalidInput {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterStoresVerifierNotPlaintext(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stored := repo.users["alice"]
	if stored == nil {
		t.Fatal("user not stored")
	}
	if stored.PasswordHash == "secret1" {
		t.Fatal("plaintext password was stored")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")) != nil {
		t.Fatal("stored hash does not verify against the password")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := svc.Register(ctx, "alice", "other12"); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Register(ctx, "alice", "secret1")
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case ErrConflict:
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", attempts-1, ok, conflict)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected a single stored account, got %d", len(repo.users))
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, user, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" || user == nil {
		t.Fatal("expected token and user")
	}

	authUser, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if authUser.ID != user.ID {
		t.Fatalf("token subject %s does not match account %s", authUser.ID, user.ID)
	}
}

func TestLoginFailuresAreUndifferentiated(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, _, wrongPassword := svc.Login(ctx, "alice", "wrong123")
	_, _, unknownUser := svc.Login(ctx, "nobody", "secret1")

	if wrongPassword != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", wrongPassword)
	}
	if unknownUser != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", unknownUser)
	}
	if wrongPassword != unknownUser {
		t.Fatal("failure categories must be indistinguishable")
	}
}

func TestListUsersOmitsVerifier(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	users, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected listing: %+v", users)
	}
	if users[0].CreatedAt.IsZero() {
		t.Fatal("expected createdAt to be set")
	}
}
