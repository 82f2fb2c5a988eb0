package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bookflow/bookflow/internal/config"
	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/pkg/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

var errUserNotFound = errors.New("user not found")

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errUserNotFound
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) ListProviders(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.User
	for _, u := range r.users {
		if u.Role == domain.RoleProvider && u.IsActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memUserRepo) UpdateLoginAttempt(_ context.Context, id uuid.UUID, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return errUserNotFound
	}
	if success {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
		now := time.Now()
		u.LastLoginAt = &now
		return nil
	}

	u.FailedLoginCount++
	if u.FailedLoginCount >= 5 {
		until := time.Now().Add(15 * time.Minute)
		u.LockedUntil = &until
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *memUserRepo) {
	t.Helper()

	repo := newMemUserRepo()
	jwtManager := auth.NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-at-least-32-characters!!",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "bookflow-test",
	})
	return NewAuthService(repo, jwtManager, zap.NewNop()), repo
}

const testPassword = "correct horse battery staple"

func register(t *testing.T, svc *AuthService, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := svc.Register(context.Background(), &RegisterCommand{
		Email:    email,
		Password: testPassword,
		Name:     "Test User",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc, _ := newAuthFixture(t)

	t.Run("creates client by default", func(t *testing.T) {
		u := register(t, svc, "client@example.com", "")
		assert.Equal(t, domain.RoleClient, u.Role)
		assert.True(t, u.IsActive)
		assert.NotEqual(t, testPassword, u.PasswordHash)
	})

	t.Run("provider role honored", func(t *testing.T) {
		u := register(t, svc, "provider@example.com", domain.RoleProvider)
		assert.Equal(t, domain.RoleProvider, u.Role)
	})

	t.Run("admin role downgraded", func(t *testing.T) {
		u := register(t, svc, "sneaky@example.com", domain.RoleAdmin)
		assert.Equal(t, domain.RoleClient, u.Role)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		_, err := svc.Register(context.Background(), &RegisterCommand{
			Email:    "weak@example.com",
			Password: "short",
			Name:     "Weak",
		})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Register(context.Background(), &RegisterCommand{
			Email:    "client@example.com",
			Password: testPassword,
			Name:     "Dup",
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)
	u := register(t, svc, "login@example.com", domain.RoleClient)

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := svc.Login(context.Background(), u.Email, testPassword, "127.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "Bearer", pair.TokenType)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), u.Email, "wrong password!!", "127.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody@example.com", testPassword, "127.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("locked after repeated failures", func(t *testing.T) {
		locked := register(t, svc, "locked@example.com", domain.RoleClient)
		for i := 0; i < 5; i++ {
			_, err := svc.Login(context.Background(), locked.Email, "wrong password!!", "127.0.0.1")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		}
		_, err := svc.Login(context.Background(), locked.Email, testPassword, "127.0.0.1")
		assert.ErrorIs(t, err, ErrAccountLocked)
	})

	t.Run("inactive account", func(t *testing.T) {
		repo.mu.Lock()
		repo.users[u.ID].IsActive = false
		repo.mu.Unlock()

		_, err := svc.Login(context.Background(), u.Email, testPassword, "127.0.0.1")
		assert.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestGetProfile(t *testing.T) {
	svc, _ := newAuthFixture(t)
	u := register(t, svc, "profile@example.com", domain.RoleClient)

	got, err := svc.GetProfile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = svc.GetProfile(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestListProviders(t *testing.T) {
	svc, repo := newAuthFixture(t)
	register(t, svc, "client@example.com", domain.RoleClient)
	p1 := register(t, svc, "provider1@example.com", domain.RoleProvider)
	p2 := register(t, svc, "provider2@example.com", domain.RoleProvider)

	// Deactivated providers drop out of the directory.
	repo.mu.Lock()
	repo.users[p2.ID].IsActive = false
	repo.mu.Unlock()

	providers, err := svc.ListProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, p1.ID, providers[0].ID)
}

func TestRefreshToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	u := register(t, svc, "refresh@example.com", domain.RoleProvider)

	pair, err := svc.Login(context.Background(), u.Email, testPassword, "127.0.0.1")
	require.NoError(t, err)

	t.Run("valid refresh", func(t *testing.T) {
		next, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, next.AccessToken)
	})

	t.Run("access token rejected as refresh", func(t *testing.T) {
		_, err := svc.RefreshToken(context.Background(), pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("deactivated user rejected", func(t *testing.T) {
		repo.mu.Lock()
		repo.users[u.ID].IsActive = false
		repo.mu.Unlock()

		_, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
