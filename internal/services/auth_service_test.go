package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cipherchat/internal/models"
	"cipherchat/internal/repositories/postgres"
)

type fakeUserStore struct {
	users  map[string]*models.User
	nextID uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(user *models.User) error {
	if _, exists := f.users[user.Username]; exists {
		return postgres.ErrUserExists
	}
	f.nextID++
	user.ID = f.nextID
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserStore) FindByUsername(username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserStore) FindByID(id uint) (*models.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestAuthService() (*AuthService, *fakeUserStore) {
	store := newFakeUserStore()
	return NewAuthService(store, "test-secret", time.Hour), store
}

func TestRegisterLoginVerify(t *testing.T) {
	svc, _ := newTestAuthService()

	reg, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "sekret99"})
	require.NoError(t, err)
	assert.NotZero(t, reg.UserID)

	token, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "sekret99"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)

	userID, username, err := svc.VerifyIdentity(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, userID)
	assert.Equal(t, "alice", username)
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	svc, store := newTestAuthService()

	_, err := svc.Register(&models.RegisterRequest{Username: "bob", Password: "hunter22"})
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", store.users["bob"].Password)
	assert.NotContains(t, store.users["bob"].Password, "hunter22")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Register(&models.RegisterRequest{Username: "carol", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Register(&models.RegisterRequest{Username: "carol", Password: "password2"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Register(&models.RegisterRequest{
		Username: "dave",
		Password: strings.Repeat("x", maxPasswordBytes+1),
	})
	assert.Error(t, err)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newTestAuthService()
	_, err := svc.Register(&models.RegisterRequest{Username: "erin", Password: "correct-horse"})
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(&models.LoginRequest{Username: "erin", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(&models.LoginRequest{Username: "nobody", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerifyIdentityFailures(t *testing.T) {
	svc, _ := newTestAuthService()
	_, err := svc.Register(&models.RegisterRequest{Username: "frank", Password: "password1"})
	require.NoError(t, err)
	token, err := svc.Login(&models.LoginRequest{Username: "frank", Password: "password1"})
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := svc.VerifyIdentity("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		_, _, err := svc.VerifyIdentity(token.AccessToken + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := NewAuthService(newFakeUserStore(), "other-secret", time.Hour)
		_, _, err := other.VerifyIdentity(token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
