package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) Login(ctx context.Context, cred Credentials) (Session, error) {
	args := m.Called(ctx, cred)
	s, _ := args.Get(0).(Session)
	return s, args.Error(1)
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func quiet() *log.Logger {
	l := log.New("test")
	l.SetLevel(log.OFF)
	return l
}

func TestSession_HomePath(t *testing.T) {
	assert.Equal(t, "/dashboard", Session{Role: RoleAdmin}.HomePath())
	assert.Equal(t, "/cashier", Session{Role: RoleCashier}.HomePath())
	assert.Equal(t, "/", Session{Role: "guest"}.HomePath())
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	s := Session{UserID: "u1", Username: "ana", Name: "Ana", Token: "tok", Role: RoleCashier, Contact: "0917"}
	require.NoError(t, store.Save(ctx, "till-1", s))
	assert.True(t, mr.Exists("pos:session:till-1"))
	assert.Equal(t, time.Hour, mr.TTL("pos:session:till-1"))

	got, err := store.Load(ctx, "till-1")
	require.NoError(t, err)
	assert.Equal(t, s.Username, got.Username)
	assert.Equal(t, s.Token, got.Token)

	require.NoError(t, store.Delete(ctx, "till-1"))
	_, err = store.Load(ctx, "till-1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStore_Expired(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "till-1", Session{Username: "ana"}))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, "till-1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStore_InvalidJSON(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, mr.Set("pos:session:till-1", "{broken"))

	_, err := store.Load(context.Background(), "till-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestManager_Login_Success(t *testing.T) {
	auth := new(AuthMock)
	store := NewMemoryStore()
	m := NewManager(auth, store, "till-1", quiet())
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	auth.On("Login", mock.Anything, Credentials{Username: "ana", Password: "pw", Role: "cashier"}).
		Return(Session{Token: "tok", Name: "Ana", Contact: "0917"}, nil).Once()

	s, err := m.Login(context.Background(), Credentials{Username: " ana ", Password: "pw", Role: "Cashier"})
	require.NoError(t, err)
	assert.Equal(t, "ana", s.Username)
	assert.Equal(t, RoleCashier, s.Role)
	assert.Equal(t, "/cashier", s.HomePath())
	assert.Equal(t, fixed, s.LoggedInAt)

	cur, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", cur.Token)
	auth.AssertExpectations(t)
}

func TestManager_Login_MissingFields(t *testing.T) {
	auth := new(AuthMock)
	m := NewManager(auth, NewMemoryStore(), "till-1", quiet())

	_, err := m.Login(context.Background(), Credentials{Username: "ana"})
	assert.ErrorIs(t, err, ErrInvalidLogin)
	auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestManager_Login_FailureKeepsPrevious(t *testing.T) {
	auth := new(AuthMock)
	store := NewMemoryStore()
	m := NewManager(auth, store, "till-1", quiet())
	require.NoError(t, store.Save(context.Background(), "till-1", Session{Username: "old"}))

	auth.On("Login", mock.Anything, mock.Anything).Return(nil, errors.New("invalid credentials")).Once()

	_, err := m.Login(context.Background(), Credentials{Username: "ana", Password: "x", Role: "admin"})
	require.Error(t, err)

	cur, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", cur.Username)
}

func TestManager_Logout(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(new(AuthMock), store, "till-1", quiet())
	require.NoError(t, store.Save(context.Background(), "till-1", Session{Username: "ana"}))

	require.NoError(t, m.Logout(context.Background()))
	_, err := m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
