package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok-1", time.Minute))
	ok, err := s.Valid(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Valid(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Revoke(ctx, "tok-1"))
	ok, err = s.Valid(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok-short", -time.Second))
	ok, err := s.Valid(ctx, "tok-short")
	require.NoError(t, err)
	assert.False(t, ok, "expired tokens are invalid")
}

func TestRedisStoreLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok-1", time.Minute))
	ok, err := s.Valid(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = s.Valid(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok, "TTL expiry invalidates the token")

	require.NoError(t, s.Put(ctx, "tok-2", time.Minute))
	require.NoError(t, s.Revoke(ctx, "tok-2"))
	ok, err = s.Valid(ctx, "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newTestService() *Service {
	return NewService(NewMemoryStore(), "admin", "hunter2", time.Hour)
}

func TestLoginIssuesUniqueTokens(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tok1, err := svc.Login(ctx, "admin", "hunter2")
	require.NoError(t, err)
	tok2, err := svc.Login(ctx, "admin", "hunter2")
	require.NoError(t, err)

	assert.NotEmpty(t, tok1)
	assert.NotEqual(t, tok1, tok2)
	assert.True(t, svc.Validate(ctx, tok1))
	assert.True(t, svc.Validate(ctx, tok2))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "intruder", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEmptyConfiguredPasswordDisablesLogin(t *testing.T) {
	svc := NewService(NewMemoryStore(), "admin", "", time.Hour)

	_, err := svc.Login(context.Background(), "admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tok, err := svc.Login(ctx, "admin", "hunter2")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tok))
	assert.False(t, svc.Validate(ctx, tok))

	require.NoError(t, svc.Logout(ctx, "never-issued"))
	require.NoError(t, svc.Logout(ctx, ""))
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	svc := newTestService()
	assert.False(t, svc.Validate(context.Background(), ""))
}

func TestMiddleware(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	var reached bool
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	// No cookie
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/voice", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)

	// Bogus cookie
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/voice", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)

	// Real token
	tok, err := svc.Login(ctx, "admin", "hunter2")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws/voice", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}
