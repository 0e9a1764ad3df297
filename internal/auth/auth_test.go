package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.GenerateToken(&User{Username: "admin"})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "fieldmock", claims.Issuer)

	_, err = m.ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	token, err := m.GenerateToken(&User{Username: "admin"})
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTGeneratedSecret(t *testing.T) {
	a := NewJWTManager("", time.Hour)
	b := NewJWTManager("", time.Hour)

	token, err := a.GenerateToken(&User{Username: "admin"})
	require.NoError(t, err)
	_, err = a.ValidateToken(token)
	assert.NoError(t, err)
	// A different manager has a different generated secret.
	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}

func TestCredentialsAuth(t *testing.T) {
	a := NewCredentialsAuth("admin", "secret")

	user, err := a.Authenticate("admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	_, err = a.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = a.Authenticate("other", "secret")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestRequireAuth(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.GenerateToken(&User{Username: "admin"})
	require.NoError(t, err)

	var seenUser *User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := NewMiddleware(m, false).RequireAuth(next)

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seenUser)
		assert.Equal(t, "admin", seenUser.Username)
	})

	t.Run("cookie token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid token clears cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotEmpty(t, rec.Result().Cookies())
		assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
	})

	t.Run("disabled middleware passes through", func(t *testing.T) {
		open := NewMiddleware(m, true).RequireAuth(next)
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter()
	for i := 0; i < 5; i++ {
		ok, _ := rl.Allow("10.0.0.1")
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, remaining := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, remaining, 0)

	// Other IPs are unaffected; reset clears the block.
	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok)
	rl.Reset("10.0.0.1")
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestWSTokenStore(t *testing.T) {
	s := NewWSTokenStore()
	token, err := s.Generate("admin")
	require.NoError(t, err)

	username, ok := s.Validate(token)
	assert.True(t, ok)
	assert.Equal(t, "admin", username)

	// One-time use.
	_, ok = s.Validate(token)
	assert.False(t, ok)
	_, ok = s.Validate("never-issued")
	assert.False(t, ok)
}
