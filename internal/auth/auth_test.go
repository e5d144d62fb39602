package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Trusslab/internal/auth"
	"Trusslab/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("test-key")

type fakeUsers struct {
	byLogin map[string]struct {
		id   int
		hash string
	}
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byLogin: map[string]struct {
		id   int
		hash string
	}{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, login, _, password string) (int, error) {
	if _, ok := f.byLogin[login]; ok {
		return 0, errors.New("duplicate login")
	}
	id := len(f.byLogin) + 1
	f.byLogin[login] = struct {
		id   int
		hash string
	}{id, password}
	return id, nil
}

func (f *fakeUsers) GetBylogin(_ context.Context, login string) (int, string, error) {
	u, ok := f.byLogin[login]
	if !ok {
		return 0, "", repo.ErrNotFound
	}
	return u.id, u.hash, nil
}

func TestToken_RoundTrip(t *testing.T) {
	tok, err := auth.IssueToken(key, 7, "ada", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseToken(key, tok)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "ada", claims.Login)

	_, err = auth.ParseToken([]byte("other"), tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := auth.IssueToken(key, 7, "ada", -time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(key, expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func protected(t *testing.T) http.Handler {
	env := &auth.Authenv{JWTkey: key}
	return env.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserID(r.Context())
		require.True(t, ok)
		assert.Equal(t, 7, id)
		assert.Equal(t, "ada", auth.Login(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAuthMiddleware(t *testing.T) {
	tok, err := auth.IssueToken(key, 7, "ada", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user/designs", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/user/designs", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: tok})
	rec = httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	protected(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/designs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/profile/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/", rec.Header().Get("Location"))
}

func TestRegisterAndLogin(t *testing.T) {
	env := &auth.Authenv{JWTkey: key, Repo: newFakeUsers()}

	rec := httptest.NewRecorder()
	env.RegisterHandler(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"login":" ada ","email":"ada@example.com","password":"secret1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, rec.Result().Cookies(), 1)
	claims, err := auth.ParseToken(key, rec.Result().Cookies()[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Login)

	rec = httptest.NewRecorder()
	env.RegisterHandler(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"login":"ada","email":"ada@example.com","password":"secret1"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	env.RegisterHandler(rec, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"login":"bob","email":"bob@example.com","password":"123"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cases := map[string]struct {
		body string
		code int
	}{
		"ok":             {`{"login":"ada","password":"secret1"}`, http.StatusOK},
		"wrong password": {`{"login":"ada","password":"nope"}`, http.StatusUnauthorized},
		"unknown user":   {`{"login":"eve","password":"secret1"}`, http.StatusUnauthorized},
		"missing fields": {`{"login":"ada"}`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.AuthHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tc.body)))
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := auth.NewIPRateLimiter(0.001, 2)
	h := limiter.LimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"), "ports share the bucket of their host")
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}
