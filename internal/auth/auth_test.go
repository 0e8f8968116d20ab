package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Tokens: []TokenConfig{
		{Name: "ops", Token: "ops-token"},
		{Name: "reader", Token: "read-token", Permissions: []string{PermissionActionsRead}},
	}})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRejectsBadTokens(t *testing.T) {
	_, err := NewService(Config{Tokens: []TokenConfig{{Name: "x", Token: " "}}})
	require.Error(t, err)

	_, err = NewService(Config{Tokens: []TokenConfig{{Token: "a"}, {Token: "a"}}})
	require.Error(t, err)
}

func TestAuthenticateRequest(t *testing.T) {
	svc := newTestService(t)

	subject, err := svc.AuthenticateRequest("Bearer ops-token")
	require.NoError(t, err)
	require.Equal(t, "ops", subject.Name)
	require.True(t, subject.HasPermission(PermissionActionsExecute))

	subject, err = svc.AuthenticateRequest("bearer read-token")
	require.NoError(t, err)
	require.Equal(t, "reader", subject.Name)
	require.False(t, subject.HasPermission(PermissionActionsExecute))

	_, err = svc.AuthenticateRequest("")
	require.True(t, errors.Is(err, ErrMissingToken))
	_, err = svc.AuthenticateRequest("Basic abc")
	require.True(t, errors.Is(err, ErrMissingToken))
	_, err = svc.AuthenticateRequest("Bearer nope")
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestDisabledServicePassesThrough(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	require.False(t, svc.Enabled())

	called := false
	handler := svc.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Nil(t, SubjectFromContext(r.Context()))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil))
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	mw := svc.Middleware(MiddlewareConfig{RequiredPermissions: map[string][]string{
		http.MethodPost: {PermissionActionsExecute},
		"*":             {PermissionActionsRead},
	}})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := SubjectFromContext(r.Context())
		require.NotNil(t, subject)
		w.WriteHeader(http.StatusAccepted)
	}))

	cases := []struct {
		name   string
		method string
		token  string
		status int
	}{
		{name: "missing token", method: http.MethodGet, status: http.StatusUnauthorized},
		{name: "unknown token", method: http.MethodGet, token: "Bearer other", status: http.StatusUnauthorized},
		{name: "reader can list", method: http.MethodGet, token: "Bearer read-token", status: http.StatusAccepted},
		{name: "reader cannot execute", method: http.MethodPost, token: "Bearer read-token", status: http.StatusForbidden},
		{name: "ops can execute", method: http.MethodPost, token: "Bearer ops-token", status: http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/actions", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
