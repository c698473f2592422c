package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/pkg/jwtutil"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	handler := RequestIDMiddleware(func(c echo.Context) error {
		_, ok := c.Get(logger.EchoKey).(*zap.Logger)
		assert.True(t, ok)
		assert.NotNil(t, logger.FromContext(c.Request().Context()))
		return c.String(http.StatusOK, c.Get(RequestIDKey).(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	generated := rec.Header().Get(RequestIDKey)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "abc-123")
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDKey))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-secret", ExpirationHours: 1})
	gate := auth.NewGate(auth.VerifierFunc(func(u, p string) bool { return u == "admin" && p == "password" }), tokens)
	token, err := gate.Authenticate("admin", "password")
	require.NoError(t, err)

	e := echo.New()
	calls := 0
	handler := AuthMiddleware(gate, metrics.NewNop())(func(c echo.Context) error {
		calls++
		claims, ok := UserFromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, claims.Username)
	})

	testCases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbled", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/db/schema", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			require.NoError(t, handler(e.NewContext(req, rec)))
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "admin", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
	assert.Equal(t, 1, calls)
}
