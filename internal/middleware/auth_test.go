package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": role, "exp": exp.Unix()})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func guarded(guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", guard, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestOperatorAuth(t *testing.T) {
	r := guarded(OperatorAuth(secret))
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, RoleOperator, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"wrong role", "Bearer " + signed(t, "admin", future), http.StatusForbidden},
		{"ok", "Bearer " + signed(t, RoleOperator, future), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthGuardRefusesEverythingWithoutSecret(t *testing.T) {
	r := guarded(OperatorAuth(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a token signed with the empty key must not pass either
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": RoleOperator, "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := tok.SignedString([]byte(""))
	if err == nil {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+unsigned)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}
