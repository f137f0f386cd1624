package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)

	for _, role := range []Role{RoleCustomer, RoleProvider, RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			token, err := m.GenerateAccessToken(Principal{UserID: "u-1", Role: role})
			require.NoError(t, err)

			p, err := m.ParseAndValidate(token)
			require.NoError(t, err)
			assert.Equal(t, "u-1", p.UserID)
			assert.Equal(t, role, p.Role)
		})
	}
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Minute)
		token, err := other.GenerateAccessToken(Principal{UserID: "u-1", Role: RoleCustomer})
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Minute)
		token, err := expired.GenerateAccessToken(Principal{UserID: "u-1", Role: RoleCustomer})
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("Unknown role", func(t *testing.T) {
		token, err := m.GenerateAccessToken(Principal{UserID: "u-1", Role: Role("root")})
		require.NoError(t, err)
		_, err = m.ParseAndValidate(token)
		assert.Error(t, err)
	})
}

func TestPrincipalOwns(t *testing.T) {
	assert.True(t, Principal{UserID: "a", Role: RoleProvider}.Owns("a"))
	assert.False(t, Principal{UserID: "a", Role: RoleProvider}.Owns("b"))
	assert.True(t, Principal{UserID: "x", Role: RoleAdmin}.Owns("b"))
	assert.False(t, Principal{}.Owns(""))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("test-secret", time.Minute)

	r := gin.New()
	r.GET("/provider", AuthRequired(m), RequireRole(RoleProvider, RoleAdmin), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.UserID)
	})

	providerToken, _ := m.GenerateAccessToken(Principal{UserID: "p-1", Role: RoleProvider})
	customerToken, _ := m.GenerateAccessToken(Principal{UserID: "c-1", Role: RoleCustomer})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "Missing credentials", want: http.StatusUnauthorized},
		{name: "Malformed header", header: "Token abc", want: http.StatusUnauthorized},
		{name: "Garbage token", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "Wrong role", header: "Bearer " + customerToken, want: http.StatusForbidden},
		{name: "Provider via header", header: "Bearer " + providerToken, want: http.StatusOK},
		{name: "Provider via query", query: "?access_token=" + providerToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/provider"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
