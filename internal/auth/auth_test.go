package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken(42, RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	token, err := m.GenerateAccessToken(1, "user")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.ParseAndValidate(token)
	assert.Error(t, err)

	other := NewJWTManager("another", time.Minute)
	_, err = other.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptPasswordHasherWithCost(4)
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "hunter22"))
	assert.ErrorIs(t, h.Compare(hash, "hunter23"), ErrPasswordMismatch)
	assert.False(t, h.NeedsRehash(hash))

	stronger := NewBcryptPasswordHasherWithCost(5)
	assert.True(t, stronger.NeedsRehash(hash))
	assert.True(t, stronger.NeedsRehash("not a hash"))
}

func TestBcryptHasherPasswordTooLong(t *testing.T) {
	h := NewBcryptPasswordHasherWithCost(4)
	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestBcryptHasherCostOutOfRange(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasherWithCost(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasherWithCost(bcrypt.MaxCost+1).cost)
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("secret", time.Minute)

	r := gin.New()
	r.GET("/me", AuthRequired(m, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetAccountID(c), "role": GetRole(c)})
	})

	token, err := m.GenerateAccessToken(7, "user")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"role":"user"}`, w.Body.String())
			}
		})
	}
}

func TestAuthRequiredResolver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("secret", time.Minute)

	resolve := func(_ context.Context, id int64) (string, error) {
		switch id {
		case 1:
			return RoleAdmin, nil
		case 2:
			return "", ErrAccountRevoked
		}
		return "", errors.New("connection refused")
	}

	r := gin.New()
	r.GET("/me", AuthRequired(m, resolve), func(c *gin.Context) {
		c.String(http.StatusOK, GetRole(c))
	})

	// The token still says "user"; the resolver promotes it.
	token, err := m.GenerateAccessToken(1, "user")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, RoleAdmin, w.Body.String())

	token, err = m.GenerateAccessToken(2, RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A failing lookup is not the client's fault.
	token, err = m.GenerateAccessToken(3, RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
