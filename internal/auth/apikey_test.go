package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKey(t *testing.T) {
	a, err := NewAPIKey()
	require.NoError(t, err)
	b, err := NewAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "sk_"))
	assert.Len(t, a, 35)
	assert.NotEqual(t, a, b)
}

func TestAPIKeyFromRequest(t *testing.T) {
	cases := map[string]string{
		"sk_abc":        "sk_abc",
		"Bearer sk_abc": "sk_abc",
		"Bearer eyJhbG": "",
		"":              "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, APIKeyFromRequest(r), header)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	assert.Empty(t, TokenFromRequest(r, "auth_token"))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r, "auth_token"))

	r.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(r, "auth_token"))

	api := httptest.NewRequest(http.MethodGet, "/", nil)
	api.Header.Set("Authorization", "Bearer sk_key")
	assert.Empty(t, TokenFromRequest(api, "auth_token"))
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer eyJhbG":      "eyJhbG",
		"Bearer sk_abc":      "",
		"eyJhbG":             "",
		"Basic Zm9vOmJhcg==": "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		r.Header.Set("Authorization", header)
		assert.Equal(t, want, BearerToken(r), header)
	}
}
