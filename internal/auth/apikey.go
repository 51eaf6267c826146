package auth

import (
	"fmt"
	"net/http"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const APIKeyPrefix = "sk_"

func NewAPIKey() (string, error) {
	id, err := gonanoid.New(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + id, nil
}

// APIKeyFromRequest returns the API key carried in the Authorization header,
// either raw or as a bearer token. Headers that do not hold an API key yield "".
func APIKeyFromRequest(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("Authorization"))
	value = strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
	if !strings.HasPrefix(value, APIKeyPrefix) {
		return ""
	}
	return value
}

// TokenFromRequest returns the session token from the cookie, falling back to
// an "Authorization: Bearer" header that does not hold an API key.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return BearerToken(r)
}

// BearerToken returns the bearer token of the Authorization header unless it
// is an API key.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.HasPrefix(parts[1], APIKeyPrefix) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
