package auth

import (
	"fmt"

	"sxbin-backend/internal/config"
)

func NewAuthenticator(cfg *config.Config, users UserLookup) (Authenticator, error) {
	switch cfg.Auth.Type {
	case "local":
		return NewLocalAuth(users), nil
	case "ldap":
		return NewLDAPAuth(&cfg.LDAP), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Auth.Type)
	}
}
