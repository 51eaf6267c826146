package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
)

type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

var dialLDAP = func(addr string) (ldapConn, error) {
	return ldap.DialURL(addr)
}

// LDAPAuth binds against a generic LDAP directory or Active Directory.
type LDAPAuth struct {
	config *config.LDAPConfig
}

func NewLDAPAuth(cfg *config.LDAPConfig) *LDAPAuth {
	return &LDAPAuth{config: cfg}
}

func (a *LDAPAuth) GetName() string {
	if a.config.ActiveDirectory {
		return "active_directory"
	}
	return "ldap"
}

func (a *LDAPAuth) Authenticate(ctx context.Context, usernameOrEmail, password string) (*models.Identity, error) {
	// An empty password would be an unauthenticated bind, which most servers accept.
	if password == "" {
		return nil, ErrInvalidCredentials
	}

	conn, err := dialLDAP(a.config.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP: %w", err)
	}
	defer conn.Close()

	if a.config.BindDN != "" {
		err = conn.Bind(a.config.BindDN, a.config.BindPass)
		if err != nil {
			return nil, fmt.Errorf("failed to bind service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		a.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		a.filter(usernameOrEmail),
		[]string{"dn", "cn", a.config.EmailAttr, a.config.UsernameAttr},
		nil,
	)

	sr, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search user: %w", err)
	}

	if len(sr.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := sr.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	username := entry.GetAttributeValue(a.config.UsernameAttr)
	if username == "" {
		username = usernameOrEmail
	}
	email := entry.GetAttributeValue(a.config.EmailAttr)
	if email == "" {
		email = username + "@" + a.host()
	}

	return &models.Identity{
		Username: username,
		Email:    email,
		Source:   a.GetName(),
	}, nil
}

// filter substitutes {username} in the configured filter. Inputs containing
// '@' are matched against the email attribute instead.
func (a *LDAPAuth) filter(usernameOrEmail string) string {
	escaped := ldap.EscapeFilter(usernameOrEmail)
	if strings.Contains(usernameOrEmail, "@") {
		return fmt.Sprintf("(&(objectClass=*)(%s=%s))", a.config.EmailAttr, escaped)
	}
	return strings.ReplaceAll(a.config.UserFilter, "{username}", escaped)
}

func (a *LDAPAuth) host() string {
	u, err := url.Parse(a.config.Server)
	if err != nil || u.Hostname() == "" {
		return "ldap.local"
	}
	return u.Hostname()
}
