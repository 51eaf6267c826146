package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
	googleUserURL   = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OAuth2Provider runs the authorization-code flow against GitHub or Google
// and turns the profile into an Identity.
type OAuth2Provider struct {
	provider  string
	oauth     *oauth2.Config
	userURL   string
	emailsURL string
}

func NewOAuth2Provider(cfg *config.OAuth2Config) *OAuth2Provider {
	p := &OAuth2Provider{
		provider: cfg.Provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
		},
	}

	switch cfg.Provider {
	case "google":
		p.oauth.Endpoint = google.Endpoint
		p.oauth.Scopes = []string{"openid", "profile", "email"}
		p.userURL = googleUserURL
	case "github":
		p.oauth.Endpoint = github.Endpoint
		p.oauth.Scopes = []string{"read:user", "user:email"}
		p.userURL = githubUserURL
		p.emailsURL = githubEmailsURL
	}

	return p
}

func (p *OAuth2Provider) GetName() string {
	return "oauth2:" + p.provider
}

func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the profile.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth2 token exchange failed: %w", err)
	}

	client := p.oauth.Client(ctx, token)

	var profile struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.userURL, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	email := profile.Email
	if email == "" && p.emailsURL != "" {
		email, err = p.primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%s account has no email address", p.provider)
	}

	username := profile.Login
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	return &models.Identity{
		Username: username,
		Email:    email,
		Source:   p.GetName(),
	}, nil
}

func (p *OAuth2Provider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.emailsURL, &emails); err != nil {
		return "", fmt.Errorf("failed to fetch emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
