// Package github implements OAuth 2.0 authentication with GitHub.
// Unlike Google OIDC, GitHub uses OAuth 2.0 without ID tokens,
// requiring a separate API call to fetch user information.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/centavo/internal/oauth"
)

const (
	authEndpoint  = "https://github.com/login/oauth/authorize"
	tokenEndpoint = "https://github.com/login/oauth/access_token"
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"
)

// OAuth is the GitHub OAuth 2.0 client.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	http *http.Client
}

// New creates a new GitHub OAuth client.
func New(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user:email", "read:user"},
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *OAuth) ID() string { return "github" }

// AuthURL builds the authorization URL for GitHub OAuth.
// GitHub doesn't support nonce; the state token carries the binding.
func (g *OAuth) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	u, _ := url.Parse(authEndpoint)
	q := u.Query()
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("scope", strings.Join(g.Scopes, " "))
	q.Set("state", state)
	q.Set("allow_signup", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

func (g *OAuth) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Error != "" {
		return nil, fmt.Errorf("github oauth error: %s - %s", tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response")
	}
	return &tr, nil
}

type userInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *OAuth) getUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", userEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// getPrimaryEmail fetches the user's primary verified email.
// Needed because some GitHub users have private emails.
func (g *OAuth) getPrimaryEmail(ctx context.Context, accessToken string) (*emailInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", emailEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: status %d", resp.StatusCode)
	}

	var emails []emailInfo
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, fmt.Errorf("failed to decode emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return &e, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return &e, nil
		}
	}
	if len(emails) > 0 {
		return &emails[0], nil
	}
	return nil, fmt.Errorf("no email found")
}

// Exchange canjea el code y arma el perfil normalizado desde la API de usuario.
func (g *OAuth) Exchange(ctx context.Context, code, _ string) (*oauth.Profile, *oauth.Tokens, error) {
	tr, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	info, err := g.getUserInfo(ctx, tr.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	email := info.Email
	verified := false
	if ei, err := g.getPrimaryEmail(ctx, tr.AccessToken); err == nil {
		if email == "" || ei.Primary {
			email = ei.Email
		}
		verified = ei.Verified
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}

	p := &oauth.Profile{
		Subject:       strconv.FormatInt(info.ID, 10),
		Name:          name,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Image:         info.AvatarURL,
		EmailVerified: verified,
	}
	return p, &oauth.Tokens{Access: tr.AccessToken}, nil
}
