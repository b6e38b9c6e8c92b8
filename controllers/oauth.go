package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/myblog/config"
)

// oauthProfile is what a provider tells us about the signed-in account.
type oauthProfile struct {
	ID        string
	Login     string
	Name      string
	Email     string // verified addresses only
	AvatarURL string
}

type oauthProvider struct {
	endpoint    oauth2.Endpoint
	scopes      []string
	credentials func(config.AppConfig) (id, secret string)
	profile     func(ctx context.Context, hc *http.Client) (*oauthProfile, error)
}

var oauthProviders = map[string]oauthProvider{
	"github": {
		endpoint: github.Endpoint,
		scopes:   []string{"read:user", "user:email"},
		credentials: func(c config.AppConfig) (string, string) {
			return c.GitHubClientID, c.GitHubClientSecret
		},
		profile: githubProfile,
	},
	"google": {
		endpoint: google.Endpoint,
		scopes:   []string{"openid", "profile", "email"},
		credentials: func(c config.AppConfig) (string, string) {
			return c.GoogleClientID, c.GoogleClientSecret
		},
		profile: googleProfile,
	},
}

// lookupOAuth returns the provider and its client config, or an error when
// the provider is unknown or has no credentials configured.
func lookupOAuth(name string) (oauthProvider, *oauth2.Config, error) {
	name = strings.ToLower(name)
	p, ok := oauthProviders[name]
	if !ok {
		return oauthProvider{}, nil, fmt.Errorf("unsupported provider: %s", name)
	}
	cfg := config.Get()
	id, secret := p.credentials(cfg)
	if id == "" || secret == "" {
		return oauthProvider{}, nil, fmt.Errorf("%s oauth not configured", name)
	}
	return p, &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  strings.TrimRight(cfg.OAuthRedirectBase, "/") + "/api/v1/auth/oauth/" + name + "/callback",
		Scopes:       p.scopes,
		Endpoint:     p.endpoint,
	}, nil
}

func getJSON(ctx context.Context, hc *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func githubProfile(ctx context.Context, hc *http.Client) (*oauthProfile, error) {
	var u struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, hc, "https://api.github.com/user", &u); err != nil {
		return nil, err
	}
	p := &oauthProfile{ID: strconv.FormatInt(u.ID, 10), Login: u.Login, Name: u.Name, AvatarURL: u.AvatarURL}

	// The primary address is only listed here when the user keeps it private.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, hc, "https://api.github.com/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				p.Email = e.Email
			}
		}
	}
	return p, nil
}

func googleProfile(ctx context.Context, hc *http.Client) (*oauthProfile, error) {
	var u struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, hc, "https://www.googleapis.com/oauth2/v2/userinfo", &u); err != nil {
		return nil, err
	}
	p := &oauthProfile{ID: u.ID, Name: u.Name, AvatarURL: u.Picture}
	p.Login, _, _ = strings.Cut(u.Email, "@")
	if u.VerifiedEmail {
		p.Email = u.Email
	}
	return p, nil
}

// displayName prefers the profile name, then the login, then provider_id.
func (p *oauthProfile) displayName(provider string) string {
	for _, v := range []string{p.Name, p.Login} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return provider + "_" + p.ID
}
