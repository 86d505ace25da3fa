package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/voxlane/voice-platform/internal/domain"
)

// Scopes requested on connect. Calendar access backs the agent calendar
// tools; userinfo identifies which Google account was linked.
var defaultScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Client wraps the Google OAuth2 authorization code flow and token refresh.
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new Google OAuth client
func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       defaultScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL builds the consent page URL for a state token. Offline access is
// requested so a refresh token is issued.
func (c *Client) AuthURL(state string) string {
	return c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange swaps an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// GrantedScope returns the scopes the user actually granted. Google echoes
// them in the token response; users can deselect individual scopes on the
// consent screen, so the echo is authoritative. The requested scopes are
// the fallback for responses that omit the field.
func GrantedScope(token *oauth2.Token) string {
	if s, ok := token.Extra("scope").(string); ok && s != "" {
		return s
	}
	return strings.Join(defaultScopes, " ")
}

// FetchEmail returns the email address of the Google account behind a token.
func (c *Client) FetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	httpClient := c.config.Client(ctx, token)
	httpClient.Timeout = 10 * time.Second

	resp, err := httpClient.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to parse userinfo: %w", err)
	}

	return info.Email, nil
}

// FreshToken returns a valid access token for a stored connection,
// refreshing through the refresh token when the stored one has expired.
// The second return reports whether the connection should be re-persisted.
func (c *Client) FreshToken(ctx context.Context, conn *domain.OAuthConnection) (*oauth2.Token, bool, error) {
	stored := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.Expiry,
	}

	if !conn.Expired() {
		return stored, false, nil
	}

	refreshed, err := c.config.TokenSource(ctx, stored).Token()
	if err != nil {
		return nil, false, fmt.Errorf("failed to refresh token: %w", err)
	}

	return refreshed, refreshed.AccessToken != stored.AccessToken, nil
}
