// Package oidc speaks the authorization-code flow to the identity provider.
//
// Two exchanges are supported, both against the provider's token endpoint:
// trading an authorization code for a full credential bundle, and trading a
// refresh token for a new access token. The login redirect URL is built with
// golang.org/x/oauth2; the refresh grant is a hand-built form POST because
// the provider requires a `scope` parameter that oauth2.TokenSource does not
// send.
package oidc

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/config"
	"github.com/quadmarket/gateway/internal/metrics"
	"github.com/quadmarket/gateway/logging"
)

var (
	// ErrMissingClientID is returned when a login redirect is requested but
	// no client id is configured. Checked before the URL is built, never
	// silently omitted.
	ErrMissingClientID = errors.New("oidc: missing client id").
				WithHTTPStatusCode(http.StatusInternalServerError).
				WithPublicMessage("Missing client ID")

	// ErrMissingClientCredentials is returned by the refresh exchange when
	// the client id or secret is not configured.
	ErrMissingClientCredentials = errors.New("oidc: missing client credentials").
					WithHTTPStatusCode(http.StatusInternalServerError).
					WithPublicMessage("Missing client credentials")

	// ErrServerConfiguration is the code-exchange flavor of the same
	// problem, with generic wording for the callback response.
	ErrServerConfiguration = errors.New("oidc: client id or secret not configured").
				WithHTTPStatusCode(http.StatusInternalServerError).
				WithPublicMessage("Server configuration error")

	// ErrTokenExchangeFailed is returned when the token endpoint answers
	// with a non-success status.
	ErrTokenExchangeFailed = errors.New("oidc: token exchange failed").
				WithHTTPStatusCode(http.StatusUnauthorized).
				WithPublicMessage("Token exchange failed")
)

// Tokens is the credential bundle issued by the token endpoint. RefreshToken
// responses reuse the prior IDToken, so it may be empty after a refresh.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the access token validity in seconds.
	ExpiresIn int
}

// Client talks to the identity provider.
type Client struct {
	clientID          string
	clientSecret      string
	authorizeEndpoint string
	tokenEndpoint     string
	redirectURI       string
	scope             string
	httpClient        *http.Client
}

// New creates a provider client from configuration. Credentials may be
// empty; each operation reports their absence with the appropriate error.
func New(cfg config.OIDC) *Client {
	return &Client{
		clientID:          cfg.ClientID,
		clientSecret:      cfg.ClientSecret,
		authorizeEndpoint: cfg.AuthorizeEndpoint,
		tokenEndpoint:     cfg.TokenEndpoint,
		redirectURI:       cfg.RedirectURI,
		scope:             cfg.Scope,
		httpClient:        &http.Client{Timeout: cfg.Timeout},
	}
}

// LoginURL builds the redirect target for the provider's authorization
// endpoint. state carries the originally-requested path so the callback can
// send the user back where they started.
func (c *Client) LoginURL(state string) (string, error) {
	if c.clientID == "" {
		return "", errors.Mark(ErrMissingClientID, 0)
	}
	return c.oauthConfig().AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a credential bundle.
func (c *Client) Exchange(ctx context.Context, code string) (Tokens, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return Tokens{}, errors.Mark(ErrServerConfiguration, 0)
	}

	// Route the oauth2 transport through our bounded-timeout client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if goerrors.As(err, &rerr) {
			metrics.TokenExchanges.WithLabelValues("authorization_code", "rejected").Inc()
			logging.Warnw(ctx, "oidc: token endpoint rejected code",
				"status", rerr.Response.StatusCode)
			return Tokens{}, errors.Mark(ErrTokenExchangeFailed, 0)
		}
		metrics.TokenExchanges.WithLabelValues("authorization_code", "unreachable").Inc()
		logging.Errorw(ctx, "oidc: token endpoint unreachable", "error", err)
		return Tokens{}, errors.WrapPrefix(err, "oidc: code exchange", 0).
			WithPublicMessage("Internal server error")
	}
	metrics.TokenExchanges.WithLabelValues("authorization_code", "ok").Inc()

	idToken, _ := tok.Extra("id_token").(string)
	return Tokens{
		IDToken:      idToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn(tok),
	}, nil
}

// Refresh trades a refresh token for a new access token. The provider does
// not reissue the id token on this path.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return Tokens{}, errors.Mark(ErrMissingClientCredentials, 0)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"scope":         {c.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Tokens{}, errors.Wrap(err, 0)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("refresh_token", "unreachable").Inc()
		logging.Errorw(ctx, "oidc: token endpoint unreachable", "error", err)
		return Tokens{}, errors.WrapPrefix(err, "oidc: refresh exchange", 0).
			WithPublicMessage("Internal server error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TokenExchanges.WithLabelValues("refresh_token", "rejected").Inc()
		logging.Warnw(ctx, "oidc: token endpoint rejected refresh", "status", resp.StatusCode)
		return Tokens{}, errors.Mark(ErrTokenExchangeFailed, 0)
	}
	metrics.TokenExchanges.WithLabelValues("refresh_token", "ok").Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Tokens{}, errors.WrapPrefix(err, "oidc: reading refresh response", 0)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Tokens{}, errors.WrapPrefix(err, "oidc: decoding refresh response", 0)
	}

	return Tokens{
		IDToken:      tr.IDToken,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Scopes:       strings.Split(c.scope, " "),
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.authorizeEndpoint,
			TokenURL: c.tokenEndpoint,

			// The provider expects client credentials in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// expiresIn recovers the provider's expires_in value from the raw token
// response rather than re-deriving it from tok.Expiry, which would lose a
// fraction of a second to transit time.
func expiresIn(tok *oauth2.Token) int {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}
