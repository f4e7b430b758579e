package ctp

import (
	"cartsync/internal/types"
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	AnonymousTokenPath = "/oauth/anonymous/token"
	CustomerTokenPath  = "/oauth/customers/token"
	TokenPath          = "/oauth/token"
)

func (c *Client) AnonymousSession(ctx context.Context) (types.Session, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	return c.grant(ctx, AnonymousTokenPath, form, types.SessionAnonymous)
}

func (c *Client) PasswordSession(ctx context.Context, email, password string) (types.Session, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {email},
		"password":   {password},
	}
	return c.grant(ctx, CustomerTokenPath, form, types.SessionCustomer)
}

// RefreshSession trades a refresh token for a new access token. The session kind is unknown to the
// auth service and left empty.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (types.Session, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.grant(ctx, TokenPath, form, "")
}

func (c *Client) grant(ctx context.Context, path string, form url.Values, kind string) (types.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return types.Session{}, err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tr types.TokenResponse
	if err := c.send(req, &tr); err != nil {
		return types.Session{}, err
	}
	if tr.AccessToken == "" {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, nil, "auth service returned an empty token")
	}
	return tr.Session(c.now(), kind), nil
}
