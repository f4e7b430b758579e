package types

import "time"

const (
	SessionAnonymous = "anonymous"
	SessionCustomer  = "customer"
)

// Session is a bearer token issued by the auth service. A new session replaces the old one; it is
// never modified in place.
type Session struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
	Kind         string
}

// Valid reports whether the token can be used at now, keeping skew as a safety margin before expiry.
func (s Session) Valid(now time.Time, skew time.Duration) bool {
	if s.Token == "" {
		return false
	}
	return now.Add(skew).Before(s.ExpiresAt)
}

// TokenResponse is the auth service's answer to every grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// Session converts the response into a Session that expires relative to now.
func (r TokenResponse) Session(now time.Time, kind string) Session {
	return Session{
		Token:        r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		Kind:         kind,
	}
}
