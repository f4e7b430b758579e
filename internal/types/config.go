package types

import (
	"fmt"
	"strings"
	"time"
)

// StoreConfig drives the engine for one storefront. It is loaded from YAML and overridden by
// environment variables (see cli.LoadConfig).
// APIURL is the base URL of the cart API, AuthURL the base URL of the token endpoints. Both usually
// include the project key, e.g. `https://api.example.com/my-project`.
// ClientID and ClientSecret authenticate the storefront against the auth service.
// Currency is fixed for every cart the engine creates.
// RemoteTimeoutSeconds bounds every remote call; a call running longer counts as remote unavailable.
// TokenSkewSeconds renews tokens that are about to expire before they are used.
// EventsTopicArn enables cart events when set.
type StoreConfig struct {
	APIURL               string `json:"api_url" yaml:"api_url"`
	AuthURL              string `json:"auth_url" yaml:"auth_url"`
	ClientID             string `json:"client_id" yaml:"client_id"`
	ClientSecret         string `json:"client_secret" yaml:"client_secret"`
	Currency             string `json:"currency" yaml:"currency"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds" yaml:"remote_timeout_seconds"`
	TokenSkewSeconds     int    `json:"token_skew_seconds" yaml:"token_skew_seconds"`
	EventsTopicArn       string `json:"events_topic_arn,omitempty" yaml:"events_topic_arn,omitempty"`
}

const (
	DefaultCurrency             = "USD"
	DefaultRemoteTimeoutSeconds = 10
	DefaultTokenSkewSeconds     = 60
	ClientIDMinLength           = 4
)

// WithDefaults fills unset optional fields.
func (c StoreConfig) WithDefaults() StoreConfig {
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.RemoteTimeoutSeconds == 0 {
		c.RemoteTimeoutSeconds = DefaultRemoteTimeoutSeconds
	}
	if c.TokenSkewSeconds == 0 {
		c.TokenSkewSeconds = DefaultTokenSkewSeconds
	}
	if c.AuthURL == "" {
		c.AuthURL = c.APIURL
	}
	return c
}

func (c StoreConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

func (c StoreConfig) TokenSkew() time.Duration {
	return time.Duration(c.TokenSkewSeconds) * time.Second
}

func (c StoreConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if len(c.ClientID) < ClientIDMinLength {
		return fmt.Errorf("client_id must be at least %d characters", ClientIDMinLength)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	if c.RemoteTimeoutSeconds < 0 {
		return fmt.Errorf("remote_timeout_seconds must be non-negative. 0 for the default")
	}
	if c.TokenSkewSeconds < 0 {
		return fmt.Errorf("token_skew_seconds must be non-negative. 0 for the default")
	}
	return nil
}

// Catalog is what the platform emulator sells: products with variant prices, discount codes and
// password customers.
type Catalog struct {
	Currency      string         `json:"currency" yaml:"currency"`
	Products      []Product      `json:"products" yaml:"products"`
	DiscountCodes []DiscountCode `json:"discount_codes" yaml:"discount_codes"`
	Customers     []Customer     `json:"customers" yaml:"customers"`
	Clients       []APIClient    `json:"clients" yaml:"clients"`
	// TokenLifetimeSeconds is the lifetime of issued access tokens. 0 means 48 hours.
	TokenLifetimeSeconds int `json:"token_lifetime_seconds" yaml:"token_lifetime_seconds"`
}

type Product struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Variants []Variant `json:"variants" yaml:"variants"`
}

type Variant struct {
	ID         int   `json:"id" yaml:"id"`
	CentAmount int64 `json:"cent_amount" yaml:"cent_amount"`
	// DiscountedCentAmount is a product-level sale price; 0 means none.
	DiscountedCentAmount int64 `json:"discounted_cent_amount,omitempty" yaml:"discounted_cent_amount,omitempty"`
}

// DiscountCode takes PercentOff percent off every line's unit price.
type DiscountCode struct {
	Code       string `json:"code" yaml:"code"`
	PercentOff int    `json:"percent_off" yaml:"percent_off"`
}

type Customer struct {
	ID        string `json:"id" yaml:"id"`
	Email     string `json:"email" yaml:"email"`
	Password  string `json:"password" yaml:"password"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
}

type APIClient struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
}

func (c Catalog) Validate() error {
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.Variants) == 0 {
			return fmt.Errorf("product %q has no variants", p.ID)
		}
		for _, v := range p.Variants {
			if v.CentAmount < 0 || v.DiscountedCentAmount < 0 {
				return fmt.Errorf("product %q variant %d has a negative price", p.ID, v.ID)
			}
		}
	}
	for _, d := range c.DiscountCodes {
		if d.Code == "" {
			return fmt.Errorf("discount code is required")
		}
		if d.PercentOff <= 0 || d.PercentOff > 100 {
			return fmt.Errorf("discount code %q: percent_off must be in (0, 100]", d.Code)
		}
	}
	for _, cu := range c.Customers {
		if cu.Email == "" || cu.Password == "" {
			return fmt.Errorf("customer email and password are required")
		}
	}
	if c.TokenLifetimeSeconds < 0 {
		return fmt.Errorf("token_lifetime_seconds must be non-negative. 0 for the default")
	}
	return nil
}
