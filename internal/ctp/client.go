// Package ctp is the HTTP client of the commerce platform: the cart API and the auth service.
package ctp

import (
	"bytes"
	"cartsync/internal/types"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Client implements ports.CartService, ports.CatalogService, ports.CustomerService and
// ports.TokenIssuer over HTTP.
type Client struct {
	apiURL       string
	authURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	now          func() time.Time
}

// NewClient builds a client from the store configuration. A nil httpClient gets one bounded by
// cfg.RemoteTimeout().
func NewClient(cfg types.StoreConfig, httpClient *http.Client) *Client {
	cfg = cfg.WithDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RemoteTimeout()}
	}
	return &Client{
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		authURL:      strings.TrimRight(cfg.AuthURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         httpClient,
		now:          time.Now,
	}
}

func (c *Client) CreateCart(ctx context.Context, token string, draft types.CartDraft) (types.Cart, error) {
	var out types.Cart
	err := c.do(ctx, token, http.MethodPost, "/carts", draft, &out)
	return out, err
}

func (c *Client) ListActiveCarts(ctx context.Context, token string) (types.CartPage, error) {
	var out types.CartPage
	err := c.do(ctx, token, http.MethodGet, "/me/carts", nil, &out)
	return out, err
}

func (c *Client) GetCart(ctx context.Context, token, cartID string) (types.Cart, error) {
	var out types.Cart
	err := c.do(ctx, token, http.MethodGet, "/carts/"+url.PathEscape(cartID), nil, &out)
	return out, err
}

func (c *Client) UpdateCart(ctx context.Context, token, cartID string, version int64, actions []types.UpdateAction) (types.Cart, error) {
	var out types.Cart
	body := types.CartUpdate{Version: version, Actions: actions}
	err := c.do(ctx, token, http.MethodPost, "/carts/"+url.PathEscape(cartID), body, &out)
	return out, err
}

func (c *Client) DeleteCart(ctx context.Context, token, cartID string, version int64) (types.Cart, error) {
	var out types.Cart
	path := "/carts/" + url.PathEscape(cartID) + "?version=" + strconv.FormatInt(version, 10)
	err := c.do(ctx, token, http.MethodDelete, path, nil, &out)
	return out, err
}

// SearchProducts runs a product projection search. Every filter is sent as one filter.query
// parameter.
func (c *Client) SearchProducts(ctx context.Context, token string, filters []string) (types.ProductPage, error) {
	var out types.ProductPage
	path := "/product-projections/search"
	if len(filters) > 0 {
		path += "?" + url.Values{"filter.query": filters}.Encode()
	}
	err := c.do(ctx, token, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CreateCustomer(ctx context.Context, token string, draft types.CustomerDraft) (types.CustomerInfo, error) {
	var out types.CustomerSignInResult
	err := c.do(ctx, token, http.MethodPost, "/customers", draft, &out)
	return out.Customer, err
}

func (c *Client) CustomerExists(ctx context.Context, token, email string) (bool, error) {
	var out types.CustomerPage
	where := url.Values{"where": {"email=" + strconv.Quote(email)}}
	err := c.do(ctx, token, http.MethodGet, "/customers?"+where.Encode(), nil, &out)
	return out.Count > 0, err
}

// do sends one JSON request to the cart API and decodes a 2xx answer into out.
func (c *Client) do(ctx context.Context, token, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return types.Err(types.ErrRemoteUnavailable, err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return types.Err(types.ErrRemoteUnavailable, err, "read %s %s", req.Method, req.URL.Path)
	}
	log.WithFields(log.Fields{
		"method":  req.Method,
		"path":    req.URL.Path,
		"status":  resp.StatusCode,
		"elapsed": c.now().Sub(start).String(),
	}).Debug("platform call")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(content, out); err != nil {
			return types.Err(types.ErrRemoteUnavailable, err, "decode %s %s", req.Method, req.URL.Path)
		}
		return nil
	}
	return decodeError(resp.StatusCode, content)
}

// ErrorResponse is the platform's error body.
type ErrorResponse struct {
	StatusCode int           `json:"statusCode"`
	Message    string        `json:"message"`
	Errors     []ErrorObject `json:"errors,omitempty"`
	// Auth endpoints answer with OAuth style fields.
	OAuthError       string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type ErrorObject struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	CurrentVersion int64  `json:"currentVersion,omitempty"`
}

// Error codes the platform reports in ErrorObject.Code.
const (
	CodeConcurrentModification    = "ConcurrentModification"
	CodeResourceNotFound          = "ResourceNotFound"
	CodeInvalidOperation          = "InvalidOperation"
	CodeInvalidInput              = "InvalidInput"
	CodeDiscountCodeNonApplicable = "DiscountCodeNonApplicable"
	CodeDuplicateField            = "DuplicateField"
	CodeInvalidToken              = "invalid_token"
	CodeInvalidCustomerCreds      = "InvalidCustomerCredentials"
	CodeInvalidClient             = "invalid_client"
)

// decodeError maps a non-2xx answer onto the error taxonomy.
func decodeError(status int, content []byte) error {
	var er ErrorResponse
	_ = json.Unmarshal(content, &er)
	msg := er.Message
	if msg == "" {
		msg = er.ErrorDescription
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := er.OAuthError
	if len(er.Errors) > 0 {
		code = er.Errors[0].Code
	}
	inner := fmt.Errorf("platform answered %d %s: %s", status, code, msg)

	switch {
	case status == http.StatusConflict || code == CodeConcurrentModification:
		return types.Err(types.ErrVersionConflict, inner, "")
	case status == http.StatusNotFound:
		return types.Err(types.ErrNotFound, inner, "")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.Err(types.ErrSessionUnavailable, inner, "")
	case status == http.StatusBadRequest:
		switch {
		case code == CodeInvalidCustomerCreds || code == CodeInvalidClient || er.OAuthError != "":
			return types.Err(types.ErrSessionUnavailable, inner, "")
		case code == CodeDuplicateField:
			return types.Err(types.ErrCustomerExists, inner, "")
		case code == CodeInvalidInput:
			return types.Err(types.ErrInvalidInput, inner, "")
		}
		return types.Err(types.ErrInvalidMutation, inner, "")
	default:
		return types.Err(types.ErrRemoteUnavailable, inner, "")
	}
}
