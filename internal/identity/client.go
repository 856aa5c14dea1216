// Package identity talks to the remote identity provider over HTTP JSON.
// The provider owns credentials and account records; this service only
// forwards requests and validates response shapes at the boundary.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every provider call. On timeout the call is a
// transport failure; retries are a caller concern, never done here.
const DefaultTimeout = 10 * time.Second

// ErrTransport wraps network failures, timeouts, and malformed responses.
var ErrTransport = errors.New("identity: transport failure")

// ProviderError carries a non-success response from the provider, with its
// own status code preserved for the caller-facing result.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity: provider rejected request (%d): %s", e.Status, e.Message)
}

// Account is the provider's view of a user.
type Account struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

// AuthResult is returned by register and login: the account plus the
// opaque token pair.
type AuthResult struct {
	User         Account `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
}

// TokenPair is returned by the refresh endpoint.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest is the register payload. Fields are expected to be
// sanitized before they reach this client.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// envelope is the provider's uniform response wrapper.
type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// Client is an HTTP client for the identity provider.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures Client behavior.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests, custom
// transports). The caller keeps responsibility for its timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account: POST /auth/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, "", &out); err != nil {
		return nil, err
	}
	if err := validateAuthResult(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates credentials: POST /auth/login.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, "", &out); err != nil {
		return nil, err
	}
	if err := validateAuthResult(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a fresh pair: POST /auth/refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var out TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, "", &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing tokens", ErrTransport)
	}
	return &out, nil
}

// Me resolves the account behind an access token: GET /auth/me.
func (c *Client) Me(ctx context.Context, accessToken string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, accessToken, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: me response missing account id", ErrTransport)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrTransport, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	if !env.Success {
		status := env.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		return &ProviderError{Status: status, Message: env.Message}
	}
	if out != nil {
		if len(env.Data) == 0 {
			return fmt.Errorf("%w: empty data in success envelope", ErrTransport)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode data: %v", ErrTransport, err)
		}
	}
	return nil
}

func validateAuthResult(res *AuthResult) error {
	if res.User.ID == "" || res.AccessToken == "" || res.RefreshToken == "" {
		return fmt.Errorf("%w: auth response missing identity or tokens", ErrTransport)
	}
	return nil
}
