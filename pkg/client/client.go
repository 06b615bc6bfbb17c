// Package client is a typed HTTP client for the hospital booking API.
// It keeps the access token in a Session, attaches it to every request and
// drops it when the server answers 401.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	apiPrefix = "/api/v1"
	tokenPath = "/auth/token"
)

// Client calls the booking API on behalf of one session.
type Client struct {
	httpClient     *resty.Client
	session        Session
	logger         *zap.Logger
	onUnauthorized func(route string)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.SetTimeout(d) }
}

// OnUnauthorized is called with LoginRoute after a 401 cleared the session.
func OnUnauthorized(fn func(route string)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New builds a client for the server at baseURL.
func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15*time.Second).
			SetHeader("Accept", "application/json"),
		session: session,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := c.session.Token(); token != "" {
			r.SetAuthToken(token)
		}
		return nil
	})
	c.httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		// A failed login is a wrong password, not an expired session.
		if resp.StatusCode() == http.StatusUnauthorized && !isTokenRequest(resp) {
			c.logger.Info("session rejected by server, clearing token",
				zap.String("path", resp.Request.URL))
			c.session.ClearToken()
			if c.onUnauthorized != nil {
				c.onUnauthorized(LoginRoute)
			}
		}
		return nil
	})
	return c
}

func isTokenRequest(resp *resty.Response) bool {
	if raw := resp.Request.RawRequest; raw != nil {
		return strings.HasSuffix(raw.URL.Path, apiPrefix+tokenPath)
	}
	return strings.HasSuffix(resp.Request.URL, apiPrefix+tokenPath)
}

// Session returns the client's session.
func (c *Client) Session() Session {
	return c.session
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call sends a JSON request and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req := c.httpClient.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, apiPrefix+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return parseError(resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

// Login exchanges credentials for a token, stores it in the session and
// returns the home route of the logged-in role.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"username": username, "password": password}).
		Post(apiPrefix + tokenPath)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.IsError() {
		return "", parseError(resp.StatusCode(), resp.Body())
	}
	var pair TokenPair
	if err := json.Unmarshal(resp.Body(), &pair); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	c.session.SetToken(pair.AccessToken)
	user := c.session.User()
	if user == nil {
		c.session.ClearToken()
		return "", errors.New("login: server returned an unreadable token")
	}
	c.logger.Info("logged in", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return HomeRoute(user.Role), nil
}

// Logout clears the session. The server-side refresh token is revoked when given.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	defer c.session.ClearToken()
	if refreshToken == "" {
		return nil
	}
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"refresh_token": refreshToken}, nil)
}
