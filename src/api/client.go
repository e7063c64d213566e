package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Error is a non-2xx response from the game server.
type Error struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// SessionResponse is returned by authentication and refresh calls.
type SessionResponse struct {
	Created      bool   `json:"created"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// RPCResponse is the result of a server-side function call.
type RPCResponse struct {
	ID      string        `json:"id"`
	Payload types.Payload `json:"payload"`
}

// Client calls the game server REST API.
type Client struct {
	baseURL   string
	serverKey string
	timeout   time.Duration
	http      *fasthttp.Client
	logger    zerolog.Logger
}

// New creates an API client for the server described by cfg.
func New(cfg *config.ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:   cfg.HTTPBaseURL(),
		serverKey: cfg.ServerKey,
		timeout:   cfg.RequestTimeoutDuration(),
		http: &fasthttp.Client{
			Name:                "tictactoe-client",
			MaxIdleConnDuration: 30 * time.Second,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// AuthenticateDevice exchanges a device identifier for a session.
func (c *Client) AuthenticateDevice(ctx context.Context, deviceID string, create bool, username string) (*SessionResponse, error) {
	body := map[string]any{"id": deviceID, "vars": map[string]string{}}
	var out SessionResponse
	err := c.do(ctx, fasthttp.MethodPost, "/v2/account/authenticate/device", authQuery(create, username), c.basicAuth(), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthenticateEmail exchanges an email and password for a session.
func (c *Client) AuthenticateEmail(ctx context.Context, email, password string, create bool, username string) (*SessionResponse, error) {
	body := map[string]any{"email": email, "password": password, "vars": map[string]string{}}
	var out SessionResponse
	err := c.do(ctx, fasthttp.MethodPost, "/v2/account/authenticate/email", authQuery(create, username), c.basicAuth(), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionRefresh exchanges a refresh token for a renewed session.
func (c *Client) SessionRefresh(ctx context.Context, refreshToken string) (*SessionResponse, error) {
	body := map[string]any{"token": refreshToken, "vars": map[string]string{}}
	var out SessionResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/v2/account/session/refresh", nil, c.basicAuth(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionLogout invalidates both tokens on the server.
func (c *Client) SessionLogout(ctx context.Context, token, refreshToken string) error {
	body := map[string]string{"token": token, "refresh_token": refreshToken}
	return c.do(ctx, fasthttp.MethodPost, "/v2/session/logout", nil, bearer(token), body, nil)
}

// GetAccount returns the account of the session owner.
func (c *Client) GetAccount(ctx context.Context, token string) (*types.Account, error) {
	var out types.Account
	if err := c.do(ctx, fasthttp.MethodGet, "/v2/account", nil, bearer(token), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAccount changes profile fields of the session owner.
func (c *Client) UpdateAccount(ctx context.Context, token string, update types.AccountUpdate) error {
	return c.do(ctx, fasthttp.MethodPut, "/v2/account", nil, bearer(token), update, nil)
}

// RPC calls the server function id with payload encoded as JSON.
func (c *Client) RPC(ctx context.Context, token, id string, payload any) (*RPCResponse, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode rpc payload: %w", err)
	}
	var out RPCResponse
	// The endpoint expects the payload as a JSON string.
	if err := c.do(ctx, fasthttp.MethodPost, "/v2/rpc/"+url.PathEscape(id), nil, bearer(token), string(inner), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, auth string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if auth != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, auth)
	}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	body := resp.Body()
	if status < 200 || status >= 300 {
		apiErr := &Error{Status: status}
		_ = json.Unmarshal(body, apiErr)
		c.logger.Debug().Int("status", status).Str("path", path).Str("error", apiErr.Message).Msg("request rejected")
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.serverKey+":"))
}

func bearer(token string) string {
	return "Bearer " + token
}

func authQuery(create bool, username string) url.Values {
	q := url.Values{}
	q.Set("create", strconv.FormatBool(create))
	if username != "" {
		q.Set("username", username)
	}
	return q
}
