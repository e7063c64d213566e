package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = u.Port()
	cfg.ServerKey = "testkey"
	return New(cfg, zerolog.Nop())
}

func TestAuthenticateDevice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/account/authenticate/device", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("create"))
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("testkey:")), r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "device-1", body["id"])

		_, _ = io.WriteString(w, `{"created":true,"token":"tok","refresh_token":"ref"}`)
	})

	resp, err := c.AuthenticateDevice(context.Background(), "device-1", true, "")
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "ref", resp.RefreshToken)
}

func TestAuthenticateEmailRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account/authenticate/email", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("create"))
		assert.Equal(t, "bob", r.URL.Query().Get("username"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Invalid credentials.","code":16,"message":"Invalid credentials."}`)
	})

	_, err := c.AuthenticateEmail(context.Background(), "bob@example.com", "wrong", false, "bob")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 16, apiErr.Code)
	assert.Equal(t, "Invalid credentials.", apiErr.Error())
}

func TestErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.SessionRefresh(context.Background(), "ref")
	require.Error(t, err)
	assert.Equal(t, "server returned status 502", err.Error())
}

func TestRPCSendsStringPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/rpc/create_match", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "{}", body)

		_, _ = io.WriteString(w, `{"id":"create_match","payload":"{\"match_id\":\"room-42\"}"}`)
	})

	resp, err := c.RPC(context.Background(), "tok", "create_match", map[string]any{})
	require.NoError(t, err)

	var out struct {
		MatchID string `json:"match_id"`
	}
	require.NoError(t, resp.Payload.Decode(&out))
	assert.Equal(t, "room-42", out.MatchID)
}

func TestAccountRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"user":{"id":"p1","username":"alice","display_name":"Alice"},"email":"a@example.com"}`)
		case http.MethodPut:
			var upd types.AccountUpdate
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upd))
			require.NotNil(t, upd.DisplayName)
			assert.Equal(t, "Ally", *upd.DisplayName)
			assert.Nil(t, upd.Username)
			w.WriteHeader(http.StatusOK)
		}
	})

	acc, err := c.GetAccount(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "p1", acc.User.ID)
	assert.Equal(t, "alice", acc.User.Username)

	name := "Ally"
	require.NoError(t, c.UpdateAccount(context.Background(), "tok", types.AccountUpdate{DisplayName: &name}))
}

func TestSessionLogout(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/v2/session/logout", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, "ref", body["refresh_token"])
	})

	require.NoError(t, c.SessionLogout(context.Background(), "tok", "ref"))
	assert.True(t, called)
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetAccount(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnreachableServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Port = "1"
	c := New(cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.AuthenticateDevice(ctx, "d", true, "")
	assert.Error(t, err)
}
