package service_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/src/realtime"
	"github.com/orchestra-mcp/tictactoe/src/session/sessiontest"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks enough of the game server REST and realtime protocol
// to drive the service end to end.
type fakeServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	ttl           time.Duration
	refreshTTL    time.Duration
	rejectRefresh bool
	deviceAuths   int
	emailAuths    int
	refreshes     int
	logouts       int
	deviceIDs     []string
	conn          *websocket.Conn

	writeMu   sync.Mutex
	connected chan string
	sent      chan realtime.MatchDataSend
	adds      chan realtime.MatchmakerAdd
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:          t,
		ttl:        time.Hour,
		refreshTTL: 24 * time.Hour,
		connected:  make(chan string, 8),
		sent:       make(chan realtime.MatchDataSend, 16),
		adds:       make(chan realtime.MatchmakerAdd, 4),
	}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

// config returns a client configuration pointing at the fake server.
func (f *fakeServer) config() *config.ClientConfig {
	u, err := url.Parse(f.srv.URL)
	require.NoError(f.t, err)
	cfg := config.DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = u.Port()
	cfg.PingInterval = 0
	cfg.StoreDriver = config.StoreMemory
	return cfg
}

func (f *fakeServer) setTTL(ttl, refreshTTL time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl, f.refreshTTL = ttl, refreshTTL
}

func (f *fakeServer) setRejectRefresh(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectRefresh = v
}

func (f *fakeServer) counts() (device, email, refresh, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceAuths, f.emailAuths, f.refreshes, f.logouts
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ws":
		f.serveSocket(w, r)
	case "/v2/account/authenticate/device":
		var body struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.deviceAuths++
		f.deviceIDs = append(f.deviceIDs, body.ID)
		f.mu.Unlock()
		f.writeSession(w, "guest")
	case "/v2/account/authenticate/email":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.emailAuths++
		f.mu.Unlock()
		if body.Password != "secret" {
			writeError(w, http.StatusUnauthorized, 16, "Invalid credentials.")
			return
		}
		f.writeSession(w, "alice")
	case "/v2/account/session/refresh":
		f.mu.Lock()
		f.refreshes++
		reject := f.rejectRefresh
		f.mu.Unlock()
		if reject {
			writeError(w, http.StatusUnauthorized, 16, "Refresh token invalid or expired.")
			return
		}
		f.writeSession(w, "guest")
	case "/v2/session/logout":
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	case "/v2/account":
		if r.Method == http.MethodPut {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","username":"guest"},"email":"guest@example.com"}`))
	case "/v2/rpc/create_match":
		var payload string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, 3, "payload must be a string")
			return
		}
		_, _ = w.Write([]byte(`{"id":"create_match","payload":"{\"match_id\":\"room-42\"}"}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) writeSession(w http.ResponseWriter, username string) {
	f.mu.Lock()
	ttl, refreshTTL := f.ttl, f.refreshTTL
	f.mu.Unlock()
	token, refresh := sessiontest.Pair("u1", username, ttl, refreshTTL)
	_ = json.NewEncoder(w).Encode(map[string]any{"token": token, "refresh_token": refresh})
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": msg})
}

func (f *fakeServer) serveSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	f.connected <- token

	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		switch {
		case env.MatchJoin != nil:
			id := env.MatchJoin.MatchID
			if id == "" {
				id = "token-match"
			}
			if id == "missing" {
				f.write(conn, realtime.Envelope{CID: env.CID, Error: &realtime.ServerError{Code: 4, Message: "Match not found"}})
				continue
			}
			f.write(conn, realtime.Envelope{CID: env.CID, Match: &realtime.Match{MatchID: id, Authoritative: true}})
		case env.MatchLeave != nil:
			if env.MatchLeave.MatchID == "sealed" {
				f.write(conn, realtime.Envelope{CID: env.CID, Error: &realtime.ServerError{Code: 3, Message: "Match is closing"}})
				continue
			}
			f.write(conn, realtime.Envelope{CID: env.CID})
		case env.MatchmakerAdd != nil:
			f.adds <- *env.MatchmakerAdd
			f.write(conn, realtime.Envelope{CID: env.CID, MatchmakerTicket: &realtime.MatchmakerTicket{Ticket: "t-1"}})
		case env.MatchDataSend != nil:
			f.sent <- *env.MatchDataSend
		case env.Ping != nil:
			f.write(conn, realtime.Envelope{CID: env.CID, Pong: &struct{}{}})
		}
	}
}

func (f *fakeServer) write(conn *websocket.Conn, env realtime.Envelope) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = conn.WriteJSON(env)
}

// push sends an unsolicited envelope to the connected client.
func (f *fakeServer) push(env realtime.Envelope) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	require.NotNil(f.t, conn, "no client connected")
	f.write(conn, env)
}

// drop closes the server side of the realtime connection.
func (f *fakeServer) drop() {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (f *fakeServer) waitConnected() string {
	f.t.Helper()
	select {
	case token := <-f.connected:
		return token
	case <-time.After(2 * time.Second):
		f.t.Fatal("client did not connect")
		return ""
	}
}

func (f *fakeServer) nextSent() realtime.MatchDataSend {
	f.t.Helper()
	select {
	case d := <-f.sent:
		return d
	case <-time.After(2 * time.Second):
		f.t.Fatal("no match data received")
		return realtime.MatchDataSend{}
	}
}
