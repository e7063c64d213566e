package service

import (
	"context"
	"sync"

	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/src/api"
	"github.com/orchestra-mcp/tictactoe/src/realtime"
	"github.com/orchestra-mcp/tictactoe/src/session"
	"github.com/orchestra-mcp/tictactoe/src/store"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/rs/zerolog"
)

// API is the part of the game server REST API the service uses.
type API interface {
	AuthenticateDevice(ctx context.Context, deviceID string, create bool, username string) (*api.SessionResponse, error)
	AuthenticateEmail(ctx context.Context, email, password string, create bool, username string) (*api.SessionResponse, error)
	SessionRefresh(ctx context.Context, refreshToken string) (*api.SessionResponse, error)
	SessionLogout(ctx context.Context, token, refreshToken string) error
	GetAccount(ctx context.Context, token string) (*types.Account, error)
	UpdateAccount(ctx context.Context, token string, update types.AccountUpdate) error
	RPC(ctx context.Context, token, id string, payload any) (*api.RPCResponse, error)
}

// DialFunc opens the realtime channel for a session token.
type DialFunc func(ctx context.Context, token string, events realtime.Events) (*realtime.Socket, error)

// connState is the session, channel and current match owned by one
// Service. It is reset wholesale on logout.
type connState struct {
	session *session.Session
	socket  *realtime.Socket
	matchID string
}

// Service manages authentication, the persisted session and the live
// channel, and exposes the player's match operations.
type Service struct {
	cfg    *config.ClientConfig
	api    API
	store  store.Store
	dial   DialFunc
	logger zerolog.Logger

	mu   sync.Mutex
	conn connState
}

// New creates a service that dials the realtime channel described by cfg.
func New(cfg *config.ClientConfig, a API, st store.Store, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "service").Logger()
	return &Service{
		cfg:   cfg,
		api:   a,
		store: st,
		dial: func(ctx context.Context, token string, events realtime.Events) (*realtime.Socket, error) {
			return realtime.Dial(ctx, cfg, token, events, logger)
		},
		logger: logger,
	}
}

// Session returns the current session, or nil when signed out.
func (s *Service) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.session
}

// UserID returns the signed-in user's id, or "".
func (s *Service) UserID() string {
	if sess := s.Session(); sess != nil {
		return sess.UserID
	}
	return ""
}

// CurrentMatchID returns the joined match id, or "".
func (s *Service) CurrentMatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.matchID
}

// Connected reports whether a live channel is open.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.socket != nil
}

func (s *Service) socket() *realtime.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.socket
}

func (s *Service) isCurrent(sock *realtime.Socket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sock != nil && s.conn.socket == sock
}

// setMatch records matchID as current if sock is still the live channel.
func (s *Service) setMatch(sock *realtime.Socket, matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn.socket != sock {
		return false
	}
	s.conn.matchID = matchID
	return true
}

// detachSocket forgets the live channel and current match and returns the
// channel so the caller can close it outside the lock.
func (s *Service) detachSocket() *realtime.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock := s.conn.socket
	s.conn.socket = nil
	s.conn.matchID = ""
	return sock
}

// Disconnect closes the live channel without signing out. The session
// stays persisted for the next start.
func (s *Service) Disconnect() {
	if sock := s.detachSocket(); sock != nil {
		_ = sock.Close()
		s.logger.Info().Msg("disconnected")
	}
}
