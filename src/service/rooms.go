package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	errs "github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/realtime"
	"github.com/orchestra-mcp/tictactoe/src/types"
)

// createMatchRPC is the server function that creates an authoritative match.
const createMatchRPC = "create_match"

// Connect opens the live channel for the current session, refreshing it
// first if needed, and routes its pushes to handlers. Any previous channel
// is closed without notifying its handlers.
func (s *Service) Connect(ctx context.Context, handlers types.Handlers) error {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		return err
	}
	if old := s.detachSocket(); old != nil {
		_ = old.Close()
	}

	b := &binding{handlers: handlers, ready: make(chan struct{})}
	sock, err := s.dial(ctx, sess.Token, s.events(b))
	if err != nil {
		close(b.ready)
		return errs.Wrap(errs.ErrConnection, err, "Failed to connect: "+err.Error())
	}
	b.socket = sock

	s.mu.Lock()
	if s.conn.session == nil || s.conn.session.Token != sess.Token {
		// Signed out or replaced while dialing.
		s.mu.Unlock()
		close(b.ready)
		_ = sock.Close()
		return errs.New(errs.ErrConnection, "Session changed while connecting.")
	}
	s.conn.socket = sock
	s.conn.matchID = ""
	s.mu.Unlock()
	close(b.ready)

	s.logger.Info().Str("user_id", sess.UserID).Msg("connected")
	return nil
}

// RestoreOrFallback connects with the current or persisted session. When
// that fails and allowGuest is set it signs in as a guest and connects.
// It reports whether a channel ended up open; failures are only logged.
func (s *Service) RestoreOrFallback(ctx context.Context, handlers types.Handlers, allowGuest bool) bool {
	sess := s.Session()
	if sess == nil {
		stored, err := s.loadPersisted(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("load persisted session")
		}
		if stored != nil {
			s.adopt(ctx, stored)
			sess = stored
		}
	}
	if sess != nil {
		err := s.Connect(ctx, handlers)
		if err == nil {
			return true
		}
		s.logger.Warn().Err(err).Msg("restore session")
	}

	if !allowGuest {
		return false
	}
	if _, err := s.LoginAsGuest(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("guest fallback")
		return false
	}
	if err := s.Connect(ctx, handlers); err != nil {
		s.logger.Warn().Err(err).Msg("guest fallback connect")
		return false
	}
	return true
}

// CreateRoom asks the server to create a match and returns its id. It does
// not join the match.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	resp, err := s.api.RPC(ctx, sess.Token, createMatchRPC, map[string]any{})
	if err != nil {
		return "", errs.Wrap(errs.ErrRoom, err, "Failed to create room: "+err.Error())
	}

	var out struct {
		MatchID string `json:"match_id"`
		Error   string `json:"error"`
	}
	if len(resp.Payload) > 0 {
		if err := resp.Payload.Decode(&out); err != nil {
			return "", errs.Wrap(errs.ErrRoom, err, "Invalid create room response.")
		}
	}
	if out.MatchID == "" {
		if out.Error != "" {
			return "", errs.New(errs.ErrRoom, out.Error)
		}
		return "", errs.New(errs.ErrRoom, "No match id returned")
	}
	s.logger.Info().Str("match_id", out.MatchID).Msg("room created")
	return out.MatchID, nil
}

// JoinRoom joins roomID on the live channel and makes it current.
func (s *Service) JoinRoom(ctx context.Context, roomID string) error {
	sock := s.socket()
	if sock == nil {
		return errs.New(errs.ErrConnection, "Socket not connected.")
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return errs.New(errs.ErrRoom, "Room code is required.")
	}

	match, err := sock.JoinMatch(ctx, roomID)
	if err != nil {
		return socketErr(errs.ErrRoom, err, "Failed to join: ")
	}
	id := match.MatchID
	if id == "" {
		id = roomID
	}
	if !s.setMatch(sock, id) {
		return errs.New(errs.ErrConnection, "Socket not connected.")
	}
	s.logger.Info().Str("match_id", id).Msg("joined match")
	return nil
}

// LeaveRoom leaves the current match, if any, and clears it. The current
// match is cleared even when the server rejects the leave.
func (s *Service) LeaveRoom(ctx context.Context) error {
	s.mu.Lock()
	sock, id := s.conn.socket, s.conn.matchID
	s.mu.Unlock()
	if id == "" {
		return nil
	}

	var err error
	if sock != nil {
		err = sock.LeaveMatch(ctx, id)
	}
	s.mu.Lock()
	if s.conn.matchID == id {
		s.conn.matchID = ""
	}
	s.mu.Unlock()

	if err != nil {
		return socketErr(errs.ErrOperation, err, "Failed to leave match: ")
	}
	s.logger.Info().Str("match_id", id).Msg("left match")
	return nil
}

// QuickMatch submits a two-player matchmaking request and returns the
// ticket. The pairing arrives later and is joined automatically.
func (s *Service) QuickMatch(ctx context.Context) (string, error) {
	sock := s.socket()
	if sock == nil {
		return "", errs.New(errs.ErrConnection, "Socket not connected.")
	}
	module := s.cfg.MatchModule
	ticket, err := sock.AddMatchmaker(ctx, realtime.MatchmakerAdd{
		MinCount:         2,
		MaxCount:         2,
		Query:            "+properties.module:" + module,
		StringProperties: map[string]string{"module": module},
	})
	if err != nil {
		return "", socketErr(errs.ErrOperation, err, "Failed to start matchmaking: ")
	}
	s.logger.Info().Str("ticket", ticket).Msg("matchmaking started")
	return ticket, nil
}

// SendMove sends a move for cell to the current match.
func (s *Service) SendMove(ctx context.Context, cell int) error {
	data, err := json.Marshal(types.MovePayload{Cell: cell})
	if err != nil {
		return errs.Wrap(errs.ErrOperation, err, "")
	}
	return s.sendMatchState(ctx, types.OpMove, data, "No match to play in.")
}

// RestartGame asks the server to restart the current match.
func (s *Service) RestartGame(ctx context.Context) error {
	return s.sendMatchState(ctx, types.OpRestart, nil, "No match to restart.")
}

func (s *Service) sendMatchState(ctx context.Context, op types.OpCode, data []byte, noMatch string) error {
	s.mu.Lock()
	sock, id := s.conn.socket, s.conn.matchID
	s.mu.Unlock()
	if sock == nil {
		return errs.New(errs.ErrConnection, "Socket not connected.")
	}
	if id == "" {
		return errs.New(errs.ErrOperation, noMatch)
	}
	if err := sock.SendMatchState(ctx, id, op, data); err != nil {
		return socketErr(errs.ErrOperation, err, "Failed to send: ")
	}
	s.logger.Debug().Str("match_id", id).Int64("op_code", int64(op)).Msg("match data sent")
	return nil
}

// socketErr classifies a realtime failure. A closed channel is always a
// connection error.
func socketErr(kind, err error, prefix string) error {
	if errors.Is(err, realtime.ErrClosed) {
		return errs.Wrap(errs.ErrConnection, err, "Socket not connected.")
	}
	return errs.Wrap(kind, err, prefix+err.Error())
}
