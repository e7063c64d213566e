package service

import (
	"context"
	"encoding/json"

	errs "github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/realtime"
	"github.com/orchestra-mcp/tictactoe/src/types"
)

// parseStateFailed is reported when a state push cannot be decoded.
const parseStateFailed = "Failed to parse server state."

// binding ties one socket to the handlers given to Connect. Pushes wait
// on ready so socket is always set when they run.
type binding struct {
	handlers types.Handlers
	socket   *realtime.Socket
	ready    chan struct{}
}

func (s *Service) events(b *binding) realtime.Events {
	return realtime.Events{
		OnMatchData: func(d realtime.MatchData) {
			<-b.ready
			if s.isCurrent(b.socket) {
				s.onMatchData(b, d)
			}
		},
		OnMatchmakerMatched: func(m types.MatchmakerMatched) {
			<-b.ready
			if s.isCurrent(b.socket) {
				s.onMatched(b, m)
			}
		},
		OnError: func(err error) {
			<-b.ready
			if s.isCurrent(b.socket) {
				s.logger.Warn().Err(err).Msg("server error")
				b.reportError(err.Error())
			}
		},
		OnDisconnect: func(err error) {
			<-b.ready
			s.onDisconnect(b, err)
		},
	}
}

func (s *Service) onMatchData(b *binding, d realtime.MatchData) {
	switch d.OpCode {
	case types.OpState:
		var state types.GameState
		if cause := json.Unmarshal(d.Data, &state); cause != nil {
			err := errs.Wrap(errs.ErrParse, cause, parseStateFailed)
			s.logger.Warn().Err(cause).Str("match_id", d.MatchID).Msg("bad state payload")
			b.reportError(err.Error())
			return
		}
		if b.handlers.OnState != nil {
			b.handlers.OnState(state)
		}
	case types.OpError:
		b.reportError(types.ErrorMessage(d.Data))
	default:
		s.logger.Debug().Int64("op_code", int64(d.OpCode)).Msg("ignoring match data")
	}
}

// onMatched joins the paired match and makes it current before telling
// the handlers.
func (s *Service) onMatched(b *binding, m types.MatchmakerMatched) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeoutDuration())
	defer cancel()

	var (
		match *realtime.Match
		err   error
	)
	if m.MatchID != "" {
		match, err = b.socket.JoinMatch(ctx, m.MatchID)
	} else {
		match, err = b.socket.JoinMatchToken(ctx, m.Token)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("ticket", m.Ticket).Msg("join matched room")
		b.reportError("Failed to join matched room: " + err.Error())
		return
	}

	id := match.MatchID
	if id == "" {
		id = m.MatchID
	}
	if !s.setMatch(b.socket, id) {
		return
	}
	m.MatchID = id
	s.logger.Info().Str("match_id", id).Msg("matched")
	if b.handlers.OnMatched != nil {
		b.handlers.OnMatched(m)
	}
}

// onDisconnect clears the channel and current match when the closed
// socket is still the live one. Replaced sockets close silently.
func (s *Service) onDisconnect(b *binding, err error) {
	s.mu.Lock()
	current := b.socket != nil && s.conn.socket == b.socket
	if current {
		s.conn.socket = nil
		s.conn.matchID = ""
	}
	s.mu.Unlock()
	if !current {
		return
	}
	s.logger.Info().Err(err).Msg("disconnected")
	if b.handlers.OnDisconnect != nil {
		b.handlers.OnDisconnect(err)
	}
}

func (b *binding) reportError(msg string) {
	if b.handlers.OnError != nil {
		b.handlers.OnError(msg)
	}
}
