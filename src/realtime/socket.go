package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/rs/zerolog"
)

// ErrClosed is returned for operations on a closed socket.
var ErrClosed = errors.New("socket closed")

// parseMessageFailed is reported for a frame that is not a valid envelope.
const parseMessageFailed = "Failed to parse server message."

// inbound is a queued push, or the parse failure of a malformed frame.
type inbound struct {
	env Envelope
	err error
}

// Events receives server pushes. Callbacks run on the socket's dispatch
// goroutine, one at a time and in arrival order; OnDisconnect runs last.
type Events struct {
	OnMatchData         func(data MatchData)
	OnMatchmakerMatched func(matched types.MatchmakerMatched)
	OnError             func(err error)
	OnDisconnect        func(err error)
}

// Options tunes a socket.
type Options struct {
	// PingInterval enables keepalive pings when positive. A failed ping
	// closes the socket.
	PingInterval time.Duration
}

// Socket is the live channel to the game server.
type Socket struct {
	conn   types.Conn
	events Events
	logger zerolog.Logger

	send    chan Envelope
	pushes  chan inbound
	nextCID atomic.Uint64

	mu       sync.Mutex
	pending  map[string]chan Envelope
	closed   bool
	closeErr error
	done     chan struct{}
}

// Open starts the read, write and dispatch loops over an established
// connection.
func Open(conn types.Conn, events Events, opts Options, logger zerolog.Logger) *Socket {
	s := &Socket{
		conn:    conn,
		events:  events,
		logger:  logger.With().Str("component", "realtime").Logger(),
		send:    make(chan Envelope, 64),
		pushes:  make(chan inbound, 256),
		pending: make(map[string]chan Envelope),
		done:    make(chan struct{}),
	}
	go s.writePump()
	go s.readPump()
	go s.dispatch()
	if opts.PingInterval > 0 {
		go s.keepalive(opts.PingInterval)
	}
	return s
}

// Done is closed once the socket is closed.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Err returns the reason the socket closed, or nil while open or after
// an explicit Close.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Close closes the connection. The disconnect event still fires.
func (s *Socket) Close() error {
	s.shutdown(nil)
	return nil
}

// JoinMatch joins the match with the given id.
func (s *Socket) JoinMatch(ctx context.Context, matchID string) (*Match, error) {
	return s.join(ctx, &MatchJoin{MatchID: matchID})
}

// JoinMatchToken joins the match named by a matchmaker token.
func (s *Socket) JoinMatchToken(ctx context.Context, token string) (*Match, error) {
	return s.join(ctx, &MatchJoin{Token: token})
}

func (s *Socket) join(ctx context.Context, join *MatchJoin) (*Match, error) {
	resp, err := s.request(ctx, Envelope{MatchJoin: join})
	if err != nil {
		return nil, err
	}
	if resp.Match == nil {
		return nil, fmt.Errorf("join: response without match")
	}
	return resp.Match, nil
}

// LeaveMatch leaves the given match.
func (s *Socket) LeaveMatch(ctx context.Context, matchID string) error {
	_, err := s.request(ctx, Envelope{MatchLeave: &MatchLeave{MatchID: matchID}})
	return err
}

// AddMatchmaker submits a matchmaking request and returns its ticket.
// The match itself is announced later by a matchmaker push.
func (s *Socket) AddMatchmaker(ctx context.Context, add MatchmakerAdd) (string, error) {
	resp, err := s.request(ctx, Envelope{MatchmakerAdd: &add})
	if err != nil {
		return "", err
	}
	if resp.MatchmakerTicket == nil {
		return "", fmt.Errorf("matchmaker: response without ticket")
	}
	return resp.MatchmakerTicket.Ticket, nil
}

// SendMatchState queues data for the match without waiting for any
// acknowledgement.
func (s *Socket) SendMatchState(ctx context.Context, matchID string, op types.OpCode, data []byte) error {
	return s.enqueue(ctx, Envelope{MatchDataSend: &MatchDataSend{
		MatchID:  matchID,
		OpCode:   op,
		Data:     data,
		Reliable: true,
	}})
}

// Ping round-trips a ping message.
func (s *Socket) Ping(ctx context.Context) error {
	_, err := s.request(ctx, Envelope{Ping: &struct{}{}})
	return err
}

func (s *Socket) request(ctx context.Context, env Envelope) (*Envelope, error) {
	cid := strconv.FormatUint(s.nextCID.Add(1), 10)
	env.CID = cid
	reply := make(chan Envelope, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.pending[cid] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, cid)
		s.mu.Unlock()
	}()

	if err := s.enqueue(ctx, env); err != nil {
		return nil, err
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &resp, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Socket) enqueue(ctx context.Context, env Envelope) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case s.send <- env:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve hands a response to its waiting request.
func (s *Socket) resolve(env Envelope) bool {
	s.mu.Lock()
	reply, ok := s.pending[env.CID]
	if ok {
		delete(s.pending, env.CID)
	}
	s.mu.Unlock()
	if ok {
		reply <- env
	}
	return ok
}

// readPump reads envelopes from the connection, resolving responses and
// queueing pushes for dispatch. A malformed frame is reported as a parse
// error and skipped; only transport failures close the socket.
func (s *Socket) readPump() {
	defer close(s.pushes)

	for {
		var raw json.RawMessage
		if err := s.conn.ReadJSON(&raw); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				s.malformed(nil, err)
				continue
			}
			s.shutdown(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.malformed(raw, err)
			continue
		}
		if env.CID != "" {
			if !s.resolve(env) {
				s.logger.Debug().Str("cid", env.CID).Msg("response for unknown request")
			}
			continue
		}
		s.pushes <- inbound{env: env}
	}
}

// malformed fails the request a bad response belongs to, or queues a
// parse error for a bad push.
func (s *Socket) malformed(raw json.RawMessage, cause error) {
	err := errs.Wrap(errs.ErrParse, cause, parseMessageFailed)
	s.logger.Warn().Err(cause).Msg("malformed frame")

	var head struct {
		CID string `json:"cid"`
	}
	if raw != nil && json.Unmarshal(raw, &head) == nil && head.CID != "" {
		s.resolve(Envelope{CID: head.CID, Error: &ServerError{Message: parseMessageFailed}})
		return
	}
	s.pushes <- inbound{err: err}
}

// writePump is the only writer on the connection.
func (s *Socket) writePump() {
	for {
		select {
		case env := <-s.send:
			if err := s.conn.WriteJSON(env); err != nil {
				s.logger.Error().Err(err).Msg("write failed")
				s.shutdown(err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// dispatch delivers pushes in order, then the disconnect event.
func (s *Socket) dispatch() {
	for in := range s.pushes {
		if in.err != nil {
			if s.events.OnError != nil {
				s.events.OnError(in.err)
			}
			continue
		}
		s.deliver(in.env)
	}
	if s.events.OnDisconnect != nil {
		s.events.OnDisconnect(s.Err())
	}
}

func (s *Socket) deliver(env Envelope) {
	switch {
	case env.MatchData != nil:
		if s.events.OnMatchData != nil {
			s.events.OnMatchData(*env.MatchData)
		}
	case env.MatchmakerMatched != nil:
		if s.events.OnMatchmakerMatched != nil {
			s.events.OnMatchmakerMatched(*env.MatchmakerMatched)
		}
	case env.Error != nil:
		if s.events.OnError != nil {
			s.events.OnError(env.Error)
		}
	default:
		s.logger.Debug().Msg("ignoring unhandled push")
	}
}

func (s *Socket) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := s.Ping(ctx)
			cancel()
			if err != nil && !errors.Is(err, ErrClosed) {
				s.logger.Warn().Err(err).Msg("ping failed, closing socket")
				s.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// shutdown closes the socket once. The first cause is kept; an explicit
// Close records none.
func (s *Socket) shutdown(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = cause
	close(s.done)
	s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("close connection")
	}
	if cause != nil {
		s.logger.Info().Err(cause).Msg("socket disconnected")
	} else {
		s.logger.Debug().Msg("socket closed")
	}
}
