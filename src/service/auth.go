package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/tictactoe/src/api"
	errs "github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/realtime"
	"github.com/orchestra-mcp/tictactoe/src/session"
	"github.com/orchestra-mcp/tictactoe/src/store"
	"github.com/orchestra-mcp/tictactoe/src/types"
)

// LoginAsGuest reuses the current or persisted session while it is valid,
// otherwise authenticates this device and persists the new session.
func (s *Service) LoginAsGuest(ctx context.Context) (*session.Session, error) {
	if sess := s.reusableSession(ctx); sess != nil {
		s.adopt(ctx, sess)
		s.logger.Debug().Str("user_id", sess.UserID).Msg("reusing session")
		return sess, nil
	}

	deviceID, err := s.deviceID(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrAuth, err, "Could not read the device identifier.")
	}
	resp, err := s.api.AuthenticateDevice(ctx, deviceID, true, "")
	if err != nil {
		return nil, errs.Wrap(errs.ErrAuth, err, "Guest login failed: "+err.Error())
	}
	sess, err := session.Restore(resp.Token, resp.RefreshToken)
	if err != nil {
		return nil, errs.Wrap(errs.ErrAuth, err, "Server returned an invalid session.")
	}
	sess.Created = resp.Created

	s.adopt(ctx, sess)
	s.logger.Info().Str("user_id", sess.UserID).Bool("created", sess.Created).Msg("guest login")
	return sess, nil
}

// LoginWithCredentials exchanges an email and password for a session,
// creating the account when create is set.
func (s *Service) LoginWithCredentials(ctx context.Context, email, password string, create bool, username string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errs.New(errs.ErrAuth, "Email and password are required.")
	}
	resp, err := s.api.AuthenticateEmail(ctx, email, password, create, strings.TrimSpace(username))
	if err != nil {
		msg := "Authentication failed."
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, errs.Wrap(errs.ErrAuth, err, msg)
	}
	sess, err := session.Restore(resp.Token, resp.RefreshToken)
	if err != nil {
		return nil, errs.Wrap(errs.ErrAuth, err, "Server returned an invalid session.")
	}
	sess.Created = resp.Created

	s.adopt(ctx, sess)
	s.logger.Info().Str("user_id", sess.UserID).Bool("created", sess.Created).Msg("email login")
	return sess, nil
}

// Logout closes the channel, invalidates the session on the server when
// possible and erases the persisted tokens. The device id is kept.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.conn
	s.conn = connState{}
	s.mu.Unlock()

	if prev.socket != nil {
		_ = prev.socket.Close()
	}
	if prev.session != nil {
		if err := s.api.SessionLogout(ctx, prev.session.Token, prev.session.RefreshToken); err != nil {
			s.logger.Warn().Err(err).Msg("server logout failed")
		}
	}
	if err := s.erase(ctx); err != nil {
		return errs.Wrap(errs.ErrOperation, err, "Logout failed: could not erase stored tokens.")
	}
	s.logger.Info().Msg("logged out")
	return nil
}

// Account returns the signed-in user's account.
func (s *Service) Account(ctx context.Context) (*types.Account, error) {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.api.GetAccount(ctx, sess.Token)
	if err != nil {
		return nil, errs.Wrap(errs.ErrOperation, err, "Failed to load account: "+err.Error())
	}
	return acc, nil
}

// UpdateAccount changes profile fields of the signed-in user.
func (s *Service) UpdateAccount(ctx context.Context, update types.AccountUpdate) error {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		return err
	}
	if err := s.api.UpdateAccount(ctx, sess.Token, update); err != nil {
		return errs.Wrap(errs.ErrOperation, err, "Failed to update account: "+err.Error())
	}
	return nil
}

// ensureSession returns a session good for at least the refresh window,
// refreshing it once if needed. A session that cannot be refreshed is
// dropped together with its persisted tokens.
func (s *Service) ensureSession(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	sess := s.conn.session
	s.mu.Unlock()
	if sess == nil {
		return nil, errs.New(errs.ErrConnection, "Not signed in.")
	}

	next, refreshed, err := session.Ensure(ctx, sess, s.cfg.RefreshWindowDuration(), s.refresh)
	if err != nil {
		var apiErr *api.Error
		if !errors.Is(err, session.ErrNoRefreshToken) && !errors.As(err, &apiErr) {
			return nil, errs.Wrap(errs.ErrOperation, err, "Session refresh failed: "+err.Error())
		}
		s.expire(ctx, sess)
		return nil, errs.Wrap(errs.ErrSessionExpired, err, "Session expired. Please sign in again.")
	}
	if refreshed {
		s.mu.Lock()
		if s.conn.session == sess {
			s.conn.session = next
		}
		s.mu.Unlock()
		if err := s.persist(ctx, next); err != nil {
			s.logger.Warn().Err(err).Msg("persist refreshed session")
		}
	}
	return next, nil
}

func (s *Service) refresh(ctx context.Context, cur *session.Session) (*session.Session, error) {
	resp, err := s.api.SessionRefresh(ctx, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	next, err := session.Restore(resp.Token, resp.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshed session: %w", err)
	}
	s.logger.Info().Str("user_id", next.UserID).Msg("session refreshed")
	return next, nil
}

// expire forgets sess and erases the persisted tokens.
func (s *Service) expire(ctx context.Context, sess *session.Session) {
	s.mu.Lock()
	if s.conn.session == sess {
		s.conn.session = nil
	}
	s.mu.Unlock()
	if err := s.erase(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("erase expired session")
	}
	s.logger.Info().Msg("session expired")
}

// reusableSession returns the in-memory or persisted session when it is
// still valid or can be refreshed.
func (s *Service) reusableSession(ctx context.Context) *session.Session {
	sess := s.Session()
	if sess == nil {
		var err error
		if sess, err = s.loadPersisted(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("load persisted session")
			return nil
		}
	}
	if sess == nil {
		return nil
	}
	next, refreshed, err := session.Ensure(ctx, sess, s.cfg.RefreshWindowDuration(), s.refresh)
	if err != nil {
		s.logger.Debug().Err(err).Msg("stored session not reusable")
		return nil
	}
	if refreshed {
		if err := s.persist(ctx, next); err != nil {
			s.logger.Warn().Err(err).Msg("persist refreshed session")
		}
	}
	return next
}

// adopt makes sess current and persists it. A different session tears
// down the previous channel first.
func (s *Service) adopt(ctx context.Context, sess *session.Session) {
	s.mu.Lock()
	var old *realtime.Socket
	if s.conn.session == nil || s.conn.session.Token != sess.Token {
		old = s.conn.socket
		s.conn.socket = nil
		s.conn.matchID = ""
	}
	s.conn.session = sess
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if err := s.persist(ctx, sess); err != nil {
		s.logger.Warn().Err(err).Msg("persist session")
	}
}

func (s *Service) loadPersisted(ctx context.Context) (*session.Session, error) {
	token, ok, err := s.store.Get(ctx, store.KeyToken)
	if err != nil || !ok || token == "" {
		return nil, err
	}
	refresh, _, err := s.store.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	return session.Restore(token, refresh)
}

func (s *Service) persist(ctx context.Context, sess *session.Session) error {
	if err := s.store.Set(ctx, store.KeyToken, sess.Token); err != nil {
		return err
	}
	if sess.RefreshToken == "" {
		return s.store.Delete(ctx, store.KeyRefreshToken)
	}
	return s.store.Set(ctx, store.KeyRefreshToken, sess.RefreshToken)
}

func (s *Service) erase(ctx context.Context) error {
	return s.store.Delete(ctx, store.KeyToken, store.KeyRefreshToken)
}

// deviceID returns the persisted device identifier, creating one on first use.
func (s *Service) deviceID(ctx context.Context) (string, error) {
	id, ok, err := s.store.Get(ctx, store.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.store.Set(ctx, store.KeyDeviceID, id); err != nil {
		return "", err
	}
	s.logger.Info().Str("device_id", id).Msg("device identifier created")
	return id, nil
}
