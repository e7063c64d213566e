package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoRefreshToken is returned when a session must be refreshed but
// carries no usable refresh token.
var ErrNoRefreshToken = errors.New("no usable refresh token")

// RefreshFunc exchanges the refresh token of s for a new session.
type RefreshFunc func(ctx context.Context, s *Session) (*Session, error)

// refreshSource adapts a RefreshFunc to oauth2.TokenSource.
type refreshSource struct {
	ctx     context.Context
	current *Session
	refresh RefreshFunc
}

func (r *refreshSource) Token() (*oauth2.Token, error) {
	if !r.current.CanRefresh() {
		return nil, ErrNoRefreshToken
	}
	next, err := r.refresh(r.ctx, r.current)
	if err != nil {
		return nil, err
	}
	if next.RefreshToken == "" {
		next.RefreshToken = r.current.RefreshToken
		next.RefreshExpiresAt = r.current.RefreshExpiresAt
	}
	return next.OAuth2Token(), nil
}

// Ensure returns s unchanged while it stays valid for longer than window.
// Otherwise it calls refresh exactly once and returns the new session with
// refreshed set to true. The window is measured against NowTimeFunc; a zero
// window refreshes only an already expired token.
func Ensure(ctx context.Context, s *Session, window time.Duration, refresh RefreshFunc) (next *Session, refreshed bool, err error) {
	if !s.ExpiresWithin(window) {
		return s, false, nil
	}
	var src oauth2.TokenSource = &refreshSource{ctx: ctx, current: s, refresh: refresh}
	tok, err := src.Token()
	if err != nil {
		return nil, false, err
	}
	next, err = FromOAuth2Token(tok)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}
