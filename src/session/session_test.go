package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orchestra-mcp/tictactoe/src/session"
	"github.com/orchestra-mcp/tictactoe/src/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestore(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", time.Hour, 24*time.Hour)

	s, err := session.Restore(token, refresh)
	require.NoError(t, err)
	assert.Equal(t, "p1", s.UserID)
	assert.Equal(t, "alice", s.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 2*time.Second)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), s.RefreshExpiresAt, 2*time.Second)
	assert.True(t, s.CanRefresh())
	assert.False(t, s.IsExpired(time.Now()))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := session.Restore("", "")
	assert.Error(t, err)

	_, err = session.Restore("not-a-jwt", "")
	assert.Error(t, err)

	token := sessiontest.Token("p1", "alice", time.Now().Add(time.Hour))
	_, err = session.Restore(token, "also-not-a-jwt")
	assert.Error(t, err)
}

func TestExpiresWithin(t *testing.T) {
	token := sessiontest.Token("p1", "alice", time.Now().Add(20*time.Second))
	s, err := session.Restore(token, "")
	require.NoError(t, err)

	assert.True(t, s.ExpiresWithin(30*time.Second))
	assert.False(t, s.ExpiresWithin(5*time.Second))
	assert.False(t, s.CanRefresh())
}

func TestOAuth2TokenRoundTrip(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", time.Hour, 0)
	s, err := session.Restore(token, refresh)
	require.NoError(t, err)

	tok := s.OAuth2Token()
	assert.Equal(t, token, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, s.ExpiresAt, tok.Expiry)

	back, err := session.FromOAuth2Token(tok)
	require.NoError(t, err)
	assert.Same(t, s, back)
}

func TestEnsureKeepsValidSession(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", time.Hour, 24*time.Hour)
	s, err := session.Restore(token, refresh)
	require.NoError(t, err)

	calls := 0
	next, refreshed, err := session.Ensure(context.Background(), s, 30*time.Second,
		func(context.Context, *session.Session) (*session.Session, error) {
			calls++
			return nil, errors.New("unexpected refresh")
		})
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Same(t, s, next)
	assert.Equal(t, 0, calls)
}

func TestEnsureRefreshesOnceInsideWindow(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", 10*time.Second, 24*time.Hour)
	s, err := session.Restore(token, refresh)
	require.NoError(t, err)

	calls := 0
	next, refreshed, err := session.Ensure(context.Background(), s, 30*time.Second,
		func(_ context.Context, cur *session.Session) (*session.Session, error) {
			calls++
			assert.Equal(t, refresh, cur.RefreshToken)
			newToken := sessiontest.Token("p1", "alice", time.Now().Add(time.Hour))
			return session.Restore(newToken, "")
		})
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, calls)
	assert.NotEqual(t, token, next.Token)
	assert.Equal(t, refresh, next.RefreshToken, "refresh token carried over")
	assert.False(t, next.ExpiresWithin(30*time.Second))
}

func TestEnsureWithoutRefreshToken(t *testing.T) {
	token := sessiontest.Token("p1", "alice", time.Now().Add(10*time.Second))
	s, err := session.Restore(token, "")
	require.NoError(t, err)

	_, _, err = session.Ensure(context.Background(), s, 30*time.Second,
		func(context.Context, *session.Session) (*session.Session, error) {
			t.Fatal("refresh must not be attempted")
			return nil, nil
		})
	assert.ErrorIs(t, err, session.ErrNoRefreshToken)
}

func TestEnsureZeroWindowKeepsUnexpiredToken(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", 5*time.Second, 24*time.Hour)
	s, err := session.Restore(token, refresh)
	require.NoError(t, err)

	next, refreshed, err := session.Ensure(context.Background(), s, 0,
		func(context.Context, *session.Session) (*session.Session, error) {
			t.Fatal("refresh must not be attempted")
			return nil, nil
		})
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Same(t, s, next)
}

func TestEnsureFollowsNowTimeFunc(t *testing.T) {
	token, refresh := sessiontest.Pair("p1", "alice", time.Hour, 24*time.Hour)
	s, err := session.Restore(token, refresh)
	require.NoError(t, err)

	orig := session.NowTimeFunc
	t.Cleanup(func() { session.NowTimeFunc = orig })
	session.NowTimeFunc = func() time.Time { return s.ExpiresAt.Add(-10 * time.Second) }

	calls := 0
	_, refreshed, err := session.Ensure(context.Background(), s, 30*time.Second,
		func(context.Context, *session.Session) (*session.Session, error) {
			calls++
			return session.Restore(sessiontest.Token("p1", "alice", time.Now().Add(2*time.Hour)), "")
		})
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, calls)
}
