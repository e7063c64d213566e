package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// claims mirrors the payload the game server puts in session tokens.
type claims struct {
	TokenID  string            `json:"tid"`
	UserID   string            `json:"uid"`
	Username string            `json:"usn"`
	Vars     map[string]string `json:"vrs,omitempty"`
	jwt.RegisteredClaims
}

// Session is an authenticated credential pair issued by the server.
type Session struct {
	Token            string
	RefreshToken     string
	UserID           string
	Username         string
	Vars             map[string]string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	// Created is true when the authentication call created the account.
	Created bool
}

// Restore rebuilds a Session from its tokens. Signatures are not checked:
// the client only needs the identity and expiry the server encoded.
func Restore(token, refreshToken string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty session token")
	}
	c, err := parse(token)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	s := &Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       c.UserID,
		Username:     c.Username,
		Vars:         c.Vars,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	if refreshToken != "" {
		rc, err := parse(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("parse refresh token: %w", err)
		}
		if rc.ExpiresAt != nil {
			s.RefreshExpiresAt = rc.ExpiresAt.Time
		}
	}
	return s, nil
}

func parse(token string) (*claims, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IsExpired reports whether the session token has expired at t.
func (s *Session) IsExpired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the session token expires within d of now.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	return s.IsExpired(NowTimeFunc().Add(d))
}

// CanRefresh reports whether a refresh token is present and unexpired.
func (s *Session) CanRefresh() bool {
	if s.RefreshToken == "" {
		return false
	}
	return s.RefreshExpiresAt.IsZero() || NowTimeFunc().Before(s.RefreshExpiresAt)
}

// OAuth2Token exposes the session as an oauth2 token, the currency of the
// refresh token source.
func (s *Session) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.Token,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
	return tok.WithExtra(map[string]any{"session": s})
}

// FromOAuth2Token returns the Session carried by tok, restoring it from
// the raw tokens when the token did not originate from OAuth2Token.
func FromOAuth2Token(tok *oauth2.Token) (*Session, error) {
	if s, ok := tok.Extra("session").(*Session); ok && s.Token == tok.AccessToken {
		return s, nil
	}
	return Restore(tok.AccessToken, tok.RefreshToken)
}
