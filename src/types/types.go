package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Op codes carried by match data messages.
const (
	OpMove    OpCode = 1
	OpState   OpCode = 2
	OpError   OpCode = 3
	OpRestart OpCode = 4
)

// Game status values.
const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
	StatusEnded   = "ended"
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

// GameState is the authoritative match state pushed by the server.
// It is never mutated by the client; each push replaces it.
type GameState struct {
	Board          []string          `json:"board"`
	Turn           *string           `json:"turn"`
	Status         string            `json:"status"`
	Winner         *string           `json:"winner"`
	Players        []*string         `json:"players,omitempty"`
	Symbols        map[string]string `json:"symbols,omitempty"`
	TurnDeadlineMs int64             `json:"turnDeadlineMs,omitempty"`

	// Unresolved is set when a push omits the winner field. A null winner
	// on an ended game is a draw; a missing one is not decided yet.
	Unresolved bool `json:"-"`
}

func (s *GameState) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	type plain GameState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	_, ok := fields["winner"]
	p.Unresolved = !ok
	*s = GameState(p)
	return nil
}

// Cell returns the mark at index i, or "" when the board is short.
func (s *GameState) Cell(i int) string {
	if s == nil || i < 0 || i >= len(s.Board) {
		return ""
	}
	return s.Board[i]
}

// MovePayload is the body of an OpMove message.
type MovePayload struct {
	Cell int `json:"cell"`
}

// Handlers receives pushes from the realtime channel.
type Handlers struct {
	OnState      func(state GameState)
	OnError      func(msg string)
	OnDisconnect func(err error)
	OnMatched    func(matched MatchmakerMatched)
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// OpCode is a match data message type. The server encodes it as a JSON
// string; plain numbers are accepted as well.
type OpCode int64

func (o OpCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(o), 10))
}

func (o *OpCode) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid op code %s: %w", data, err)
	}
	*o = OpCode(n)
	return nil
}

// Payload is a JSON value that may arrive either as an object or as a
// string holding encoded JSON. Decode handles both forms.
type Payload json.RawMessage

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(p).MarshalJSON()
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// Decode unmarshals the payload into v, unwrapping one level of string
// encoding when present.
func (p Payload) Decode(v any) error {
	data := bytes.TrimSpace(p)
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}
	return json.Unmarshal(data, v)
}

// ErrorMessage extracts a human-readable message from an error payload:
// an object with a "msg" field, a JSON string, or plain text.
func ErrorMessage(data []byte) string {
	const unknown = "Unknown error"
	text := string(bytes.TrimSpace(data))
	if text == "" {
		return unknown
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	switch m := v.(type) {
	case map[string]any:
		if msg, ok := m["msg"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if m != "" {
			return m
		}
	}
	return unknown
}

// UserPresence identifies a user connected to a match.
type UserPresence struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

// MatchmakerMatched is pushed when the matchmaker pairs this client.
type MatchmakerMatched struct {
	Ticket  string           `json:"ticket"`
	MatchID string           `json:"match_id,omitempty"`
	Token   string           `json:"token,omitempty"`
	Users   []MatchmakerUser `json:"users,omitempty"`
	Self    *MatchmakerUser  `json:"self,omitempty"`
}

// MatchmakerUser is one participant of a matchmaker result.
type MatchmakerUser struct {
	Presence          UserPresence       `json:"presence"`
	StringProperties  map[string]string  `json:"string_properties,omitempty"`
	NumericProperties map[string]float64 `json:"numeric_properties,omitempty"`
}

// Account is the profile of the signed-in user.
type Account struct {
	User        User   `json:"user"`
	Email       string `json:"email,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	VerifyTime  string `json:"verify_time,omitempty"`
	DisableTime string `json:"disable_time,omitempty"`
}

// User holds the public profile fields of an account.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	LangTag     string `json:"lang_tag,omitempty"`
	Location    string `json:"location,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	CreateTime  string `json:"create_time,omitempty"`
}

// AccountUpdate changes profile fields; nil fields are left untouched.
type AccountUpdate struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	LangTag     *string `json:"lang_tag,omitempty"`
	Location    *string `json:"location,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}
