package realtime

import (
	"fmt"

	"github.com/orchestra-mcp/tictactoe/src/types"
)

// Envelope is a single realtime message. Exactly one payload field is set;
// CID correlates a request with its response.
type Envelope struct {
	CID   string       `json:"cid,omitempty"`
	Error *ServerError `json:"error,omitempty"`

	Match      *Match      `json:"match,omitempty"`
	MatchJoin  *MatchJoin  `json:"match_join,omitempty"`
	MatchLeave *MatchLeave `json:"match_leave,omitempty"`

	MatchData     *MatchData     `json:"match_data,omitempty"`
	MatchDataSend *MatchDataSend `json:"match_data_send,omitempty"`

	MatchmakerAdd     *MatchmakerAdd           `json:"matchmaker_add,omitempty"`
	MatchmakerTicket  *MatchmakerTicket        `json:"matchmaker_ticket,omitempty"`
	MatchmakerMatched *types.MatchmakerMatched `json:"matchmaker_matched,omitempty"`

	Ping *struct{} `json:"ping,omitempty"`
	Pong *struct{} `json:"pong,omitempty"`
}

// ServerError is an error reported by the server over the channel.
type ServerError struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d", e.Code)
	}
	return e.Message
}

// Match describes a joined match.
type Match struct {
	MatchID       string               `json:"match_id"`
	Authoritative bool                 `json:"authoritative"`
	Label         string               `json:"label,omitempty"`
	Size          int                  `json:"size,omitempty"`
	Presences     []types.UserPresence `json:"presences,omitempty"`
	Self          *types.UserPresence  `json:"self,omitempty"`
}

// MatchJoin joins a match by id or by matchmaker token.
type MatchJoin struct {
	MatchID string `json:"match_id,omitempty"`
	Token   string `json:"token,omitempty"`
}

// MatchLeave leaves a match.
type MatchLeave struct {
	MatchID string `json:"match_id"`
}

// MatchData is pushed by the server for a joined match.
type MatchData struct {
	MatchID  string              `json:"match_id"`
	Presence *types.UserPresence `json:"presence,omitempty"`
	OpCode   types.OpCode        `json:"op_code"`
	Data     []byte              `json:"data,omitempty"`
	Reliable bool                `json:"reliable,omitempty"`
}

// MatchDataSend sends data to a joined match.
type MatchDataSend struct {
	MatchID  string       `json:"match_id"`
	OpCode   types.OpCode `json:"op_code"`
	Data     []byte       `json:"data,omitempty"`
	Reliable bool         `json:"reliable"`
}

// MatchmakerAdd submits a matchmaking ticket.
type MatchmakerAdd struct {
	MinCount          int                `json:"min_count"`
	MaxCount          int                `json:"max_count"`
	Query             string             `json:"query"`
	StringProperties  map[string]string  `json:"string_properties,omitempty"`
	NumericProperties map[string]float64 `json:"numeric_properties,omitempty"`
}

// MatchmakerTicket acknowledges a matchmaking submission.
type MatchmakerTicket struct {
	Ticket string `json:"ticket"`
}
