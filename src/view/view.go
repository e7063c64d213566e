// Package view derives everything the player sees from the latest pushed
// game state. Nothing here mutates state or applies game rules.
package view

import (
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/samber/lo"
)

// Status lines.
const (
	TextConnecting   = "Connecting…"
	TextWaiting      = "Waiting for an opponent…"
	TextYourTurn     = "Your turn!"
	TextOpponentTurn = "Opponent's turn…"
	TextDraw         = "Draw!"
	TextWon          = "You won!"
	TextLost         = "You lost."
	TextUnknown      = "…"
)

// NoSymbol is shown before a symbol has been assigned.
const NoSymbol = "—"

// Model is the local UI state. State is nil until the first push and is
// replaced, never edited, on every push.
type Model struct {
	Connected bool             `json:"connected"`
	Me        string           `json:"me,omitempty"`
	Whoami    string           `json:"whoami,omitempty"`
	MatchID   string           `json:"match_id,omitempty"`
	State     *types.GameState `json:"state,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// MySymbol returns the symbol assigned to the local player, or "".
func (m Model) MySymbol() string {
	if m.State == nil || m.Me == "" {
		return ""
	}
	return m.State.Symbols[m.Me]
}

// IsMyTurn reports whether the state names the local player as on turn.
func (m Model) IsMyTurn() bool {
	return m.State != nil && m.Me != "" && m.State.Turn != nil && *m.State.Turn == m.Me
}

// StatusText returns the human-readable status line.
func (m Model) StatusText() string {
	if m.State == nil {
		return TextConnecting
	}
	switch m.State.Status {
	case types.StatusWaiting:
		return TextWaiting
	case types.StatusPlaying:
		return lo.Ternary(m.IsMyTurn(), TextYourTurn, TextOpponentTurn)
	case types.StatusEnded:
		if m.State.Unresolved {
			return TextUnknown
		}
		if m.State.Winner == nil {
			return TextDraw
		}
		return lo.Ternary(*m.State.Winner == m.Me, TextWon, TextLost)
	}
	return TextUnknown
}

// CellEnabled reports whether cell i (0-8) may be played: a state exists,
// the game is playing, the cell is empty and it is the local player's turn.
func (m Model) CellEnabled(i int) bool {
	if m.State == nil || i < 0 || i >= types.BoardSize {
		return false
	}
	return m.State.Status == types.StatusPlaying && m.State.Cell(i) == "" && m.IsMyTurn()
}

// Board returns the nine cell marks, padding a short board with "".
func (m Model) Board() []string {
	return lo.Times(types.BoardSize, func(i int) string { return m.State.Cell(i) })
}

// Summary is the derived view of a Model.
type Summary struct {
	Connected bool     `json:"connected"`
	Whoami    string   `json:"whoami,omitempty"`
	MatchID   string   `json:"match_id,omitempty"`
	Status    string   `json:"status"`
	Symbol    string   `json:"symbol,omitempty"`
	MyTurn    bool     `json:"my_turn"`
	Board     []string `json:"board"`
	Playable  []int    `json:"playable"`
	LastError string   `json:"last_error,omitempty"`
}

// Summarize derives the summary of m. Playable lists 1-based cell numbers.
func (m Model) Summarize() Summary {
	return Summary{
		Connected: m.Connected,
		Whoami:    m.Whoami,
		MatchID:   m.MatchID,
		Status:    m.StatusText(),
		Symbol:    m.MySymbol(),
		MyTurn:    m.IsMyTurn(),
		Board:     m.Board(),
		Playable: lo.FilterMap(lo.Range(types.BoardSize), func(i int, _ int) (int, bool) {
			return i + 1, m.CellEnabled(i)
		}),
		LastError: m.LastError,
	}
}
