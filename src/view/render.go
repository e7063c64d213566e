package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const rowSeparator = "---+---+---"

// Render writes the text view of m: connection line, board, symbol,
// status line and last error. Playable empty cells show their 1-9 number.
func Render(w io.Writer, m Model) error {
	var b strings.Builder

	conn := lo.Ternary(m.Connected, "Connected", "Not connected")
	if m.Whoami != "" {
		conn += " as " + m.Whoami
	}
	b.WriteString(conn + "\n")
	if m.MatchID != "" {
		fmt.Fprintf(&b, "Match: %s\n", m.MatchID)
	}
	b.WriteString("\n")

	cells := lo.Map(m.Board(), func(mark string, i int) string {
		switch {
		case mark != "":
			return mark
		case m.CellEnabled(i):
			return strconv.Itoa(i + 1)
		default:
			return "."
		}
	})
	rows := lo.Map(lo.Chunk(cells, 3), func(row []string, _ int) string {
		return " " + strings.Join(row, " | ")
	})
	b.WriteString(strings.Join(rows, "\n"+rowSeparator+"\n") + "\n\n")

	fmt.Fprintf(&b, "Your symbol: %s\n", lo.CoalesceOrEmpty(m.MySymbol(), NoSymbol))
	b.WriteString(m.StatusText() + "\n")
	if m.LastError != "" {
		fmt.Fprintf(&b, "! %s\n", m.LastError)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
