// Package console is the interactive terminal front end.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/session"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/orchestra-mcp/tictactoe/src/view"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Controller is the set of manager operations the console drives.
type Controller interface {
	LoginAsGuest(ctx context.Context) (*session.Session, error)
	LoginWithCredentials(ctx context.Context, email, password string, create bool, username string) (*session.Session, error)
	Connect(ctx context.Context, handlers types.Handlers) error
	Logout(ctx context.Context) error
	CreateRoom(ctx context.Context) (string, error)
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context) error
	QuickMatch(ctx context.Context) (string, error)
	SendMove(ctx context.Context, cell int) error
	RestartGame(ctx context.Context) error
	Session() *session.Session
	CurrentMatchID() string
	Connected() bool
}

const prompt = "> "

// Console reads commands, maps each to one Controller operation and
// renders the resulting view. Operation failures become the last error;
// they never end the loop.
type Console struct {
	ctrl     Controller
	logger   zerolog.Logger
	commands map[string]command
	order    []command

	outMu sync.Mutex
	out   io.Writer

	mu    sync.Mutex
	model view.Model
}

// New creates a console writing to out.
func New(ctrl Controller, out io.Writer, logger zerolog.Logger) *Console {
	c := &Console{
		ctrl:   ctrl,
		out:    out,
		logger: logger.With().Str("component", "console").Logger(),
	}
	c.order = c.commandTable()
	c.commands = lo.KeyBy(c.order, func(cmd command) string { return cmd.name })
	return c
}

// Handlers returns the push handlers that keep the view current.
func (c *Console) Handlers() types.Handlers {
	return types.Handlers{
		OnState: func(state types.GameState) {
			c.update(func(m *view.Model) {
				m.State = &state
				m.MatchID = c.ctrl.CurrentMatchID()
			})
			c.render()
		},
		OnError: func(msg string) {
			c.update(func(m *view.Model) { m.LastError = msg })
			c.render()
		},
		OnMatched: func(matched types.MatchmakerMatched) {
			c.update(func(m *view.Model) {
				m.MatchID = matched.MatchID
				m.State = nil
			})
			c.printf("Matched into %s\n", matched.MatchID)
		},
		OnDisconnect: func(err error) {
			c.update(func(m *view.Model) {
				m.Connected = false
				m.MatchID = ""
				m.State = nil
				m.LastError = "Disconnected. Sign in again to reconnect."
			})
			c.logger.Info().Err(err).Msg("channel closed")
			c.render()
		},
	}
}

// Snapshot returns a copy of the current view model.
func (c *Console) Snapshot() view.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Sync refreshes the model from the controller after it was driven
// outside the console, for example by a startup session restore.
func (c *Console) Sync() {
	sess := c.ctrl.Session()
	c.update(func(m *view.Model) {
		m.Connected = c.ctrl.Connected()
		m.MatchID = c.ctrl.CurrentMatchID()
		m.Me, m.Whoami = identity(sess)
	})
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cmd, ok := c.commands[name]
	if !ok {
		c.printf("Unknown command %q. Type help for the command list.\n", name)
		return false
	}
	if cmd.quit {
		return true
	}
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		c.printf("Usage: %s\n", cmd.usage)
		return false
	}

	c.update(func(m *view.Model) { m.LastError = "" })
	var err error
	if cmd.needsConn && !c.ctrl.Connected() {
		err = errors.New(errors.ErrConnection, "Not connected.")
	} else {
		err = cmd.run(ctx, args)
	}
	if err != nil {
		msg := c.fail(err, cmd.fallback)
		if !cmd.render {
			c.printf("! %s\n", msg)
		}
	}
	if cmd.render {
		c.render()
	}
	return false
}

// Run reads commands from in until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.render()
	for {
		c.printf(prompt)
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if c.Execute(ctx, line) {
				return nil
			}
		}
	}
}

func (c *Console) fail(err error, fallback string) string {
	msg := errors.Message(err, fallback)
	c.logger.Debug().Err(err).Msg("command failed")
	c.update(func(m *view.Model) { m.LastError = msg })
	return msg
}

func (c *Console) update(fn func(m *view.Model)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.model)
}

func (c *Console) render() {
	m := c.Snapshot()
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if err := view.Render(c.out, m); err != nil {
		c.logger.Warn().Err(err).Msg("render")
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// identity returns the user id and display name of sess.
func identity(sess *session.Session) (id, name string) {
	if sess == nil {
		return "", ""
	}
	return sess.UserID, lo.CoalesceOrEmpty(sess.Username, sess.UserID, "Me")
}
