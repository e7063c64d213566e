package console

import (
	"context"
	"strconv"
	"strings"

	"github.com/orchestra-mcp/tictactoe/src/errors"
	"github.com/orchestra-mcp/tictactoe/src/types"
	"github.com/orchestra-mcp/tictactoe/src/view"
	"github.com/samber/lo"
)

type command struct {
	name     string
	usage    string
	help     string
	minArgs  int
	maxArgs  int
	fallback string

	needsConn bool
	render    bool
	quit      bool
	run       func(ctx context.Context, args []string) error
}

func (c *Console) commandTable() []command {
	return []command{
		{name: "guest", usage: "guest", help: "sign in with this device and connect",
			fallback: "Authentication failed.", render: true, run: c.guest},
		{name: "login", usage: "login <email> <password>", help: "sign in with email and connect",
			minArgs: 2, maxArgs: 2, fallback: "Authentication failed.", render: true,
			run: func(ctx context.Context, args []string) error { return c.login(ctx, args, false) }},
		{name: "register", usage: "register <email> <password> [username]", help: "create an account and connect",
			minArgs: 2, maxArgs: 3, fallback: "Authentication failed.", render: true,
			run: func(ctx context.Context, args []string) error { return c.login(ctx, args, true) }},
		{name: "logout", usage: "logout", help: "sign out and forget the stored session",
			fallback: "Logout failed.", render: true, run: c.logout},
		{name: "whoami", usage: "whoami", help: "show the signed-in player", run: c.whoami},
		{name: "create", usage: "create", help: "create a room and join it",
			fallback: "Failed to create room.", needsConn: true, render: true, run: c.create},
		{name: "join", usage: "join <code>", help: "join a room by code",
			minArgs: 1, maxArgs: 1, fallback: "Failed to join.", needsConn: true, render: true, run: c.join},
		{name: "quick", usage: "quick", help: "find an opponent with the matchmaker",
			fallback: "Failed to start matchmaking.", needsConn: true, run: c.quick},
		{name: "leave", usage: "leave", help: "leave the current room",
			fallback: "Failed to leave match.", render: true, run: c.leave},
		{name: "move", usage: "move <1-9>", help: "play a cell",
			minArgs: 1, maxArgs: 1, fallback: "Failed to send move.", render: true, run: c.move},
		{name: "restart", usage: "restart", help: "ask the server to restart the game",
			fallback: "Failed to restart.", run: c.restart},
		{name: "board", usage: "board", help: "show the board", render: true,
			run: func(context.Context, []string) error { return nil }},
		{name: "help", usage: "help", help: "list commands", run: c.help},
		{name: "quit", usage: "quit", help: "exit", quit: true},
	}
}

func (c *Console) guest(ctx context.Context, _ []string) error {
	if _, err := c.ctrl.LoginAsGuest(ctx); err != nil {
		return err
	}
	return c.connect(ctx)
}

func (c *Console) login(ctx context.Context, args []string, create bool) error {
	username := ""
	if len(args) > 2 {
		username = args[2]
	}
	if _, err := c.ctrl.LoginWithCredentials(ctx, args[0], args[1], create, username); err != nil {
		return err
	}
	return c.connect(ctx)
}

func (c *Console) connect(ctx context.Context) error {
	c.update(func(m *view.Model) { m.State = nil })
	err := c.ctrl.Connect(ctx, c.Handlers())
	c.Sync()
	return err
}

func (c *Console) logout(ctx context.Context, _ []string) error {
	err := c.ctrl.Logout(ctx)
	c.update(func(m *view.Model) { *m = view.Model{} })
	return err
}

func (c *Console) whoami(context.Context, []string) error {
	_, name := identity(c.ctrl.Session())
	c.printf("%s\n", lo.CoalesceOrEmpty(name, "Not signed in."))
	return nil
}

func (c *Console) create(ctx context.Context, _ []string) error {
	id, err := c.ctrl.CreateRoom(ctx)
	if err != nil {
		return err
	}
	c.update(func(m *view.Model) { m.State = nil })
	if err := c.ctrl.JoinRoom(ctx, id); err != nil {
		return err
	}
	c.update(func(m *view.Model) { m.MatchID = id })
	c.printf("Room code: %s\n", id)
	return nil
}

func (c *Console) join(ctx context.Context, args []string) error {
	c.update(func(m *view.Model) { m.State = nil })
	if err := c.ctrl.JoinRoom(ctx, strings.TrimSpace(args[0])); err != nil {
		return err
	}
	c.update(func(m *view.Model) { m.MatchID = c.ctrl.CurrentMatchID() })
	return nil
}

func (c *Console) quick(ctx context.Context, _ []string) error {
	ticket, err := c.ctrl.QuickMatch(ctx)
	if err != nil {
		return err
	}
	c.printf("Looking for an opponent (ticket %s)…\n", ticket)
	return nil
}

func (c *Console) leave(ctx context.Context, _ []string) error {
	if err := c.ctrl.LeaveRoom(ctx); err != nil {
		return err
	}
	c.update(func(m *view.Model) {
		m.MatchID = ""
		m.State = nil
	})
	return nil
}

func (c *Console) move(ctx context.Context, args []string) error {
	cell, err := strconv.Atoi(args[0])
	if err != nil || cell < 1 || cell > types.BoardSize {
		return errors.New(errors.ErrOperation, "Pick a cell from 1 to 9.")
	}
	if !c.Snapshot().CellEnabled(cell - 1) {
		return errors.New(errors.ErrOperation, "That cell cannot be played right now.")
	}
	return c.ctrl.SendMove(ctx, cell)
}

func (c *Console) restart(ctx context.Context, _ []string) error {
	return c.ctrl.RestartGame(ctx)
}

func (c *Console) help(context.Context, []string) error {
	width := lo.Max(lo.Map(c.order, func(cmd command, _ int) int { return len(cmd.usage) }))
	for _, cmd := range c.order {
		c.printf("  %-*s  %s\n", width, cmd.usage, cmd.help)
	}
	return nil
}
