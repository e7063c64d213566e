package providers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/src/api"
	"github.com/orchestra-mcp/tictactoe/src/console"
	"github.com/orchestra-mcp/tictactoe/src/service"
	"github.com/orchestra-mcp/tictactoe/src/store"
	"github.com/rs/zerolog"
)

// ClientApp wires the store, API client, session manager and console of
// the terminal client.
type ClientApp struct {
	active  bool
	cfg     *config.ClientConfig
	logger  zerolog.Logger
	store   store.Store
	service *service.Service
	console *console.Console
	status  *fiber.App
}

// NewClientApp creates an inactive app for cfg.
func NewClientApp(cfg *config.ClientConfig, logger zerolog.Logger) *ClientApp {
	return &ClientApp{cfg: cfg, logger: logger}
}

func (a *ClientApp) ID() string      { return "tictactoe/client" }
func (a *ClientApp) Name() string    { return "Tic-Tac-Toe" }
func (a *ClientApp) Version() string { return "0.1.0" }
func (a *ClientApp) IsActive() bool  { return a.active }

// Service returns the session manager. Nil before Activate.
func (a *ClientApp) Service() *service.Service { return a.service }

// Console returns the console. Nil before Activate.
func (a *ClientApp) Console() *console.Console { return a.console }

// Activate opens the store, builds the manager and console writing to out,
// and starts the status server when configured.
func (a *ClientApp) Activate(out io.Writer) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.store = a.openStore()
	a.service = service.New(a.cfg, api.New(a.cfg, a.logger), a.store, a.logger)
	a.console = console.New(a.service, out, a.logger)

	if a.cfg.StatusAddr != "" {
		a.startStatus()
	}

	a.active = true
	a.logger.Info().Str("app", a.ID()).Str("server", a.cfg.HTTPBaseURL()).Msg("client activated")
	return nil
}

// openStore opens the configured store. A redis store that cannot be
// reached falls back to the local file store, or memory without a path.
func (a *ClientApp) openStore() store.Store {
	st, err := store.Open(a.cfg, a.logger)
	if err == nil {
		return st
	}
	if a.cfg.StorePath == "" {
		a.logger.Warn().Err(err).Str("driver", a.cfg.StoreDriver).Msg("store unavailable, using memory")
		return store.NewMemoryStore()
	}
	a.logger.Warn().Err(err).Str("driver", a.cfg.StoreDriver).Msg("store unavailable, using local file")
	return store.NewFileStore(a.cfg.StorePath)
}

func (a *ClientApp) startStatus() {
	a.status = fiber.New(fiber.Config{AppName: a.Name()})
	a.RegisterRoutes(a.status)

	go func() {
		err := a.status.Listen(a.cfg.StatusAddr, fiber.ListenConfig{DisableStartupMessage: true})
		if err != nil {
			a.logger.Error().Err(err).Str("addr", a.cfg.StatusAddr).Msg("status server stopped")
		}
	}()
	a.logger.Info().Str("addr", a.cfg.StatusAddr).Msg("status server listening")
}

// Run restores the previous session, falling back to a guest login when
// guestFallback is set, then runs the console until it exits.
func (a *ClientApp) Run(ctx context.Context, in io.Reader, guestFallback bool) error {
	if a.service.RestoreOrFallback(ctx, a.console.Handlers(), guestFallback) {
		a.logger.Info().Str("user_id", a.service.UserID()).Msg("session restored")
	}
	a.console.Sync()
	return a.console.Run(ctx, in)
}

// Deactivate closes the channel, the status server and the store. The
// persisted session is kept for the next start.
func (a *ClientApp) Deactivate() error {
	if a.service != nil {
		a.service.Disconnect()
	}
	if a.status != nil {
		if err := a.status.Shutdown(); err != nil {
			a.logger.Error().Err(err).Msg("status server shutdown error")
		}
		a.status = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("store close error")
		}
		a.store = nil
	}
	a.active = false
	return nil
}
