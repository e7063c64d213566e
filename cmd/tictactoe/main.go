package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/orchestra-mcp/tictactoe/providers"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "game server host")
	flag.StringVar(&cfg.Port, "port", cfg.Port, "game server port")
	flag.BoolVar(&cfg.UseSSL, "ssl", cfg.UseSSL, "use https and wss")
	flag.StringVar(&cfg.ServerKey, "key", cfg.ServerKey, "server key")
	flag.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "session store: file|memory|redis")
	flag.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "file store location")
	flag.StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "serve GET /status on this address, e.g. :8090")
	guest := flag.Bool("guest", true, "sign in as a guest when no stored session can be restored")
	verbose := flag.Bool("v", false, "verbose logging")
	noBanner := flag.Bool("no-banner", false, "skip the startup banner")
	flag.Parse()

	logger := newLogger(*verbose)
	if !*noBanner {
		displayAppname("tic-tac-toe")
	}

	app := providers.NewClientApp(cfg, logger)
	if err := app.Activate(os.Stdout); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	defer func() {
		if err := app.Deactivate(); err != nil {
			logger.Error().Err(err).Msg("deactivate")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Type help for commands.")
	return app.Run(ctx, os.Stdin, *guest)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
