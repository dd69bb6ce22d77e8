package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kidandcat/teamboard/internal/api"
	"github.com/kidandcat/teamboard/internal/auth"
	"github.com/kidandcat/teamboard/internal/board"
	"github.com/kidandcat/teamboard/internal/config"
	"github.com/kidandcat/teamboard/internal/db"
	"github.com/kidandcat/teamboard/internal/logging"
	"github.com/kidandcat/teamboard/internal/sweep"
	"github.com/kidandcat/teamboard/internal/telemetry"
)

const usage = `usage: teamboard [flags] [command]

commands:
  serve        run the HTTP API (default)
  sweep        run one maintenance pass and exit
  createadmin  create an admin account, or promote an existing one

flags:
`

func main() {
	flags := pflag.NewFlagSet("teamboard", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "config file (.json, .jsonc, .yaml)")
	addr := flags.String("addr", "", "listen address, overrides config")
	dataDir := flags.String("data-dir", "", "data directory, overrides config")
	username := flags.String("username", "", "createadmin: account username")
	email := flags.String("email", "", "createadmin: account email")
	password := flags.String("password", "", "createadmin: account password (or TEAMBOARD_ADMIN_PASSWORD)")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flags.Arg(0)
	switch cmd {
	case "", "serve":
		err = serve(ctx, cfg, logger)
	case "sweep":
		err = runSweep(ctx, cfg, logger)
	case "createadmin":
		pw := *password
		if pw == "" {
			pw = os.Getenv("TEAMBOARD_ADMIN_PASSWORD")
		}
		err = createAdmin(ctx, cfg, logger, board.RegisterInput{Username: username, Email: email, Password: &pw})
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("teamboard failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// openStore ensures the data directory exists and opens the database in it.
func openStore(cfg config.Config) (*db.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return db.Open(cfg.DBPath())
}

func newService(cfg config.Config, store *db.Store, logger *slog.Logger) (*board.Service, error) {
	tokens, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return board.New(store, tokens, logger), nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newService(cfg, store, logger)
	if err != nil {
		return err
	}

	if cfg.Sweep.Enabled {
		sweeper, err := sweep.New(store, logger, cfg.Sweep)
		if err != nil {
			return err
		}
		go func() {
			if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sweeper stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.New(svc, store, logger).Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("teamboard listening", "addr", cfg.Addr, "db", cfg.DBPath())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()
	return srv.Shutdown(sctx)
}

func runSweep(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sweeper, err := sweep.New(store, logger, cfg.Sweep)
	if err != nil {
		return err
	}
	_, err = sweeper.RunOnce(ctx)
	return err
}

func createAdmin(ctx context.Context, cfg config.Config, logger *slog.Logger, in board.RegisterInput) error {
	if *in.Username == "" {
		return errors.New("--username is required")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newService(cfg, store, logger)
	if err != nil {
		return err
	}
	u, err := svc.EnsureAdmin(ctx, in)
	if err != nil {
		return err
	}
	logger.Info("admin ready", "user_id", u.ID, "username", u.Username)
	return nil
}
