package serve

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cbrates/cmd/env"
	"github.com/sig-0/cbrates/cmd/setup"
	"github.com/sig-0/cbrates/config"
	"github.com/sig-0/cbrates/server"
	serverconfig "github.com/sig-0/cbrates/server/config"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	configPath    string
	listenAddress string
	logLevel      string
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve [flags]",
		LongHelp:   "Serves the cbrates HTTP API",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the cbrates TOML configuration, if any",
	)

	fs.StringVar(
		&c.listenAddress,
		"listen",
		"",
		fmt.Sprintf("the IP:PORT URL for the server (default %s)", serverconfig.DefaultListenAddress),
	)

	fs.StringVar(
		&c.logLevel,
		"log-level",
		"info",
		"the log level (debug, info, warn, error)",
	)
}

// exec executes the serve command
func (c *serveCfg) exec(ctx context.Context, _ []string) error {
	logger, err := setup.NewLogger(os.Stdout, c.logLevel)
	if err != nil {
		return err
	}

	// Load .env
	if err = godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	cfg, err := setup.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	if c.listenAddress != "" {
		cfg.Server.ListenAddress = c.listenAddress
	}

	if err = config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	app, err := setup.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("unable to set up cbrates: %w", err)
	}

	defer func() {
		if err := app.Close(); err != nil {
			logger.Error(
				"unable to gracefully release resources",
				"err", err,
			)
		}
	}()

	s, err := server.New(
		app.Orchestrator,
		server.WithLogger(logger),
		server.WithConfig(&cfg.Server),
		server.WithGatherer(app.Registry),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the expired rate janitor
	group.Go(func() error {
		return app.RunPurge(gCtx, cfg.Cache.TTL)
	})

	return group.Wait()
}
