// Package main is the entry point for the contact relay.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/contact-relay/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("contact-relay failed", "error", err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands once the root has loaded
// configuration.
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "contact-relay",
		Short: "relays portfolio contact-form submissions by email",
		Long: `Relays portfolio contact-form submissions to the site owner.

The serve command accepts submissions over HTTP and sends each one through
the configured mail transport. The sink command runs a local SMTP server
that prints whatever it receives, for development.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(newServeCmd(a), newSinkCmd(a))
	return root
}

// load reads the dotenv file, then the configuration, then configures
// logging.
func (a *app) load() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	setupLogger(cfg.Logging.Level)
	return nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, initiating shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
