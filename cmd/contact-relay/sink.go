package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shineum/contact-relay/internal/config"
	"github.com/shineum/contact-relay/internal/provider/stdout"
	"github.com/shineum/contact-relay/internal/sink"
	relaytls "github.com/shineum/contact-relay/internal/tls"
)

func newSinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sink",
		Short: "runs a local SMTP server that prints received mail",
		Long: `Runs a local SMTP server for development.

Point EMAIL_SERVER and EMAIL_PORT at it to see relayed messages on stdout
instead of sending them. Without TLS_CERT_FILE and TLS_KEY_FILE a
self-signed certificate for localhost is generated on start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runSink(ctx, a.cfg)
		},
	}
}

func runSink(ctx context.Context, cfg *config.Config) error {
	srv, err := newSink(cfg)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func newSink(cfg *config.Config) (*sink.Server, error) {
	if err := cfg.ValidateSink(); err != nil {
		return nil, fmt.Errorf("invalid sink configuration: %w", err)
	}

	tlsConfig, err := relaytls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to setup TLS: %w", err)
	}

	return sink.New(sink.Config{
		ListenAddr:     cfg.Sink.Listen,
		Hostname:       "localhost",
		Handler:        stdout.New(),
		TLSConfig:      tlsConfig,
		ImplicitTLS:    cfg.Sink.ImplicitTLS,
		AuthUsername:   cfg.Sink.Username,
		AuthPassword:   cfg.Sink.Password,
		MaxMessageSize: cfg.Sink.MaxMessageSize,
	})
}
