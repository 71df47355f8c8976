package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/shineum/contact-relay/internal/config"
	"github.com/shineum/contact-relay/internal/contact"
	"github.com/shineum/contact-relay/internal/httpapi"
	"github.com/shineum/contact-relay/internal/provider"
	"github.com/shineum/contact-relay/internal/provider/graph"
	"github.com/shineum/contact-relay/internal/provider/ses"
	"github.com/shineum/contact-relay/internal/provider/smtp"
	"github.com/shineum/contact-relay/internal/provider/stdout"
	relaytls "github.com/shineum/contact-relay/internal/tls"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serves the contact form endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return serve(ctx, a.cfg)
		},
	}
}

// serve wires the relay and blocks until ctx is cancelled. It refuses to
// start on incomplete configuration.
func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	relay, transport, err := buildRelay(ctx, cfg)
	if err != nil {
		return err
	}

	slog.Info("starting contact-relay",
		"listen", cfg.HTTP.Listen,
		"provider", transport.Name(),
		"to", cfg.Mail.To,
		"strict_email", cfg.Contact.StrictEmail,
	)

	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.New(httpapi.Config{
		Listen:         cfg.HTTP.Listen,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, relay)

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	slog.Info("contact-relay stopped")
	return nil
}

func buildRelay(ctx context.Context, cfg *config.Config) (*contact.Relay, provider.Provider, error) {
	transport, err := selectProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	from := cfg.Mail.From
	if cfg.Provider == config.ProviderGraph {
		from = cfg.Graph.Sender
	}

	dispatcher, err := contact.NewDispatcher(transport, contact.EnvelopeConfig{
		From:          from,
		To:            cfg.Mail.To,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
	})
	if err != nil {
		return nil, nil, err
	}

	return contact.NewRelay(contact.NewValidator(cfg.Contact.StrictEmail), dispatcher), transport, nil
}

// selectProvider builds the mail transport named by cfg.Provider.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderSMTP:
		tlsConfig, err := relaytls.ClientConfig(cfg.Mail.CAFile)
		if err != nil {
			return nil, err
		}
		slog.Info("using SMTP provider",
			"host", cfg.Mail.Host,
			"port", cfg.Mail.Port,
			"custom_ca", cfg.Mail.CAFile != "",
		)
		return smtp.New(smtp.Config{
			Host:      cfg.Mail.Host,
			Port:      cfg.Mail.Port,
			Username:  cfg.Mail.Username,
			Password:  cfg.Mail.Password,
			TLSConfig: tlsConfig,
		})

	case config.ProviderSES:
		slog.Info("using AWS SES provider", "region", cfg.SES.Region)
		p, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case config.ProviderGraph:
		slog.Info("using Microsoft Graph provider", "sender", cfg.Graph.Sender)
		return graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		})

	case config.ProviderStdout:
		slog.Info("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
