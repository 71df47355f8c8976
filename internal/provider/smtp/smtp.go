// Package smtp implements a Provider that submits mail to an SMTP server
// over implicit TLS.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	netsmtp "net/smtp"
	"strconv"

	"github.com/shineum/contact-relay/internal/email"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLSConfig overrides the client TLS settings. ServerName defaults to
	// Host when unset.
	TLSConfig *tls.Config
}

// Provider opens one TLS connection per Send, authenticates with AUTH
// PLAIN and submits the message. It holds no connection state between
// calls.
type Provider struct {
	addr      string
	host      string
	auth      netsmtp.Auth
	tlsConfig *tls.Config
}

// New validates cfg and creates a Provider. Credentials are mandatory;
// there is no anonymous or default login.
func New(cfg Config) (*Provider, error) {
	switch {
	case cfg.Host == "":
		return nil, errors.New("smtp host is required")
	case cfg.Port <= 0 || cfg.Port > 65535:
		return nil, fmt.Errorf("smtp port %d is out of range", cfg.Port)
	case cfg.Username == "" || cfg.Password == "":
		return nil, errors.New("smtp username and password are required")
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = cfg.Host
	}

	return &Provider{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:      cfg.Host,
		auth:      netsmtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		tlsConfig: tlsConfig,
	}, nil
}

// Send delivers msg in a single SMTP transaction. ctx bounds only the
// dial; once connected the transaction runs to completion.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	raw, err := email.Compose(msg)
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}
	from, rcpts, err := envelopeAddrs(msg)
	if err != nil {
		return err
	}

	dialer := &tls.Dialer{Config: p.tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.addr, err)
	}

	client, err := netsmtp.NewClient(conn, p.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if err := client.Auth(p.auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	// The message is accepted at this point; a failed QUIT does not undo it.
	if err := client.Quit(); err != nil {
		slog.Debug("SMTP QUIT failed after delivery", "addr", p.addr, "error", err)
	}
	return nil
}

// envelopeAddrs reduces the header addresses of msg to the bare mailboxes
// used in MAIL FROM and RCPT TO. A To entry may hold a comma-separated list.
func envelopeAddrs(msg *email.Message) (string, []string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	var rcpts []string
	for _, entry := range msg.To {
		list, err := mail.ParseAddressList(entry)
		if err != nil {
			return "", nil, fmt.Errorf("invalid recipient %q: %w", entry, err)
		}
		for _, addr := range list {
			rcpts = append(rcpts, addr.Address)
		}
	}
	return from.Address, rcpts, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}
