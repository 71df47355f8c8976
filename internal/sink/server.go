package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/shineum/contact-relay/internal/provider"
)

const (
	// shutdownTimeout bounds how long ListenAndServe waits for open
	// sessions after the context is cancelled.
	shutdownTimeout = 30 * time.Second

	// DefaultMaxMessageSize is used when Config.MaxMessageSize is zero.
	DefaultMaxMessageSize = 10 * 1024 * 1024
)

// Config holds the configuration for a sink Server.
type Config struct {
	// ListenAddr is the address to listen on, e.g. ":2465".
	ListenAddr string

	// Hostname is announced in the greeting and EHLO reply.
	Hostname string

	// Handler receives every accepted message.
	Handler provider.Provider

	// TLSConfig enables TLS. With ImplicitTLS the listener itself speaks
	// TLS (SMTPS); otherwise STARTTLS is advertised.
	TLSConfig   *tls.Config
	ImplicitTLS bool

	// AuthUsername and AuthPassword enable AUTH PLAIN/LOGIN when both
	// are set.
	AuthUsername string
	AuthPassword string

	MaxMessageSize int
}

// Server accepts SMTP connections and hands parsed messages to the
// configured Handler.
type Server struct {
	cfg  Config
	auth *Authenticator

	mu       sync.Mutex
	listener net.Listener

	wg sync.WaitGroup
}

// New creates a Server. It returns an error when the configuration cannot
// serve any client.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("sink handler is required")
	}
	if cfg.ImplicitTLS && cfg.TLSConfig == nil {
		return nil, errors.New("implicit TLS requires a TLS configuration")
	}
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Server{
		cfg:  cfg,
		auth: NewAuthenticator(cfg.AuthUsername, cfg.AuthPassword),
	}, nil
}

// ListenAndServe listens on Config.ListenAddr and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On shutdown it
// closes ln and waits up to shutdownTimeout for open sessions.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.ImplicitTLS {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("SMTP sink listening",
		"addr", ln.Addr().String(),
		"handler", s.cfg.Handler.Name(),
		"auth_enabled", s.auth.Enabled(),
		"implicit_tls", s.cfg.ImplicitTLS,
		"starttls", s.cfg.TLSConfig != nil && !s.cfg.ImplicitTLS,
	)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down SMTP sink")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.waitForSessions()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Error("accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s).serve(ctx)
		}()
	}
}

func (s *Server) waitForSessions() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("all sink sessions completed")
	case <-time.After(shutdownTimeout):
		slog.Warn("sink shutdown timeout reached, forcing close")
	}
}

// Addr returns the listener address, or an empty string before Serve has
// started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
