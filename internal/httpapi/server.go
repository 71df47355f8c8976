// Package httpapi exposes the contact relay to the portfolio page over
// HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/shineum/contact-relay/internal/contact"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	// maxBodyBytes bounds a form submission.
	maxBodyBytes = 64 * 1024
)

// Sender relays one submission. *contact.Relay implements it.
type Sender interface {
	Send(ctx context.Context, sub contact.Submission) error
}

// Config holds the HTTP server settings.
type Config struct {
	Listen string

	// AllowedOrigins lists the page origins allowed to post from a
	// browser. No CORS headers are sent when it is empty.
	AllowedOrigins []string
}

// Server serves the contact endpoint.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New creates a Server that relays submissions through sender.
func New(cfg Config, sender Sender) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	h := &handler{sender: sender}
	engine.POST("/api/contact", h.submit)
	engine.GET("/healthz", h.health)

	var root http.Handler = engine
	if len(cfg.AllowedOrigins) > 0 {
		root = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(engine)
	}

	return &Server{cfg: cfg, handler: root}
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on Config.Listen and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully,
// letting in-flight sends finish for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	slog.Info("HTTP server listening", "addr", ln.Addr().String(), "cors_origins", s.cfg.AllowedOrigins)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
