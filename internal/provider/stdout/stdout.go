// Package stdout implements a Provider that prints messages instead of
// delivering them. Used for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shineum/contact-relay/internal/email"
)

const separator = "========================================\n"

// Provider prints email messages in a human-readable format.
type Provider struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a Provider that writes to w.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints msg. Output of concurrent calls is never interleaved.
func (p *Provider) Send(_ context.Context, msg *email.Message) error {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")

	body := msg.TextBody
	if body == "" {
		body = msg.HTMLBody
	}
	b.WriteString(body + "\n")
	b.WriteString(separator)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
