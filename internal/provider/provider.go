// Package provider defines the interface for mail transports.
package provider

import (
	"context"

	"github.com/shineum/contact-relay/internal/email"
)

// Provider delivers a single message to an external mail service.
// Implementations make exactly one delivery attempt per call and are safe
// for concurrent use.
type Provider interface {
	// Send delivers msg. It returns an error if the service rejects the
	// message or cannot be reached.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
