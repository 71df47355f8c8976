package contact

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shineum/contact-relay/internal/provider"
)

// Dispatcher delivers submissions through a single transport. It holds
// only read-only state and is safe for concurrent use.
type Dispatcher struct {
	transport provider.Provider
	envelope  EnvelopeConfig
}

// NewDispatcher creates a Dispatcher. It refuses to start without a
// transport, a sender and a recipient.
func NewDispatcher(transport provider.Provider, cfg EnvelopeConfig) (*Dispatcher, error) {
	switch {
	case transport == nil:
		return nil, errors.New("mail transport is required")
	case cfg.From == "":
		return nil, errors.New("sender address is required")
	case cfg.To == "":
		return nil, errors.New("recipient address is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	return &Dispatcher{transport: transport, envelope: cfg}, nil
}

// Dispatch sends one message for sub. There is no retry and no timeout
// beyond what ctx imposes; calling it twice sends two messages. A
// transport failure is logged and returned as a *DeliveryError.
func (d *Dispatcher) Dispatch(ctx context.Context, sub Submission) error {
	msg := BuildEnvelope(d.envelope, sub)
	msg.MessageID = newMessageID(msg.From)

	start := time.Now()
	if err := d.transport.Send(ctx, msg); err != nil {
		slog.Error("failed to send contact email",
			"provider", d.transport.Name(),
			"message_id", msg.MessageID,
			"error", err,
		)
		return &DeliveryError{Kind: TransportFailure, Provider: d.transport.Name(), Err: err}
	}

	slog.Info("contact email sent",
		"provider", d.transport.Name(),
		"message_id", msg.MessageID,
		"duration", time.Since(start),
	)
	return nil
}
