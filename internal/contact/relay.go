package contact

import "context"

// Relay is the validate-then-send operation exposed to callers.
type Relay struct {
	validator  *Validator
	dispatcher *Dispatcher
}

// NewRelay combines a Validator and a Dispatcher.
func NewRelay(v *Validator, d *Dispatcher) *Relay {
	return &Relay{validator: v, dispatcher: d}
}

// Send validates sub and, if it is complete, dispatches it. A
// *ValidationError is returned without touching the transport; a
// *DeliveryError reports a failed send.
func (r *Relay) Send(ctx context.Context, sub Submission) error {
	if err := r.validator.Validate(sub); err != nil {
		return err
	}
	return r.dispatcher.Dispatch(ctx, sub)
}
