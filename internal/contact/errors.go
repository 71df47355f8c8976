package contact

import "fmt"

// ErrorKind classifies relay failures.
type ErrorKind int

const (
	// MissingField means a required submission field was empty.
	MissingField ErrorKind = iota + 1
	// InvalidEmail means strict mode rejected the submitter address.
	InvalidEmail
	// TransportFailure means the mail transport did not accept the message.
	TransportFailure
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "MissingField"
	case InvalidEmail:
		return "InvalidEmail"
	case TransportFailure:
		return "TransportFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ValidationError is returned before any I/O when a submission is
// rejected. Field holds the form name of the offending field.
type ValidationError struct {
	Kind  ErrorKind
	Field string
}

func (e *ValidationError) Error() string {
	if e.Kind == InvalidEmail {
		return fmt.Sprintf("invalid email address in field %q", e.Field)
	}
	return fmt.Sprintf("missing required field %q", e.Field)
}

// DeliveryError is returned when the transport fails. Its message is
// deliberately generic; the cause is only reachable through Unwrap.
type DeliveryError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return "failed to send email"
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
