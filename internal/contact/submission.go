// Package contact relays portfolio contact-form submissions to the site
// owner. A Relay validates a Submission, builds the message and hands it
// to a mail transport exactly once.
package contact

// Submission is one contact-form entry. It is created per request and
// never stored.
type Submission struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Email   string `json:"email" form:"email" validate:"required"`
	Message string `json:"message" form:"message" validate:"required"`
}
