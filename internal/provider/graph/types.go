// Package graph implements a Provider that sends mail via the Microsoft
// Graph sendMail endpoint.
package graph

import (
	"github.com/shineum/contact-relay/internal/email"
)

// sendMailRequest is the request body for POST /users/{id}/sendMail.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject      string      `json:"subject"`
	Body         messageBody `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
	ReplyTo      []recipient `json:"replyTo,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// tokenResponse is the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildSendMailRequest converts msg into a sendMail body. Graph accepts a
// single body, so HTML wins over text when both are present.
func buildSendMailRequest(msg *email.Message) *sendMailRequest {
	body := messageBody{ContentType: "text", Content: msg.TextBody}
	if msg.HTMLBody != "" {
		body = messageBody{ContentType: "html", Content: msg.HTMLBody}
	}

	to := make([]recipient, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, recipient{EmailAddress: emailAddress{Address: addr}})
	}

	var replyTo []recipient
	if msg.ReplyTo != "" {
		replyTo = []recipient{{EmailAddress: emailAddress{Address: msg.ReplyTo}}}
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:      msg.Subject,
			Body:         body,
			ToRecipients: to,
			ReplyTo:      replyTo,
		},
	}
}
