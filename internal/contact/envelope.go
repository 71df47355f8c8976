package contact

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/contact-relay/internal/email"
)

// DefaultSubjectPrefix precedes the submitter name in every subject.
const DefaultSubjectPrefix = "Portfolio Contact: "

// EnvelopeConfig holds the static parts of every relayed message.
type EnvelopeConfig struct {
	From          string
	To            string
	SubjectPrefix string
}

// BuildEnvelope turns a submission into a message. Field values are
// inserted verbatim; in the HTML body only newlines in the message are
// rewritten, as <br>.
func BuildEnvelope(cfg EnvelopeConfig, sub Submission) *email.Message {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	msg := &email.Message{
		From:    cfg.From,
		To:      []string{cfg.To},
		Subject: prefix + sub.Name,
		TextBody: fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s\n",
			sub.Name, sub.Email, sub.Message),
		HTMLBody: fmt.Sprintf("<h2>New Contact Form Submission</h2>\n"+
			"<p><strong>Name:</strong> %s</p>\n"+
			"<p><strong>Email:</strong> %s</p>\n"+
			"<h3>Message:</h3>\n"+
			"<p>%s</p>\n",
			sub.Name, sub.Email, strings.ReplaceAll(sub.Message, "\n", "<br>")),
	}

	if addr, err := mail.ParseAddress(sub.Email); err == nil {
		msg.ReplyTo = addr.Address
	}
	return msg
}

// newMessageID returns a unique Message-ID in the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if at := strings.LastIndexByte(addr.Address, '@'); at >= 0 && at < len(addr.Address)-1 {
			domain = addr.Address[at+1:]
		}
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
