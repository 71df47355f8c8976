// Package email defines the message model shared by the relay, the
// transports and the local sink.
package email

import "time"

// Message is a fully formed email ready for a transport.
type Message struct {
	From      string
	To        []string
	ReplyTo   string
	Subject   string
	TextBody  string
	HTMLBody  string
	MessageID string
	Date      time.Time

	// Headers holds every header of a parsed message. Transports ignore it.
	Headers map[string][]string
}
