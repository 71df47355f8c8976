package email

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

// ErrNoRecipients is returned by Compose when the message has no To address.
var ErrNoRecipients = errors.New("message has no recipients")

// ErrNoSender is returned by Compose when the message has no From address.
var ErrNoSender = errors.New("message has no sender")

// Compose serializes msg into an RFC 5322 message. Header values are
// Q-encoded when they contain anything outside printable ASCII, so a CR or
// LF inside a subject cannot start a new header. Bodies are written as
// quoted-printable parts of a multipart/alternative container when both
// are present.
func Compose(msg *Message) ([]byte, error) {
	if msg.From == "" {
		return nil, ErrNoSender
	}
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	var buf bytes.Buffer

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	writeHeader(&buf, "From", msg.From)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", msg.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("UTF-8", msg.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	if msg.MessageID != "" {
		writeHeader(&buf, "Message-ID", msg.MessageID)
	}
	writeHeader(&buf, "MIME-Version", "1.0")

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		writer := multipart.NewWriter(&buf)
		writeHeader(&buf, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", writer.Boundary()))
		buf.WriteString("\r\n")

		if err := writePart(writer, "text/plain; charset=UTF-8", msg.TextBody); err != nil {
			return nil, err
		}
		if err := writePart(writer, "text/html; charset=UTF-8", msg.HTMLBody); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close multipart writer: %w", err)
		}
	case msg.HTMLBody != "":
		if err := writeSinglePart(&buf, "text/html; charset=UTF-8", msg.HTMLBody); err != nil {
			return nil, err
		}
	default:
		if err := writeSinglePart(&buf, "text/plain; charset=UTF-8", msg.TextBody); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

func writePart(writer *multipart.Writer, contentType, body string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}

	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to write body part: %w", err)
	}
	return qp.Close()
}

func writeSinglePart(buf *bytes.Buffer, contentType, body string) error {
	writeHeader(buf, "Content-Type", contentType)
	writeHeader(buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}
	return qp.Close()
}
