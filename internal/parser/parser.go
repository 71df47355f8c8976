// Package parser turns raw RFC 5322 messages received by the sink back into
// email.Message values.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/shineum/contact-relay/internal/email"
)

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw message. Plain, html and multipart bodies are
// supported; attachments are skipped with a warning since nothing
// downstream renders them.
func Parse(raw []byte) (*email.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Message{
		Headers:   make(map[string][]string, len(msg.Header)),
		From:      msg.Header.Get("From"),
		ReplyTo:   msg.Header.Get("Reply-To"),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		MessageID: msg.Header.Get("Message-Id"),
		To:        parseAddressList(msg.Header.Get("To")),
	}
	for key, values := range msg.Header {
		result.Headers[key] = values
	}
	if date, err := msg.Header.Date(); err == nil {
		result.Date = date
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := readBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	assignBody(result, mediaType, body)

	return result, nil
}

// parseMultipart walks a multipart body, recursing into nested containers.
// The first text/plain and text/html parts win.
func parseMultipart(body io.Reader, boundary string, result *email.Message) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", contentType,
				"error", err,
			)
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if err := parseMultipart(part, params["boundary"], result); err != nil {
				slog.Warn("failed to parse nested multipart", "error", err)
			}
			continue
		}

		if strings.HasPrefix(part.Header.Get("Content-Disposition"), "attachment") || part.FileName() != "" {
			slog.Warn("skipping attachment",
				"content_type", mediaType,
				"filename", part.FileName(),
			)
			continue
		}

		// NextPart already decodes quoted-printable and drops the header.
		content, err := readBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}
		assignBody(result, mediaType, content)
	}
}

func assignBody(result *email.Message, mediaType, body string) {
	switch mediaType {
	case "text/html":
		if result.HTMLBody == "" {
			result.HTMLBody = body
		}
	case "text/plain":
		if result.TextBody == "" {
			result.TextBody = body
		}
	default:
		slog.Warn("unrecognized content type, treating as plain text", "content_type", mediaType)
		if result.TextBody == "" {
			result.TextBody = body
		}
	}
}

// readBody reads r and undoes the given Content-Transfer-Encoding.
func readBody(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := decodeBase64(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 content: %w", err)
		}
		return string(decoded), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// parseAddressList returns the bare addresses of a header value, falling
// back to a comma split when the list is not valid RFC 5322.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		var result []string
		for _, p := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}

func decodeBase64(s string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return decoded, nil
}
