package parser

import (
	"strings"
	"testing"

	"github.com/shineum/contact-relay/internal/email"
)

func TestParse_PlainText(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: portfolio@example.com",
		"To: owner@example.com",
		"Reply-To: ada@example.com",
		"Subject: Portfolio Contact: Ada",
		"Message-Id: <test123@example.com>",
		"Date: Wed, 01 May 2024 10:00:00 +0000",
		"Content-Type: text/plain",
		"",
		"Hello from the contact form.",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.From != "portfolio@example.com" {
		t.Errorf("From: got %q, want %q", msg.From, "portfolio@example.com")
	}
	if len(msg.To) != 1 || msg.To[0] != "owner@example.com" {
		t.Errorf("To: got %v, want [owner@example.com]", msg.To)
	}
	if msg.ReplyTo != "ada@example.com" {
		t.Errorf("ReplyTo: got %q, want %q", msg.ReplyTo, "ada@example.com")
	}
	if msg.Subject != "Portfolio Contact: Ada" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Portfolio Contact: Ada")
	}
	if msg.MessageID != "<test123@example.com>" {
		t.Errorf("MessageID: got %q, want %q", msg.MessageID, "<test123@example.com>")
	}
	if msg.Date.IsZero() {
		t.Error("Date: expected parsed date")
	}
	if msg.TextBody != "Hello from the contact form." {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("HTMLBody: got %q, want empty", msg.HTMLBody)
	}
	if _, ok := msg.Headers["Subject"]; !ok {
		t.Error("Headers: missing Subject")
	}
}

func TestParse_MultipartAlternative(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: portfolio@example.com",
		"To: alice@example.com, Bob <bob@example.com>",
		"Subject: Multipart",
		"Content-Type: multipart/alternative; boundary=b1",
		"",
		"--b1",
		"Content-Type: text/plain",
		"",
		"Plain body",
		"--b1",
		"Content-Type: text/html",
		"",
		"<p>line1<br>line2</p>",
		"--b1--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.To) != 2 || msg.To[1] != "bob@example.com" {
		t.Errorf("To: got %v", msg.To)
	}
	if msg.TextBody != "Plain body" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Plain body")
	}
	if msg.HTMLBody != "<p>line1<br>line2</p>" {
		t.Errorf("HTMLBody: got %q", msg.HTMLBody)
	}
}

func TestParse_QuotedPrintableTopLevel(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: a@example.com",
		"To: b@example.com",
		"Subject: =?UTF-8?q?Portfolio_Contact:_Jos=C3=A9?=",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"caf=C3=A9 =3D good",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Portfolio Contact: José" {
		t.Errorf("Subject: got %q", msg.Subject)
	}
	if msg.TextBody != "café = good" {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
}

func TestParse_NestedMultipartSkipsAttachments(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: a@example.com",
		"To: b@example.com",
		"Subject: Nested",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"inner text",
		"--inner",
		"Content-Type: text/html",
		"",
		"<b>inner</b>",
		"--inner--",
		"--outer",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=cv.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"cGRmIGNvbnRlbnQ=",
		"--outer--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.TextBody != "inner text" {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
	if msg.HTMLBody != "<b>inner</b>" {
		t.Errorf("HTMLBody: got %q", msg.HTMLBody)
	}
}

func TestParse_RoundTripCompose(t *testing.T) {
	t.Parallel()

	in := &email.Message{
		From:     "portfolio@example.com",
		To:       []string{"owner@example.com"},
		ReplyTo:  "ada@example.com",
		Subject:  "Portfolio Contact: Ada",
		TextBody: "Name: Ada",
		HTMLBody: "<p>line1<br>line2</p>",
	}
	raw, err := email.Compose(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	out, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Subject != in.Subject {
		t.Errorf("Subject: got %q, want %q", out.Subject, in.Subject)
	}
	if out.TextBody != in.TextBody {
		t.Errorf("TextBody: got %q, want %q", out.TextBody, in.TextBody)
	}
	if out.HTMLBody != in.HTMLBody {
		t.Errorf("HTMLBody: got %q, want %q", out.HTMLBody, in.HTMLBody)
	}
	if out.ReplyTo != in.ReplyTo {
		t.Errorf("ReplyTo: got %q, want %q", out.ReplyTo, in.ReplyTo)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty input", raw: ""},
		{name: "multipart without boundary", raw: "From: a@example.com\r\nContent-Type: multipart/mixed\r\n\r\nbody"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseAddressList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "a@example.com", want: []string{"a@example.com"}},
		{name: "display names", raw: "Ada <a@example.com>, b@example.com", want: []string{"a@example.com", "b@example.com"}},
		{name: "invalid falls back to split", raw: "not an address, other", want: []string{"not an address", "other"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseAddressList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d]: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
