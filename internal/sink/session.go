package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/shineum/contact-relay/internal/parser"
)

const idleTimeout = 60 * time.Second

// session is one client connection. It is driven by a single goroutine.
type session struct {
	srv  *Server
	conn net.Conn
	text *textproto.Conn

	tlsActive bool
	greeted   bool
	authed    bool

	mailFrom string
	rcptTo   []string
}

func newSession(conn net.Conn, srv *Server) *session {
	_, isTLS := conn.(*tls.Conn)
	return &session{
		srv:       srv,
		conn:      conn,
		text:      textproto.NewConn(conn),
		tlsActive: isTLS,
	}
}

func (s *session) serve(ctx context.Context) {
	defer s.conn.Close()

	remote := s.conn.RemoteAddr().String()
	slog.Debug("sink session opened", "remote", remote)
	defer slog.Debug("sink session closed", "remote", remote)

	s.reply("220 %s ESMTP contact-relay sink", s.srv.cfg.Hostname)

	for {
		if ctx.Err() != nil {
			s.reply("421 Service shutting down")
			return
		}
		if err := s.conn.SetDeadline(time.Now().Add(idleTimeout)); err != nil {
			slog.Error("failed to set connection deadline", "error", err)
			return
		}

		line, err := s.text.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("sink read error", "remote", remote, "error", err)
			}
			return
		}
		if line == "" {
			continue
		}

		verb, arg, _ := strings.Cut(line, " ")
		if s.dispatch(ctx, strings.ToUpper(verb), arg) {
			return
		}
	}
}

// dispatch runs one command and reports whether the session is over.
func (s *session) dispatch(ctx context.Context, verb, arg string) bool {
	switch verb {
	case "EHLO", "HELO":
		s.hello(verb, arg)
	case "STARTTLS":
		return s.startTLS()
	case "AUTH":
		s.authenticate(arg)
	case "MAIL":
		s.mail(arg)
	case "RCPT":
		s.rcpt(arg)
	case "DATA":
		return s.data(ctx)
	case "RSET":
		s.reset()
		s.reply("250 OK")
	case "NOOP":
		s.reply("250 OK")
	case "QUIT":
		s.reply("221 Bye")
		return true
	default:
		s.reply("500 Unrecognized command")
	}
	return false
}

func (s *session) hello(verb, arg string) {
	if arg == "" {
		s.reply("501 Syntax: %s hostname", verb)
		return
	}
	s.greeted = true
	s.reset()

	if verb == "HELO" {
		s.reply("250 %s Hello %s", s.srv.cfg.Hostname, arg)
		return
	}

	lines := []string{s.srv.cfg.Hostname + " Hello " + arg}
	if s.srv.cfg.TLSConfig != nil && !s.tlsActive {
		lines = append(lines, "STARTTLS")
	}
	if s.srv.auth.Enabled() {
		lines = append(lines, "AUTH PLAIN LOGIN")
	}
	lines = append(lines, "SIZE "+strconv.Itoa(s.srv.cfg.MaxMessageSize))

	for i, l := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		s.reply("250%s%s", sep, l)
	}
}

// startTLS upgrades the connection in place. A failed handshake ends the
// session since the stream state is unknown.
func (s *session) startTLS() bool {
	switch {
	case s.srv.cfg.TLSConfig == nil:
		s.reply("454 TLS not available")
		return false
	case s.tlsActive:
		s.reply("454 TLS already active")
		return false
	}

	s.reply("220 Ready to start TLS")

	tlsConn := tls.Server(s.conn, s.srv.cfg.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		slog.Error("sink TLS handshake failed", "error", err)
		return true
	}

	s.conn = tlsConn
	s.text = textproto.NewConn(tlsConn)
	s.tlsActive = true
	s.greeted = false
	s.authed = false
	s.reset()
	return false
}

func (s *session) authenticate(arg string) {
	switch {
	case !s.greeted:
		s.reply("503 Send EHLO/HELO first")
		return
	case !s.srv.auth.Enabled():
		s.reply("503 AUTH not available")
		return
	case s.authed:
		s.reply("503 Already authenticated")
		return
	}

	mechanism, initial, _ := strings.Cut(arg, " ")

	var err error
	switch strings.ToUpper(mechanism) {
	case "PLAIN":
		err = s.authPlain(initial)
	case "LOGIN":
		err = s.authLogin()
	default:
		s.reply("504 Unrecognized authentication type")
		return
	}

	switch {
	case errors.Is(err, errAuthCancelled):
		s.reply("501 Authentication cancelled")
	case err != nil:
		slog.Warn("sink authentication failed", "remote", s.conn.RemoteAddr().String(), "mechanism", mechanism)
		s.reply("535 Authentication failed")
	default:
		s.authed = true
		s.reply("235 Authentication successful")
	}
}

var errAuthCancelled = errors.New("authentication cancelled")

func (s *session) authPlain(initial string) error {
	response := initial
	if response == "" {
		var err error
		if response, err = s.challenge("334 "); err != nil {
			return err
		}
	}
	return s.srv.auth.VerifyPlain(response)
}

func (s *session) authLogin() error {
	// "Username:" and "Password:" in base64.
	user, err := s.challenge("334 VXNlcm5hbWU6")
	if err != nil {
		return err
	}
	pass, err := s.challenge("334 UGFzc3dvcmQ6")
	if err != nil {
		return err
	}
	return s.srv.auth.VerifyLogin(user, pass)
}

func (s *session) challenge(prompt string) (string, error) {
	s.reply("%s", prompt)
	line, err := s.text.ReadLine()
	if err != nil {
		return "", err
	}
	if line == "*" {
		return "", errAuthCancelled
	}
	return line, nil
}

func (s *session) mail(arg string) {
	switch {
	case !s.greeted:
		s.reply("503 Send EHLO/HELO first")
		return
	case s.srv.auth.Enabled() && !s.authed:
		s.reply("530 Authentication required")
		return
	case s.mailFrom != "":
		s.reply("503 Sender already specified")
		return
	}

	addr, ok := pathArg(arg, "FROM:")
	if !ok {
		s.reply("501 Syntax: MAIL FROM:<address>")
		return
	}
	s.mailFrom = addr
	s.rcptTo = nil
	s.reply("250 OK")
}

func (s *session) rcpt(arg string) {
	if s.mailFrom == "" {
		s.reply("503 Send MAIL FROM first")
		return
	}
	addr, ok := pathArg(arg, "TO:")
	if !ok {
		s.reply("501 Syntax: RCPT TO:<address>")
		return
	}
	s.rcptTo = append(s.rcptTo, addr)
	s.reply("250 OK")
}

// data reads the message body, parses it and hands it to the Handler. It
// reports whether the session must end because the stream broke.
func (s *session) data(ctx context.Context) bool {
	if len(s.rcptTo) == 0 {
		s.reply("503 Send RCPT TO first")
		return false
	}
	defer s.reset()

	s.reply("354 Start mail input; end with <CRLF>.<CRLF>")

	limit := s.srv.cfg.MaxMessageSize
	body := s.text.DotReader()
	raw, err := io.ReadAll(io.LimitReader(body, int64(limit)+1))
	if err != nil {
		slog.Error("error reading DATA", "error", err)
		return true
	}
	if len(raw) > limit {
		if _, err := io.Copy(io.Discard, body); err != nil {
			return true
		}
		s.reply("552 Message exceeds fixed maximum message size")
		return false
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		slog.Error("failed to parse message", "error", err)
		s.reply("550 Failed to process message")
		return false
	}
	if msg.From == "" {
		msg.From = s.mailFrom
	}
	if len(msg.To) == 0 {
		msg.To = append([]string(nil), s.rcptTo...)
	}

	if err := s.srv.cfg.Handler.Send(ctx, msg); err != nil {
		slog.Error("sink handler failed", "handler", s.srv.cfg.Handler.Name(), "error", err)
		s.reply("451 Temporary failure, please try again later")
		return false
	}

	slog.Info("sink accepted message",
		"from", s.mailFrom,
		"recipients", len(s.rcptTo),
		"subject", msg.Subject,
		"size", len(raw),
	)
	s.reply("250 OK message accepted")
	return false
}

// reset clears the mail transaction but keeps greeting and auth state.
func (s *session) reset() {
	s.mailFrom = ""
	s.rcptTo = nil
}

func (s *session) reply(format string, args ...any) {
	if err := s.text.PrintfLine(format, args...); err != nil {
		slog.Debug("failed to write to client", "error", err)
	}
}

// pathArg extracts the address from "FROM:<addr> [params]" or
// "TO:<addr>". The prefix match is case-insensitive.
func pathArg(arg, prefix string) (string, bool) {
	if len(arg) < len(prefix) || !strings.EqualFold(arg[:len(prefix)], prefix) {
		return "", false
	}
	rest := strings.TrimSpace(arg[len(prefix):])

	if strings.HasPrefix(rest, "<") {
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return "", false
		}
		return validPath(rest[1:end])
	}

	addr, _, _ := strings.Cut(rest, " ")
	return validPath(addr)
}

// validPath rejects empty paths and paths that still carry a display name
// or an address list.
func validPath(addr string) (string, bool) {
	if addr == "" || strings.ContainsAny(addr, "<>, \t\"") {
		return "", false
	}
	return addr, true
}
