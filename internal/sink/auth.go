// Package sink implements a local SMTP server that accepts mail from the
// relay and hands it to a Provider instead of delivering it. It stands in
// for a real mail host during development and in end-to-end tests.
package sink

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	errBadEncoding   = errors.New("invalid base64 encoding")
	errBadPlain      = errors.New("invalid AUTH PLAIN format")
	errBadCredential = errors.New("authentication failed")
)

// Authenticator checks AUTH PLAIN and AUTH LOGIN credentials.
type Authenticator struct {
	username string
	password string
}

// NewAuthenticator creates an Authenticator. Authentication is disabled
// when either value is empty.
func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{username: username, password: password}
}

// Enabled reports whether clients must authenticate.
func (a *Authenticator) Enabled() bool {
	return a.username != "" && a.password != ""
}

// VerifyPlain checks a base64 "authzid\0authcid\0password" response. The
// authorization identity is ignored.
func (a *Authenticator) VerifyPlain(encoded string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errBadEncoding
	}

	parts := strings.SplitN(string(decoded), "\x00", 3)
	if len(parts) != 3 {
		return errBadPlain
	}
	return a.check(parts[1], parts[2])
}

// VerifyLogin checks the two base64 answers of the AUTH LOGIN exchange.
func (a *Authenticator) VerifyLogin(encodedUser, encodedPass string) error {
	user, err := base64.StdEncoding.DecodeString(encodedUser)
	if err != nil {
		return errBadEncoding
	}
	pass, err := base64.StdEncoding.DecodeString(encodedPass)
	if err != nil {
		return errBadEncoding
	}
	return a.check(string(user), string(pass))
}

func (a *Authenticator) check(user, pass string) error {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.password)) == 1
	if !userOK || !passOK {
		return errBadCredential
	}
	return nil
}
