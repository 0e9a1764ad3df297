// Package auth provides bearer/cookie JWT authentication for the
// harness control API backed by statically configured credentials.
package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrBadCredentials is returned for a wrong username or password.
var ErrBadCredentials = errors.New("invalid username or password")

// CredentialsAuth authenticates against the configured operator
// account. A test harness needs exactly one account; there is no user
// database behind it.
type CredentialsAuth struct {
	username string
	password string
}

// NewCredentialsAuth creates an authenticator for the given account.
func NewCredentialsAuth(username, password string) *CredentialsAuth {
	return &CredentialsAuth{username: username, password: password}
}

// Authenticate verifies the supplied credentials in constant time.
func (a *CredentialsAuth) Authenticate(username, password string) (*User, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return nil, ErrBadCredentials
	}
	return &User{Username: username}, nil
}
