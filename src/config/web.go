package config

import (
	"crypto/subtle"

	"github.com/pkg/errors"
)

type WebConfig struct {
	Listen      string
	Credentials Credentials
}

// Credentials holds the two Basic auth secrets for the lifetime of the
// process. They are never logged and never mutated after startup.
type Credentials struct {
	username string
	password string
}

func NewWebConfig(listen, username, password string) (WebConfig, error) {
	self := WebConfig{Listen: listen}

	if username == "" {
		return self, errors.New("Web Basic auth username is not set")
	}
	if password == "" {
		return self, errors.New("Web Basic auth password is not set")
	}
	self.Credentials = Credentials{username: username, password: password}

	return self, nil
}

// Verify reports whether the candidate pair matches the configured
// secrets. Both halves are always compared in full so a mismatch does not
// leak through timing which of them was wrong.
func (self Credentials) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(self.username), []byte(username))
	passwordMatch := subtle.ConstantTimeCompare([]byte(self.password), []byte(password))
	return usernameMatch&passwordMatch == 1
}
