package session

import (
	"crypto/subtle"
	"log/slog"
)

type Authenticator interface {
	Authenticate(identity string, secret string) bool
}

// AdminCredentials accepts exactly one configured identity. The secret is
// either a plain password or an Argon2id hash; with neither configured, no
// login can succeed.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
	Logger       *slog.Logger
}

func (c AdminCredentials) Configured() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "")
}

func (c AdminCredentials) Authenticate(identity string, secret string) bool {
	if !c.Configured() {
		return false
	}
	userOK := secureStringEqual(identity, c.Username)

	var secretOK bool
	if c.PasswordHash != "" {
		ok, err := VerifyPassword(c.PasswordHash, secret)
		if err != nil && c.Logger != nil {
			c.Logger.Error("auth.hash.invalid", "error", err)
		}
		secretOK = ok
	} else {
		secretOK = secureStringEqual(secret, c.Password)
	}
	return userOK && secretOK
}

func secureStringEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
