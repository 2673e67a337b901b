package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/abduss/objectd/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Principal identifies who is making a request.
type Principal string

const (
	// Anonymous is any caller without a valid root credential.
	Anonymous Principal = "anonymous"
	// Root may perform administrative and write operations.
	Root Principal = "root"
)

// Authenticator decides whether a bearer token grants the root principal.
type Authenticator struct {
	token []byte
	hash  []byte
}

// NewAuthenticator builds an Authenticator from configuration. With neither a token nor a
// hash configured every caller is anonymous.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{}
	if cfg.RootToken != "" {
		a.token = []byte(cfg.RootToken)
	}
	if cfg.RootTokenHash != "" {
		a.hash = []byte(cfg.RootTokenHash)
	}
	return a
}

// Authenticate maps a bearer token to a principal.
func (a *Authenticator) Authenticate(token string) Principal {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous
	}
	if len(a.token) > 0 && subtle.ConstantTimeCompare([]byte(token), a.token) == 1 {
		return Root
	}
	if len(a.hash) > 0 && bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil {
		return Root
	}
	return Anonymous
}

// HashToken produces a bcrypt hash suitable for OBJECTD_ROOT_TOKEN_HASH.
func HashToken(token string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
