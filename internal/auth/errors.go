package auth

import "errors"

// ErrUnauthorized represents a request that needs the root principal but does not carry it.
var ErrUnauthorized = errors.New("unauthorized")
