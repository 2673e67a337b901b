package presigned

import "errors"

var (
	// ErrTokenInvalid covers malformed, expired, badly signed or out-of-scope tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrInvalidTTL is returned when a requested lifetime is not positive or exceeds the configured maximum.
	ErrInvalidTTL = errors.New("invalid token ttl")
)
