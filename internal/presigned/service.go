package presigned

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActionRead is the only action a capability token can grant.
const ActionRead = "read"

// ReadClaims scope a token to one action on one object.
type ReadClaims struct {
	Action string `json:"action"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 capability tokens.
type Service struct {
	key     []byte
	ttl     time.Duration
	maxTTL  time.Duration
	nowFunc func() time.Time
}

// NewService builds a token service. ttl is the default lifetime and maxTTL caps requested
// lifetimes; a zero maxTTL means no cap.
func NewService(key []byte, ttl, maxTTL time.Duration) *Service {
	return &Service{
		key:     key,
		ttl:     ttl,
		maxTTL:  maxTTL,
		nowFunc: time.Now,
	}
}

// DefaultTTL is the lifetime used when a caller does not ask for one.
func (s *Service) DefaultTTL() time.Duration {
	return s.ttl
}

// IssueReadToken signs a token allowing a single read action on bucket/key until now+ttl.
func (s *Service) IssueReadToken(bucket, key string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 || (s.maxTTL > 0 && ttl > s.maxTTL) {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	expiresAt := s.nowFunc().Add(ttl)
	claims := ReadClaims{
		Action: ActionRead,
		Bucket: bucket,
		Key:    key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyReadToken reports whether token grants a read of bucket/key right now. It fails closed
// and never returns an error.
func (s *Service) VerifyReadToken(token, bucket, key string) bool {
	claims, err := s.parse(token)
	if err != nil {
		return false
	}
	return claims.Action == ActionRead && claims.Bucket == bucket && claims.Key == key
}

func (s *Service) parse(token string) (*ReadClaims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFunc),
	)

	claims := &ReadClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
