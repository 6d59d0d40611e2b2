// Package token issues and verifies HS256 bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

var (
	ErrEmptySecret  = errors.New("token secret must not be empty")
	ErrEmptySubject = errors.New("token subject must not be empty")

	// ErrInvalidToken is returned for every verification failure, whatever the cause.
	ErrInvalidToken = errors.New("invalid token")
)

// claims accepts the legacy "username" field as the subject.
type claims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

// WithClock replaces the wall clock used to stamp and check tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies tokens with a shared secret. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec creates a codec for secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", c.ttl)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue returns a signed token for subject, valid from now for the codec TTL.
func (c *Codec) Issue(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := c.now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of tok and returns its subject.
func (c *Codec) Verify(tok string) (string, error) {
	var cl claims

	parsed, err := c.parser.ParseWithClaims(tok, &cl, c.key)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	subject := cl.Subject
	if subject == "" {
		subject = cl.Username
	}

	if subject == "" {
		return "", ErrInvalidToken
	}

	return subject, nil
}

func (c *Codec) key(*jwt.Token) (any, error) {
	return c.secret, nil
}
