// Package jwt verifies the HS256 tokens issued by the auth service and
// resolves the user they were issued to.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/taskchat"
	gojwt "github.com/golang-jwt/jwt/v5"
)

// Verifier checks tokens signed with a shared secret. It is safe for
// concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// Option configures a [Verifier].
type Option func(*Verifier)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithLeeway tolerates clock skew between the issuer and this service.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

// NewVerifier creates a Verifier for secret, which must not be empty.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt: empty secret")
	}
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Authenticate returns the subject of token. Expired tokens fail with
// [taskchat.ErrCredentialExpired]; tokens without a subject, signed with
// another key or algorithm, or malformed fail with a plain error.
func (v *Verifier) Authenticate(_ context.Context, token string) (string, error) {
	var claims gojwt.RegisteredClaims
	_, err := gojwt.ParseWithClaims(token, &claims, v.key,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(v.now),
		gojwt.WithLeeway(v.leeway),
	)
	if errors.Is(err, gojwt.ErrTokenExpired) {
		return "", fmt.Errorf("jwt: %w", taskchat.ErrCredentialExpired)
	}
	if err != nil {
		return "", fmt.Errorf("jwt: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("jwt: token has no subject")
	}
	return claims.Subject, nil
}

func (v *Verifier) key(*gojwt.Token) (any, error) {
	return v.secret, nil
}
