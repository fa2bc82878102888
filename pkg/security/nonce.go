// Package security issues and checks the anti-forgery nonces that guard
// the tracking endpoint.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNonceMissing = errors.New("nonce missing")
	ErrNonceInvalid = errors.New("nonce invalid")
)

type nonceClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// NonceManager signs short-lived HS256 tokens bound to one action name.
type NonceManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewNonceManager(secret string, ttl time.Duration) *NonceManager {
	return &NonceManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the issue time source.
func (m *NonceManager) WithClock(now func() time.Time) *NonceManager {
	m.now = now
	return m
}

// Issue returns a nonce valid for action until the TTL elapses.
func (m *NonceManager) Issue(action string) (string, error) {
	issued := m.now()
	claims := &nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign nonce: %w", err)
	}
	return token, nil
}

// Verify checks signature, expiry and the bound action.
func (m *NonceManager) Verify(nonce, action string) error {
	if nonce == "" {
		return ErrNonceMissing
	}

	claims := &nonceClaims{}
	token, err := jwt.ParseWithClaims(nonce, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrNonceInvalid, err)
	}
	if claims.Action != action {
		return fmt.Errorf("%w: issued for %q", ErrNonceInvalid, claims.Action)
	}
	return nil
}
