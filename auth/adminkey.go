package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrKeyMismatch   = errors.New("auth: admin key mismatch")
	ErrKeyHashNeeded = errors.New("auth: admin key hash is required")
	ErrKeyTooLong    = errors.New("auth: admin key exceeds 72 bytes")
)

// AdminSubject is the subject attached to requests carrying the admin key.
const AdminSubject = "admin"

// HashKey returns the bcrypt hash to store in configuration. A cost of zero
// selects bcrypt.DefaultCost.
func HashKey(plain string, cost int) (string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", fmt.Errorf("%w: empty key", ErrTokenInvalidInput)
	}
	if len(plain) > 72 {
		return "", ErrKeyTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("auth: bcrypt cost %d out of range", cost)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}

// AdminKeyVerifier checks presented keys against a bcrypt hash.
type AdminKeyVerifier struct {
	hash []byte
	now  func() time.Time
}

// NewAdminKeyVerifier validates hash up front so a malformed configuration
// fails at startup rather than on the first request.
func NewAdminKeyVerifier(hash string) (*AdminKeyVerifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, ErrKeyHashNeeded
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: invalid admin key hash: %w", err)
	}
	return &AdminKeyVerifier{hash: []byte(hash), now: time.Now}, nil
}

func (v *AdminKeyVerifier) ParseToken(ctx context.Context, raw string) (Principal, error) {
	if err := contextError(ctx); err != nil {
		return Principal{}, err
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(raw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Principal{}, ErrKeyMismatch
		}
		return Principal{}, fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return Principal{Subject: AdminSubject, Authenticated: v.now()}, nil
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
