// Package auth guards the operator endpoints (cache inspection and purge)
// with a shared admin key stored only as a bcrypt hash.
package auth

import (
	"context"
	"time"
)

// Principal identifies the caller a credential resolved to.
type Principal struct {
	Subject       string
	Authenticated time.Time
}

// TokenParser turns a raw credential into a Principal.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (Principal, error)
}
