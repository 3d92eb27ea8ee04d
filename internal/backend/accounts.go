package backend

import (
	"context"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// Accounts holds sign-in state: password hashes, the email verification
// flag, single-use tokens and revoked access token IDs.
type Accounts interface {
	// Register creates a user together with its password hash.
	Register(ctx context.Context, user *model.User, passwordHash string) (*model.User, error)
	// AccountByEmail returns ErrNotFound for unknown addresses.
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)
	Account(ctx context.Context, userID string) (*model.Account, error)
	SetPassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error

	// SaveToken stores a single-use token by hash.
	SaveToken(ctx context.Context, token model.Token) error
	// ConsumeToken deletes and returns an unexpired token with the given
	// hash and purpose, or ErrNotFound.
	ConsumeToken(ctx context.Context, hash, purpose string) (*model.Token, error)
	// RevokeTokens deletes every token of a user with the given purpose.
	RevokeTokens(ctx context.Context, userID, purpose string) error

	RevokeAccess(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessRevoked(ctx context.Context, jti string) (bool, error)

	// PurgeExpired removes expired tokens and revocations.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
