package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

// Accounts keeps credentials in the users table and single-use tokens in
// account_tokens.
type Accounts struct {
	db    *sqlx.DB
	users *Table[model.User]
}

// NewAccounts returns account state backed by db.
func NewAccounts(db *sqlx.DB, users *Table[model.User]) *Accounts {
	return &Accounts{db: db, users: users}
}

func (a *Accounts) Register(ctx context.Context, user *model.User, passwordHash string) (*model.User, error) {
	created, err := a.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := a.SetPassword(ctx, created.ID, passwordHash); err != nil {
		return nil, err
	}
	return created, nil
}

func (a *Accounts) accountQuery(where string) string {
	return `SELECT ` + strings.Join(a.users.columns, ", ") +
		`, password_hash, email_verified FROM users WHERE ` + where
}

func (a *Accounts) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var acc model.Account
	err := a.db.GetContext(ctx, &acc, a.accountQuery(`email = ? COLLATE NOCASE`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by email: %w", err)
	}
	return &acc, nil
}

func (a *Accounts) Account(ctx context.Context, userID string) (*model.Account, error) {
	var acc model.Account
	err := a.db.GetContext(ctx, &acc, a.accountQuery(`id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &acc, nil
}

func (a *Accounts) SetPassword(ctx context.Context, userID, passwordHash string) error {
	return a.updateUser(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
}

func (a *Accounts) MarkEmailVerified(ctx context.Context, userID string) error {
	return a.updateUser(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, userID)
}

func (a *Accounts) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (a *Accounts) SaveToken(ctx context.Context, token model.Token) error {
	token.ExpiresAt = token.ExpiresAt.UTC()
	_, err := a.db.NamedExecContext(ctx,
		`INSERT INTO account_tokens (token_hash, user_id, purpose, expires_at)
		 VALUES (:token_hash, :user_id, :purpose, :expires_at)`, token)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func (a *Accounts) ConsumeToken(ctx context.Context, hash, purpose string) (*model.Token, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var tok model.Token
	err = tx.GetContext(ctx, &tok,
		`SELECT token_hash, user_id, purpose, expires_at FROM account_tokens
		 WHERE token_hash = ? AND purpose = ?`, hash, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM account_tokens WHERE token_hash = ?`, hash); err != nil {
		return nil, fmt.Errorf("deleting token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing token: %w", err)
	}
	if time.Now().After(tok.ExpiresAt) {
		return nil, backend.ErrNotFound
	}
	return &tok, nil
}

func (a *Accounts) RevokeTokens(ctx context.Context, userID, purpose string) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM account_tokens WHERE user_id = ? AND purpose = ?`, userID, purpose)
	if err != nil {
		return fmt.Errorf("revoking tokens: %w", err)
	}
	return nil
}

// RevokeAccess adds an access token's JTI to the revocation list.
func (a *Accounts) RevokeAccess(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsAccessRevoked checks if a JTI is in the revocation list.
func (a *Accounts) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	if err := a.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti); err != nil {
		return false, fmt.Errorf("checking revoked token: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired removes expired account tokens and revocations. Revocations
// outlive their token only until the token would have expired anyway.
func (a *Accounts) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var total int64
	for _, table := range []string{"account_tokens", "revoked_tokens"} {
		res, err := a.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < ?`, now)
		if err != nil {
			return total, fmt.Errorf("purging %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}
