package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

type credential struct {
	hash     string
	verified bool
}

// Accounts keeps sign-in state in maps next to the users collection.
type Accounts struct {
	users *Collection[model.User]

	mu      sync.Mutex
	creds   map[string]credential
	tokens  map[string]model.Token
	revoked map[string]time.Time
}

// NewAccounts returns account state for users.
func NewAccounts(users *Collection[model.User]) *Accounts {
	return &Accounts{
		users:   users,
		creds:   map[string]credential{},
		tokens:  map[string]model.Token{},
		revoked: map[string]time.Time{},
	}
}

func (a *Accounts) Register(ctx context.Context, user *model.User, passwordHash string) (*model.User, error) {
	created, err := a.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.creds[created.ID] = credential{hash: passwordHash}
	a.mu.Unlock()
	return created, nil
}

// setCredential stores a verified password hash for a fixture user.
func (a *Accounts) setCredential(userID, hash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds[userID] = credential{hash: hash, verified: true}
}

func (a *Accounts) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, u := range a.users.All() {
		if strings.EqualFold(u.Email, email) {
			return a.account(u), nil
		}
	}
	return nil, backend.ErrNotFound
}

func (a *Accounts) Account(ctx context.Context, userID string) (*model.Account, error) {
	u, err := a.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.account(*u), nil
}

func (a *Accounts) account(u model.User) *model.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.creds[u.ID]
	return &model.Account{User: u, PasswordHash: c.hash, EmailVerified: c.verified}
}

func (a *Accounts) SetPassword(ctx context.Context, userID, passwordHash string) error {
	if _, err := a.users.Get(ctx, userID); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.creds[userID]
	c.hash = passwordHash
	a.creds[userID] = c
	return nil
}

func (a *Accounts) MarkEmailVerified(ctx context.Context, userID string) error {
	if _, err := a.users.Get(ctx, userID); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.creds[userID]
	c.verified = true
	a.creds[userID] = c
	return nil
}

func (a *Accounts) SaveToken(_ context.Context, token model.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token.Hash] = token
	return nil
}

func (a *Accounts) ConsumeToken(_ context.Context, hash, purpose string) (*model.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[hash]
	if !ok || tok.Purpose != purpose {
		return nil, backend.ErrNotFound
	}
	delete(a.tokens, hash)
	if time.Now().After(tok.ExpiresAt) {
		return nil, backend.ErrNotFound
	}
	return &tok, nil
}

func (a *Accounts) RevokeTokens(_ context.Context, userID, purpose string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for h, tok := range a.tokens {
		if tok.UserID == userID && tok.Purpose == purpose {
			delete(a.tokens, h)
		}
	}
	return nil
}

func (a *Accounts) RevokeAccess(_ context.Context, jti string, expiresAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[jti] = expiresAt
	return nil
}

func (a *Accounts) IsAccessRevoked(_ context.Context, jti string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[jti]
	return ok, nil
}

func (a *Accounts) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for h, tok := range a.tokens {
		if now.After(tok.ExpiresAt) {
			delete(a.tokens, h)
			n++
		}
	}
	for jti, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, jti)
			n++
		}
	}
	return n, nil
}
