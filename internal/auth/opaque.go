package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// Lifetimes of single-use tokens, by purpose.
var TokenTTL = map[string]time.Duration{
	model.PurposeRefresh:     30 * 24 * time.Hour,
	model.PurposeVerifyEmail: 48 * time.Hour,
	model.PurposeReset:       time.Hour,
}

// NewOpaqueToken returns a random URL-safe token for the user and the
// record to persist. Only the hash is stored.
func NewOpaqueToken(userID, purpose string) (string, model.Token, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", model.Token{}, fmt.Errorf("generating token: %w", err)
	}
	plain := base64.RawURLEncoding.EncodeToString(buf)
	return plain, model.Token{
		Hash:      HashToken(plain),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(TokenTTL[purpose]),
	}, nil
}

// HashToken computes the URL-safe SHA-256 hash under which a token is stored.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
