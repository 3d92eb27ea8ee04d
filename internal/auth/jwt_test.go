package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

var testUser = &model.User{ID: "u1", Email: "admin@example.com", Role: model.RoleAdmin}

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	tok, err := GenerateToken(secret, testUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if tok.Token == "" || tok.JTI == "" {
		t.Fatal("expected non-empty token and JTI")
	}

	claims, err := ValidateToken(secret, tok.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("expected uid u1, got %q", claims.UserID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("expected email admin@example.com, got %q", claims.Email)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("expected role admin, got %q", claims.Role)
	}
	if claims.ID != tok.JTI {
		t.Errorf("expected jti %q, got %q", tok.JTI, claims.ID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	tok, _ := GenerateToken("secret1", testUser)
	if _, err := ValidateToken("secret2", tok.Token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := ValidateToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestTokenExpiry(t *testing.T) {
	tok, _ := GenerateToken("test", testUser)
	diff := time.Now().Add(AccessTokenExpiry).Sub(tok.ExpiresAt)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestOpaqueToken(t *testing.T) {
	plain, rec, err := NewOpaqueToken("u1", model.PurposeReset)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Hash != HashToken(plain) {
		t.Error("stored hash does not match plain token")
	}
	if rec.Hash == plain {
		t.Error("plain token must not be stored")
	}
	if rec.UserID != "u1" || rec.Purpose != model.PurposeReset {
		t.Errorf("unexpected token record %+v", rec)
	}
	if time.Until(rec.ExpiresAt) > TokenTTL[model.PurposeReset] {
		t.Errorf("expiry beyond TTL: %v", rec.ExpiresAt)
	}

	other, _, _ := NewOpaqueToken("u1", model.PurposeReset)
	if other == plain {
		t.Error("expected distinct tokens")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("expected wrong password to fail")
	}

	p, err := GeneratePassword()
	if err != nil {
		t.Fatal(err)
	}
	if len(p) < model.MinPasswordLength {
		t.Errorf("generated password too short: %q", p)
	}
}

type countingPurger struct{ calls atomic.Int32 }

func (c *countingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestRunCleanupStopsWithContext(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunCleanup(ctx, p, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
	if p.calls.Load() < 2 {
		t.Errorf("expected repeated purges, got %d", p.calls.Load())
	}
}
