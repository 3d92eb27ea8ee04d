package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

func TestRegisterAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Accounts.Register(ctx, &model.User{Name: "Ana", Email: "Ana@Example.com", Role: model.RoleUser}, "hash")
	if err != nil {
		t.Fatal(err)
	}

	acc, err := s.Accounts.AccountByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID != u.ID || acc.PasswordHash != "hash" || acc.EmailVerified {
		t.Fatalf("unexpected account %+v", acc)
	}

	if err := s.Accounts.MarkEmailVerified(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Accounts.SetPassword(ctx, u.ID, "other"); err != nil {
		t.Fatal(err)
	}
	acc, err = s.Accounts.Account(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !acc.EmailVerified || acc.PasswordHash != "other" {
		t.Fatalf("unexpected account %+v", acc)
	}

	if _, err := s.Accounts.AccountByEmail(ctx, "nobody@example.com"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Accounts.SetPassword(ctx, "missing", "x"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumeTokenOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Accounts.Register(ctx, &model.User{Name: "Bo", Email: "bo@example.com", Role: model.RoleUser}, "hash")
	if err != nil {
		t.Fatal(err)
	}
	tok := model.Token{Hash: "h1", UserID: u.ID, Purpose: model.PurposeReset, ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.Accounts.SaveToken(ctx, tok); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Accounts.ConsumeToken(ctx, "h1", model.PurposeRefresh); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected purpose mismatch to fail, got %v", err)
	}
	got, err := s.Accounts.ConsumeToken(ctx, "h1", model.PurposeReset)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.UserID)
	}
	if _, err := s.Accounts.ConsumeToken(ctx, "h1", model.PurposeReset); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestExpiredTokenRejectedAndPurged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Accounts.Register(ctx, &model.User{Name: "Cy", Email: "cy@example.com", Role: model.RoleUser}, "hash")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	for _, h := range []string{"old1", "old2"} {
		if err := s.Accounts.SaveToken(ctx, model.Token{Hash: h, UserID: u.ID, Purpose: model.PurposeRefresh, ExpiresAt: past}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Accounts.RevokeAccess(ctx, "jti-old", past); err != nil {
		t.Fatal(err)
	}
	if err := s.Accounts.RevokeAccess(ctx, "jti-new", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Accounts.ConsumeToken(ctx, "old1", model.PurposeRefresh); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	n, err := s.Accounts.PurgeExpired(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged rows, got %d", n)
	}
	revoked, err := s.Accounts.IsAccessRevoked(ctx, "jti-new")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Fatal("expected unexpired revocation to survive purge")
	}
}

func TestRevokeTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Accounts.Register(ctx, &model.User{Name: "Di", Email: "di@example.com", Role: model.RoleUser}, "hash")
	if err != nil {
		t.Fatal(err)
	}
	exp := time.Now().Add(time.Hour)
	for _, h := range []string{"r1", "r2"} {
		if err := s.Accounts.SaveToken(ctx, model.Token{Hash: h, UserID: u.ID, Purpose: model.PurposeRefresh, ExpiresAt: exp}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Accounts.RevokeTokens(ctx, u.ID, model.PurposeRefresh); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Accounts.ConsumeToken(ctx, "r2", model.PurposeRefresh); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected revoked token to be gone, got %v", err)
	}
}

func TestProductImage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Products.Create(ctx, &model.Product{SKU: "IMG", Name: "Pic", Tracking: model.TrackingNone})
	if err != nil {
		t.Fatal(err)
	}
	data, _, err := s.Images.GetProductImage(ctx, p.ID)
	if err != nil || data != nil {
		t.Fatalf("expected no image, got %v, %v", data, err)
	}

	if err := s.Images.SetProductImage(ctx, p.ID, []byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatal(err)
	}
	data, mime, err := s.Images.GetProductImage(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 || mime != "image/png" {
		t.Fatalf("unexpected image %v %q", data, mime)
	}
	got, err := s.Products.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasImage {
		t.Fatal("expected hasImage to be set")
	}

	if err := s.Images.SetProductImage(ctx, "missing", []byte{1}, "image/png"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
