package account

import (
	"context"
	"errors"
	"testing"

	"menuprice/models"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, err := Register(ctx, s, " alice ", "secret1", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "alice" || u.Role != models.RoleEditor {
		t.Fatalf("unexpected user %+v", u)
	}
	if string(u.HashedPassword) == "secret1" {
		t.Fatalf("password stored in clear")
	}
	if _, err := Register(ctx, s, "alice", "secret2", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists got %v", err)
	}
	if _, err := Authenticate(ctx, s, "alice", "secret1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := Authenticate(ctx, s, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials got %v", err)
	}
}

func TestRegisterPolicy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := Register(ctx, s, "", "secret1", ""); err == nil {
		t.Fatalf("expected error for empty username")
	}
	if _, err := Register(ctx, s, "bob", "123", ""); err == nil {
		t.Fatalf("expected error for short password")
	}
	if _, err := Register(ctx, s, "bob", "secret1", "root"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, _ := Register(ctx, s, "alice", "secret1", "")
	tok, err := IssueRefreshToken(ctx, s, u.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	stored, err := s.RefreshTokenByHash(ctx, hashToken(tok))
	if err != nil {
		t.Fatalf("expected token stored by hash: %v", err)
	}
	if len(stored.TokenHash) != 64 || stored.TokenHash == tok || stored.UserID != u.ID || stored.Revoked {
		t.Fatalf("unexpected stored session %+v", stored)
	}
	got, next, err := RotateRefreshToken(ctx, s, tok)
	if err != nil || got.ID != u.ID || next == tok {
		t.Fatalf("unexpected rotation result %+v %q %v", got, next, err)
	}
	if _, _, err := RotateRefreshToken(ctx, s, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rotated token to be revoked got %v", err)
	}
	if err := RevokeRefreshToken(ctx, s, next); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, _, err := RotateRefreshToken(ctx, s, next); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to fail got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := Register(ctx, s, "carol", "secret1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ResetPassword(ctx, s, "carol", "short"); err == nil {
		t.Fatalf("expected policy error")
	}
	if err := ResetPassword(ctx, s, "carol", "secret2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := Authenticate(ctx, s, "carol", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected got %v", err)
	}
	if _, err := Authenticate(ctx, s, "carol", "secret2"); err != nil {
		t.Fatalf("expected new password accepted got %v", err)
	}
	if err := ResetPassword(ctx, s, "nobody", "secret2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}
