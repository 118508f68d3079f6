// Package account manages editor accounts and their refresh tokens.
package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"menuprice/models"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrNotFound           = errors.New("not found")
)

// MinPasswordLen is the basic password policy.
const MinPasswordLen = 6

// RefreshTTL is the lifetime of a refresh token.
const RefreshTTL = 30 * 24 * time.Hour

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id uint) (models.User, error)
	SaveRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id uint) error
	SetPassword(ctx context.Context, id uint, hashed []byte) error
}

// Register creates an account with a bcrypt password hash.
func Register(ctx context.Context, s Store, username, password, role string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("username required")
	}
	if len(password) < MinPasswordLen {
		return models.User{}, fmt.Errorf("password too short (min %d)", MinPasswordLen)
	}
	if role == "" {
		role = models.RoleEditor
	}
	if role != models.RoleEditor && role != models.RoleAdministrator {
		return models.User{}, fmt.Errorf("unknown role %q", role)
	}
	if _, err := s.UserByUsername(ctx, username); err == nil {
		return models.User{}, ErrUserExists
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{Username: username, HashedPassword: hashed, Role: role}
	if err := s.CreateUser(ctx, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Authenticate checks a username and password.
func Authenticate(ctx context.Context, s Store, username, password string) (models.User, error) {
	u, err := s.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.HashedPassword, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IssueRefreshToken stores the hash of a new random token and returns the token.
func IssueRefreshToken(ctx context.Context, s Store, userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	rt := models.RefreshToken{UserID: userID, TokenHash: hashToken(token), ExpiresAt: time.Now().Add(RefreshTTL)}
	if err := s.SaveRefreshToken(ctx, &rt); err != nil {
		return "", err
	}
	return token, nil
}

// RotateRefreshToken revokes token and issues a replacement for its user.
func RotateRefreshToken(ctx context.Context, s Store, token string) (models.User, string, error) {
	rt, err := s.RefreshTokenByHash(ctx, hashToken(token))
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return models.User{}, "", ErrInvalidToken
	}
	u, err := s.UserByID(ctx, rt.UserID)
	if err != nil {
		return models.User{}, "", ErrInvalidToken
	}
	if err := s.RevokeRefreshToken(ctx, rt.ID); err != nil {
		return models.User{}, "", err
	}
	next, err := IssueRefreshToken(ctx, s, u.ID)
	if err != nil {
		return models.User{}, "", err
	}
	return u, next, nil
}

// RevokeRefreshToken revokes token, e.g. on logout.
func RevokeRefreshToken(ctx context.Context, s Store, token string) error {
	rt, err := s.RefreshTokenByHash(ctx, hashToken(token))
	if err != nil {
		return ErrNotFound
	}
	return s.RevokeRefreshToken(ctx, rt.ID)
}

// ResetPassword replaces a user's password.
func ResetPassword(ctx context.Context, s Store, username, password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password too short (min %d)", MinPasswordLen)
	}
	u, err := s.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.SetPassword(ctx, u.ID, hashed)
}
