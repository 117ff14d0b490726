// internal/service/auth.go
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rdv-service/internal/apperr"
	"rdv-service/internal/kv"
	"rdv-service/internal/localstore"
)

// DefaultAdminPassword is only accepted outside production when neither a
// password nor a hash is configured.
const DefaultAdminPassword = "admin123"

// AuthGate is the single-operator password gate. The logged-in flag lives in
// the local byte store next to the appointment data, together with a digest
// of the session token handed to the client that logged in. Only requests
// presenting that token pass; a new login replaces the previous session.
type AuthGate struct {
	store  kv.Store
	hash   []byte
	logger *zap.Logger
}

// NewAuthGate takes either a bcrypt hash or a clear password; the hash wins.
func NewAuthGate(store kv.Store, password, passwordHash, env string, logger *zap.Logger) (*AuthGate, error) {
	logger = logger.Named("auth")

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_PASSWORD_HASH: %w", err)
		}
		return &AuthGate{store: store, hash: []byte(passwordHash), logger: logger}, nil
	}

	if password == "" {
		if env == "production" {
			return nil, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required in production")
		}
		logger.Warn("⚠️ [AUTH] no admin password configured, using the default one")
		password = DefaultAdminPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return &AuthGate{store: store, hash: hash, logger: logger}, nil
}

// Login checks password and opens a new session. The returned token is only
// stored as a SHA-256 digest.
func (g *AuthGate) Login(ctx context.Context, password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		g.logger.Warn("🔒 [AUTH] login rejected")
		return "", apperr.ErrInvalidPassword
	}
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := g.store.Set(ctx, localstore.SessionKey, []byte(digest(token))); err != nil {
		return "", err
	}
	if err := g.store.Set(ctx, localstore.AuthKey, []byte("true")); err != nil {
		return "", err
	}
	g.logger.Info("🔓 [AUTH] logged in")
	return token, nil
}

// Logout closes the current session whoever holds it.
func (g *AuthGate) Logout(ctx context.Context) error {
	if err := g.store.Delete(ctx, localstore.SessionKey); err != nil {
		return err
	}
	if err := g.store.Delete(ctx, localstore.AuthKey); err != nil {
		return err
	}
	g.logger.Info("🔒 [AUTH] logged out")
	return nil
}

// ValidSession reports whether token belongs to the open session. A read
// error counts as logged out.
func (g *AuthGate) ValidSession(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	flag, found, err := g.store.Get(ctx, localstore.AuthKey)
	if err != nil {
		g.logger.Error("❌ [AUTH] flag read failed", zap.Error(err))
		return false
	}
	if !found || string(flag) != "true" {
		return false
	}
	stored, found, err := g.store.Get(ctx, localstore.SessionKey)
	if err != nil {
		g.logger.Error("❌ [AUTH] session read failed", zap.Error(err))
		return false
	}
	return found && subtle.ConstantTimeCompare(stored, []byte(digest(token))) == 1
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
