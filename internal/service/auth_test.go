package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"rdv-service/internal/apperr"
	"rdv-service/internal/kv"
	"rdv-service/internal/localstore"
)

func TestAuthGate_LoginLogout(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory(0)
	gate, err := NewAuthGate(mem, "s3cret", "", "development", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, gate.ValidSession(ctx, ""))
	_, err = gate.Login(ctx, "wrong")
	require.ErrorIs(t, err, apperr.ErrInvalidPassword)

	token, err := gate.Login(ctx, "s3cret")
	require.NoError(t, err)
	require.Len(t, token, 64)
	assert.True(t, gate.ValidSession(ctx, token))
	assert.False(t, gate.ValidSession(ctx, ""))
	assert.False(t, gate.ValidSession(ctx, "not-the-token"))

	v, found, err := mem.Get(ctx, localstore.AuthKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "true", string(v))

	stored, found, err := mem.Get(ctx, localstore.SessionKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(stored), token)

	require.NoError(t, gate.Logout(ctx))
	assert.False(t, gate.ValidSession(ctx, token))
}

func TestAuthGate_NewLoginReplacesSession(t *testing.T) {
	ctx := context.Background()
	gate, err := NewAuthGate(kv.NewMemory(0), "s3cret", "", "development", zaptest.NewLogger(t))
	require.NoError(t, err)

	first, err := gate.Login(ctx, "s3cret")
	require.NoError(t, err)
	second, err := gate.Login(ctx, "s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, gate.ValidSession(ctx, first))
	assert.True(t, gate.ValidSession(ctx, second))
}

func TestAuthGate_HashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("from-hash"), bcrypt.MinCost)
	require.NoError(t, err)

	gate, err := NewAuthGate(kv.NewMemory(0), "ignored", string(hash), "production", zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = gate.Login(ctx, "ignored")
	require.ErrorIs(t, err, apperr.ErrInvalidPassword)
	_, err = gate.Login(ctx, "from-hash")
	require.NoError(t, err)
}

func TestAuthGate_Defaults(t *testing.T) {
	_, err := NewAuthGate(kv.NewMemory(0), "", "", "production", zaptest.NewLogger(t))
	require.Error(t, err)

	gate, err := NewAuthGate(kv.NewMemory(0), "", "", "development", zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = gate.Login(context.Background(), DefaultAdminPassword)
	require.NoError(t, err)
}

func TestAuthGate_BadHash(t *testing.T) {
	_, err := NewAuthGate(kv.NewMemory(0), "", "not-a-hash", "development", zaptest.NewLogger(t))
	require.Error(t, err)
}
