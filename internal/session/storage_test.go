package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	storage, err := NewFileStorage(path)
	require.NoError(t, err)

	_, ok, err := storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(ctx, KeyRole, "jobseeker"))
	require.NoError(t, storage.Set(ctx, KeyAccessToken, "token"))

	value, ok, err := storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jobseeker", value)

	require.NoError(t, storage.Delete(ctx, KeyRole, "missing"))

	_, ok, err = storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewFileStorage("")
	assert.Error(t, err)
}

func TestOpenDegradesOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	storage, err := NewFileStorage(path)
	require.NoError(t, err)

	store, err := Open(context.Background(), storage, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, store.Authenticated())
	assert.Equal(t, RoleNone, store.Role())
}

func TestOpenIgnoresUnknownRole(t *testing.T) {
	ctx := context.Background()
	storage, err := NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	require.NoError(t, storage.Set(ctx, KeyRole, "admin"))
	require.NoError(t, storage.Set(ctx, KeyRefreshToken, "r"))

	store, err := Open(ctx, storage, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, RoleNone, store.Role())
	assert.Equal(t, "r", store.RefreshToken())
	assert.True(t, store.Authenticated())
}

func TestOpenRequiresStorage(t *testing.T) {
	_, err := Open(context.Background(), nil, nil, nil)
	assert.Error(t, err)
}
