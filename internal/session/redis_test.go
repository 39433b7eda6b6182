package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRedisStorage(t *testing.T, prefix string) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)

	storage, err := NewRedisStorage(context.Background(), RedisOptions{Addr: srv.Addr(), Prefix: prefix}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	return storage, srv
}

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, srv := newRedisStorage(t, "")

	_, ok, err := storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(ctx, KeyRole, "recruiter"))
	require.NoError(t, storage.Set(ctx, KeyAccessToken, "token"))

	value, ok, err := storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "recruiter", value)

	raw, err := srv.Get(defaultRedisPrefix + KeyRole)
	require.NoError(t, err)
	assert.Equal(t, "recruiter", raw)

	require.NoError(t, storage.Delete(ctx, KeyRole, "missing"))
	require.NoError(t, storage.Delete(ctx))

	_, ok, err = storage.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err = storage.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", value)
}

func TestRedisStoragePrefixesKeys(t *testing.T) {
	ctx := context.Background()
	storage, srv := newRedisStorage(t, "laptop:")

	require.NoError(t, storage.Set(ctx, KeyRole, "jobseeker"))

	assert.True(t, srv.Exists("laptop:"+KeyRole))
	assert.False(t, srv.Exists(defaultRedisPrefix+KeyRole))
}

func TestRedisStorageServerDown(t *testing.T) {
	ctx := context.Background()
	storage, srv := newRedisStorage(t, "")

	srv.Close()

	_, ok, err := storage.Get(ctx, KeyRole)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, storage.Set(ctx, KeyRole, "jobseeker"))
}

func TestNewRedisStorageFailsWithoutServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedisStorage(context.Background(), RedisOptions{Addr: addr}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
