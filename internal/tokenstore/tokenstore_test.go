package tokenstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-console/internal/logging"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "auth_token")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Set(ctx, "auth_token", "tok1"))
	require.NoError(t, s.Set(ctx, "user", `{"id":1}`))
	v, err := s.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "tok1", v)

	require.NoError(t, s.Remove(ctx, "auth_token"))
	require.NoError(t, s.Remove(ctx, "auth_token"))
	_, err = s.Get(ctx, "auth_token")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx, "user")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis("redis://"+mr.Addr(), "farm-console")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, mr.Set("other-app:key", "keep"))
	exerciseStore(t, s)

	v, err := mr.Get("other-app:key")
	require.NoError(t, err)
	assert.Equal(t, "keep", v)
}

func TestTokenSource(t *testing.T) {
	mem := NewMemory()
	src := NewTokenSource(mem, "auth_token", logging.NewNop())
	assert.Equal(t, "", src.GetToken())

	require.NoError(t, mem.Set(context.Background(), "auth_token", "tok1"))
	assert.Equal(t, "tok1", src.GetToken())
}
