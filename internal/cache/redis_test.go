package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisBackendRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	backend, err := NewRedisBackend("redis://" + mr.Addr())
	require.NoError(t, err)

	ctx := context.Background()

	_, ok := backend.Get(ctx, "missing")
	require.False(t, ok)

	backend.Set(ctx, "fp:abc", `{"result":"cached"}`, time.Minute)
	val, ok := backend.Get(ctx, "fp:abc")
	require.True(t, ok)
	require.Equal(t, `{"result":"cached"}`, val)
}

func TestRedisBackendGetAfterServerStopIsQuietMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	backend, err := NewRedisBackend("redis://" + mr.Addr())
	require.NoError(t, err)

	mr.Close()

	_, ok := backend.Get(context.Background(), "anything")
	require.False(t, ok, "a broken cache backend must report a miss, not panic or error out")
}
