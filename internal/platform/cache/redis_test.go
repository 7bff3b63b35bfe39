package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
}

func TestNewReturnsUsableClientWhenPingFails(t *testing.T) {
	// Nothing listens on this port. The error reports the outage but the
	// client must still be usable so the process can start degraded.
	client, err := New(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
