package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestKVStore(t *testing.T) {
	ns := runNATSServer(t)
	var n atomic.Int32

	runStoreTests(t, func(t *testing.T) Store {
		bucket := fmt.Sprintf("urls_%d", n.Add(1))
		s, err := NewKVStore(context.Background(), ns.ClientURL(), bucket)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestKVStore_ReopenBucket(t *testing.T) {
	ns := runNATSServer(t)
	ctx := context.Background()

	s, err := NewKVStore(ctx, ns.ClientURL(), "urls")
	require.NoError(t, err)
	_, err = s.TryCreate(ctx, newMapping("keep123", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewKVStore(ctx, ns.ClientURL(), "urls")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindByCode(ctx, "keep123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/keep123", got.OriginalURL)
}

func TestKVStore_Unreachable(t *testing.T) {
	ns := runNATSServer(t)
	url := ns.ClientURL()
	ns.Shutdown()

	_, err := NewKVStore(context.Background(), url, "urls")
	assert.Error(t, err)
}
