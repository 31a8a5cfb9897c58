package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvasko/kvs/internal/client"
	"github.com/mvasko/kvs/internal/engine"
)

// startServer binds an ephemeral port and runs the server in the
// background, returning the address it's listening on.
func startServer(t *testing.T, eng engine.Engine) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(addr, eng, zap.NewNop().Sugar())
	go func() {
		_ = s.Run()
	}()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr
}

func TestServerEndToEndScenario(t *testing.T) {
	dir := t.TempDir()
	eng, err := engine.Open(dir, zap.NewNop().Sugar(), engine.DefaultCompactionThreshold)
	require.NoError(t, err)
	defer eng.Close()

	addr := startServer(t, eng)
	c := client.New(addr)

	require.NoError(t, c.Set("hello", "world"))

	v, ok, err := c.Get("hello")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "world", v)

	_, ok, err = c.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	err = c.Remove("missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Key not found")

	require.NoError(t, c.Remove("hello"))
	_, ok, err = c.Get("hello")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServerSurvivesOneBadConnection(t *testing.T) {
	dir := t.TempDir()
	eng, err := engine.Open(dir, zap.NewNop().Sugar(), engine.DefaultCompactionThreshold)
	require.NoError(t, err)
	defer eng.Close()

	addr := startServer(t, eng)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	c := client.New(addr)
	require.NoError(t, c.Set("a", "1"))
	v, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)
}
