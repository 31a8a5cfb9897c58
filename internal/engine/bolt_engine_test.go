package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvasko/kvs/pkg/kvserr"
)

func TestBoltEngineSatisfiesEngine(t *testing.T) {
	var _ Engine = (*BoltEngine)(nil)
}

func TestBoltEngineSetGetRemove(t *testing.T) {
	dir := t.TempDir()
	e, err := OpenBolt(dir)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("a", "1"))
	v, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, e.Remove("a"))
	_, ok, err = e.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	err = e.Remove("a")
	require.Error(t, err)
	require.Equal(t, kvserr.CodeNotFound, kvserr.CodeOf(err))
}

func TestBoltEngineMarkerMismatchRefusesToOpen(t *testing.T) {
	dir := t.TempDir()
	e, err := OpenBolt(dir)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = Open(dir, testLogger(t), DefaultCompactionThreshold)
	require.Error(t, err)
	require.Equal(t, kvserr.CodeEngineMismatch, kvserr.CodeOf(err))
}
