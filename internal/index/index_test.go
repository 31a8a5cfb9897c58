package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvasko/kvs/internal/log"
)

func TestIndexInsertLookupRemove(t *testing.T) {
	idx := New()

	_, hadOld := idx.Insert("a", log.Location{Generation: 1, Offset: 0, Length: 10})
	require.False(t, hadOld)

	loc, ok := idx.Lookup("a")
	require.True(t, ok)
	require.Equal(t, uint64(1), loc.Generation)

	old, hadOld := idx.Insert("a", log.Location{Generation: 1, Offset: 10, Length: 12})
	require.True(t, hadOld)
	require.Equal(t, uint64(10), old.Length)

	removed, ok := idx.Remove("a")
	require.True(t, ok)
	require.Equal(t, uint64(10), removed.Offset)

	_, ok = idx.Lookup("a")
	require.False(t, ok)

	_, ok = idx.Remove("missing")
	require.False(t, ok)
}

func TestIndexLiveEntriesOrdered(t *testing.T) {
	idx := New()
	keys := []string{"zebra", "apple", "mango", "banana"}
	for i, k := range keys {
		idx.Insert(k, log.Location{Generation: 1, Offset: uint64(i)})
	}

	entries := idx.LiveEntries()
	require.Len(t, entries, 4)

	want := []string{"apple", "banana", "mango", "zebra"}
	for i, e := range entries {
		require.Equal(t, want[i], e.Key)
	}
}

func TestIndexUncompactedCounter(t *testing.T) {
	idx := New()
	require.Equal(t, uint64(0), idx.Uncompacted())

	idx.AddUncompacted(100)
	idx.AddUncompacted(50)
	require.Equal(t, uint64(150), idx.Uncompacted())

	idx.ResetUncompacted()
	require.Equal(t, uint64(0), idx.Uncompacted())
}

func TestIndexReplaceDoesNotAffectUncompacted(t *testing.T) {
	idx := New()
	idx.Insert("a", log.Location{Generation: 1, Offset: 0})
	idx.AddUncompacted(42)

	idx.Replace("a", log.Location{Generation: 2, Offset: 0})
	loc, ok := idx.Lookup("a")
	require.True(t, ok)
	require.Equal(t, uint64(2), loc.Generation)
	require.Equal(t, uint64(42), idx.Uncompacted())
}
