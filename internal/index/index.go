// Package index implements the in-memory, key-ordered mapping from key to
// record location that sits in front of internal/log, plus the running
// uncompacted-bytes counter the engine uses to decide when to compact.
//
// Ordering is maintained by a B-tree (github.com/google/btree) rather than
// a map-plus-sort, so live_entries() yields a genuinely sorted iteration
// order without a secondary sort step at compaction time.
package index

import (
	"sync"

	"github.com/google/btree"

	"github.com/mvasko/kvs/internal/log"
)

const treeDegree = 32

// Entry pairs a key with its current record location.
type Entry struct {
	Key      string
	Location log.Location
}

type item struct {
	key string
	loc log.Location
}

func (i item) Less(than btree.Item) bool {
	return i.key < than.(item).key
}

// Index is the ordered key -> Location mapping described by spec §4.3.
type Index struct {
	mu          sync.RWMutex
	tree        *btree.BTree
	uncompacted uint64
}

// New creates an empty Index.
func New() *Index {
	return &Index{tree: btree.New(treeDegree)}
}

// Insert sets key's location. If a mapping already existed, its prior
// Location is returned alongside true, and the caller is responsible for
// accounting its byte length into Uncompacted (the index only tracks the
// counter value; the engine knows the byte-length semantics per spec
// §4.4, since a Remove's own bytes are also counted as uncompacted while a
// Set's replaced bytes are the only thing counted there).
func (idx *Index) Insert(key string, loc log.Location) (old log.Location, hadOld bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev := idx.tree.ReplaceOrInsert(item{key: key, loc: loc})
	if prev == nil {
		return log.Location{}, false
	}
	return prev.(item).loc, true
}

// Remove deletes key's mapping, returning its prior Location.
func (idx *Index) Remove(key string) (log.Location, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := idx.tree.Delete(item{key: key})
	if removed == nil {
		return log.Location{}, false
	}
	return removed.(item).loc, true
}

// Lookup fetches key's current Location.
func (idx *Index) Lookup(key string) (log.Location, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	found := idx.tree.Get(item{key: key})
	if found == nil {
		return log.Location{}, false
	}
	return found.(item).loc, true
}

// LiveEntries returns every (key, Location) pair in ascending key order.
func (idx *Index) LiveEntries() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]Entry, 0, idx.tree.Len())
	idx.tree.Ascend(func(i btree.Item) bool {
		it := i.(item)
		entries = append(entries, Entry{Key: it.key, Location: it.loc})
		return true
	})
	return entries
}

// Replace overwrites an existing key's Location in place, used by
// compaction to repoint every live entry at its rewritten location. Unlike
// Insert it does not report the prior Location, so nothing is added to
// Uncompacted.
func (idx *Index) Replace(key string, loc log.Location) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(item{key: key, loc: loc})
}

// Len reports the number of live keys.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// AddUncompacted accumulates n additional stale bytes into the running
// counter.
func (idx *Index) AddUncompacted(n uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.uncompacted += n
}

// Uncompacted returns the current upper-bound estimate of reclaimable
// bytes.
func (idx *Index) Uncompacted() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.uncompacted
}

// ResetUncompacted zeroes the counter, called after a successful
// compaction pass.
func (idx *Index) ResetUncompacted() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.uncompacted = 0
}
