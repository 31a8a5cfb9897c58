package engine

import (
	"sync"

	units "github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/mvasko/kvs/internal/index"
	"github.com/mvasko/kvs/internal/log"
	"github.com/mvasko/kvs/pkg/kvserr"
)

// DefaultCompactionThreshold is the default number of uncompacted bytes
// that triggers a compaction pass.
const DefaultCompactionThreshold = 1 << 20 // 1 MiB

// KVEngine is the primary log-structured storage engine: a segmented
// append-only log fronted by an in-memory ordered index, compacting
// itself once stale bytes cross a configurable threshold.
type KVEngine struct {
	mu  sync.Mutex
	log *log.Log
	idx *index.Index

	threshold uint64
	logger    *zap.SugaredLogger
}

// Open opens (creating if absent) a KVEngine rooted at dir, replaying
// every existing generation into the index before returning.
func Open(dir string, logger *zap.SugaredLogger, threshold uint64) (*KVEngine, error) {
	if threshold == 0 {
		threshold = DefaultCompactionThreshold
	}
	if err := checkMarker(dir, FlavorKVS); err != nil {
		return nil, err
	}

	l, err := log.Open(dir, logger)
	if err != nil {
		return nil, err
	}

	idx := index.New()
	e := &KVEngine{log: l, idx: idx, threshold: threshold, logger: logger}

	for _, gen := range l.Generations() {
		gen := gen
		fold := func(offset, length uint64, r log.Record) error {
			return e.foldRecord(log.Location{Generation: gen, Offset: offset, Length: length}, r)
		}
		if err := l.Scan(gen, fold); err != nil {
			_ = l.Close()
			return nil, err
		}
	}

	logger.Infow("kv engine recovered", "dir", dir, "live_keys", idx.Len(), "uncompacted", idx.Uncompacted())
	return e, nil
}

// foldRecord replays one on-disk record at loc into the index during
// recovery, per spec's open/recover accounting rules.
func (e *KVEngine) foldRecord(loc log.Location, r log.Record) error {
	switch r.Kind {
	case log.KindSet:
		old, hadOld := e.idx.Insert(r.Key, loc)
		if hadOld {
			e.idx.AddUncompacted(old.Length)
		}
	case log.KindRemove:
		old, hadOld := e.idx.Remove(r.Key)
		if hadOld {
			e.idx.AddUncompacted(old.Length)
		}
		e.idx.AddUncompacted(loc.Length)
	default:
		return kvserr.New(kvserr.CodeUnexpectedRecordType, "unknown record kind during recovery")
	}
	return nil
}

func (e *KVEngine) Set(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc, err := e.log.Append(log.NewSet(key, value))
	if err != nil {
		return err
	}

	old, hadOld := e.idx.Insert(key, loc)
	if hadOld {
		e.idx.AddUncompacted(old.Length)
	}

	if e.idx.Uncompacted() >= e.threshold {
		if err := e.compactLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (e *KVEngine) Get(key string) (string, bool, error) {
	e.mu.Lock()
	loc, ok := e.idx.Lookup(key)
	e.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	r, err := e.log.ReadAt(loc)
	if err != nil {
		return "", false, err
	}
	if r.Kind != log.KindSet {
		return "", false, kvserr.New(kvserr.CodeUnexpectedRecordType, "index points at a non-Set record").
			WithDetail("key", key)
	}
	return r.Value, true, nil
}

func (e *KVEngine) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, ok := e.idx.Lookup(key)
	if !ok {
		return kvserr.New(kvserr.CodeNotFound, "Key not found").WithDetail("key", key)
	}

	loc, err := e.log.Append(log.NewRemove(key))
	if err != nil {
		return err
	}

	e.idx.Remove(key)
	e.idx.AddUncompacted(old.Length)
	e.idx.AddUncompacted(loc.Length)
	return nil
}

func (e *KVEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Close()
}

// compactLocked runs a compaction pass. Callers must hold e.mu.
func (e *KVEngine) compactLocked() error {
	before := e.idx.Uncompacted()
	liveBefore := e.idx.Len()

	g := e.log.CurrentGeneration()
	dest := g + 1
	nextActive := g + 2

	if err := e.log.OpenGenerationForCompaction(dest); err != nil {
		return err
	}
	if err := e.log.OpenGenerationForCompaction(nextActive); err != nil {
		return err
	}
	if err := e.log.ActivateGeneration(nextActive); err != nil {
		return err
	}

	for _, entry := range e.idx.LiveEntries() {
		r, err := e.log.ReadAt(entry.Location)
		if err != nil {
			return err
		}
		newLoc, err := e.log.AppendTo(dest, r)
		if err != nil {
			return err
		}
		e.idx.Replace(entry.Key, newLoc)
	}

	for _, gen := range e.log.Generations() {
		if gen < dest {
			if err := e.log.Drop(gen); err != nil {
				return err
			}
		}
	}

	e.idx.ResetUncompacted()

	e.logger.Infow("compaction complete",
		"generation_before", g,
		"compaction_destination", dest,
		"new_active_generation", nextActive,
		"live_keys", liveBefore,
		"reclaimed", units.BytesSize(float64(before)),
	)
	return nil
}
