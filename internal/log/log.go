// Package log implements the segmented, append-only log: a directory of
// numbered generation files, the current generation accepting appends, and
// positioned reads against any generation. See internal/index for the
// in-memory key index built on top of this package, and
// internal/engine for the orchestration that ties the two together.
package log

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mvasko/kvs/pkg/kvserr"
)

// Location identifies a record's bytes within a generation file.
type Location struct {
	Generation uint64
	Offset     uint64
	Length     uint64
}

// Log owns a directory of generation files: one active generation
// accepting appends, and a read handle on every generation that exists.
type Log struct {
	mu  sync.RWMutex
	dir string
	log *zap.SugaredLogger

	active      *generation
	generations map[uint64]*generation
	order       []uint64 // ascending generation numbers, including active
}

// Open scans dir for existing "<N>.log" files, opens a read handle on
// each, and opens a new append handle on the next generation after the
// highest one found (or generation 1 if the directory is empty).
func Open(dir string, logger *zap.SugaredLogger) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, kvserr.Wrap(kvserr.CodeIO, err, "create data directory").WithDetail("dir", dir)
	}

	nums, err := existingGenerations(dir)
	if err != nil {
		return nil, err
	}

	l := &Log{
		dir:         dir,
		log:         logger,
		generations: make(map[uint64]*generation, len(nums)+1),
	}

	for _, n := range nums {
		g, err := openGeneration(dir, n)
		if err != nil {
			return nil, err
		}
		l.generations[n] = g
		l.order = append(l.order, n)
	}

	nextNum := uint64(1)
	if len(nums) > 0 {
		nextNum = nums[len(nums)-1] + 1
	}
	if err := l.openActive(nextNum); err != nil {
		return nil, err
	}

	l.log.Infow("log opened", "dir", dir, "existing_generations", nums, "active_generation", nextNum)
	return l, nil
}

func (l *Log) openActive(num uint64) error {
	g, err := openGeneration(l.dir, num)
	if err != nil {
		return err
	}
	l.active = g
	l.generations[num] = g
	l.order = append(l.order, num)
	return nil
}

func existingGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.CodeIO, err, "read data directory").WithDetail("dir", dir)
	}

	var nums []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		numStr := strings.TrimSuffix(e.Name(), ".log")
		n, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// CurrentGeneration returns the number of the active append generation.
func (l *Log) CurrentGeneration() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active.num
}

// Append appends an encoded record to the active generation.
func (l *Log) Append(r Record) (Location, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	off, length, err := l.active.append(r)
	if err != nil {
		return Location{}, err
	}
	return Location{Generation: l.active.num, Offset: off, Length: length}, nil
}

// ReadAt decodes exactly one record at loc.
func (l *Log) ReadAt(loc Location) (Record, error) {
	l.mu.RLock()
	g, ok := l.generations[loc.Generation]
	l.mu.RUnlock()
	if !ok {
		return Record{}, kvserr.New(kvserr.CodeIO, "missing generation").WithDetail("generation", loc.Generation)
	}
	return g.readAt(loc.Offset, loc.Length)
}

// Scan lazily traverses generation gen from its first record, invoking fn
// with each record's start offset, total framed length, and decoded
// value. A truncated tail at EOF ends the scan without error, tolerating
// a crash mid-write.
func (l *Log) Scan(gen uint64, fn func(offset, length uint64, r Record) error) error {
	l.mu.RLock()
	g, ok := l.generations[gen]
	l.mu.RUnlock()
	if !ok {
		return kvserr.New(kvserr.CodeIO, "missing generation").WithDetail("generation", gen)
	}
	return g.scan(fn)
}

// Generations returns the ascending list of generation numbers currently
// present, including the active one.
func (l *Log) Generations() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]uint64, len(l.order))
	copy(out, l.order)
	return out
}

// Rotate opens a new active append generation at current+1, returning the
// new generation number. The previous generation's file is not closed: it
// stays open for reads, and appends go only to the new generation.
func (l *Log) Rotate() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *Log) rotateLocked() (uint64, error) {
	next := l.active.num + 1
	if err := l.openActive(next); err != nil {
		return 0, err
	}
	l.log.Infow("rotated to new generation", "generation", next)
	return next, nil
}

// OpenGenerationForCompaction opens a fresh generation file for writing,
// without making it the active append generation. Used by the engine's
// compact() to create the compaction destination (G+1) independently of
// rotating the active generation (G+2).
func (l *Log) OpenGenerationForCompaction(num uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.generations[num]; exists {
		return nil
	}
	g, err := openGeneration(l.dir, num)
	if err != nil {
		return err
	}
	l.generations[num] = g
	l.order = append(l.order, num)
	sort.Slice(l.order, func(i, j int) bool { return l.order[i] < l.order[j] })
	return nil
}

// AppendTo appends a record directly to generation gen (used by
// compaction to write into its destination generation, which is not the
// Log's active generation).
func (l *Log) AppendTo(gen uint64, r Record) (Location, error) {
	l.mu.RLock()
	g, ok := l.generations[gen]
	l.mu.RUnlock()
	if !ok {
		return Location{}, kvserr.New(kvserr.CodeIO, "missing generation").WithDetail("generation", gen)
	}
	off, length, err := g.append(r)
	if err != nil {
		return Location{}, err
	}
	return Location{Generation: gen, Offset: off, Length: length}, nil
}

// ActivateGeneration switches the Log's active append generation to an
// already-open generation num (used by compaction to hand writes over to
// G+2 once the compaction pass begins).
func (l *Log) ActivateGeneration(num uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.generations[num]
	if !ok {
		return kvserr.New(kvserr.CodeIO, "missing generation").WithDetail("generation", num)
	}
	l.active = g
	return nil
}

// Drop closes and deletes generation num. It fails if num is the active
// generation.
func (l *Log) Drop(num uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.num == num {
		return kvserr.New(kvserr.CodeIO, "cannot drop the active generation").WithDetail("generation", num)
	}
	g, ok := l.generations[num]
	if !ok {
		return nil
	}
	if err := g.remove(); err != nil {
		return err
	}
	delete(l.generations, num)
	for i, n := range l.order {
		if n == num {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close flushes and closes every generation's file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, n := range l.order {
		if err := l.generations[n].close(); err != nil {
			return err
		}
	}
	return nil
}
