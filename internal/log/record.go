package log

import (
	"encoding/binary"

	"github.com/mvasko/kvs/pkg/kvserr"
)

// Kind tags the two record variants that can appear in the log.
type Kind byte

const (
	// KindSet asserts a mapping from Key to Value.
	KindSet Kind = 0x01
	// KindRemove retracts a mapping for Key.
	KindRemove Kind = 0x02
)

// Record is the tagged union persisted to the log: a Set carries both Key
// and Value, a Remove carries only Key.
type Record struct {
	Kind  Kind
	Key   string
	Value string
}

// NewSet builds a Set record.
func NewSet(key, value string) Record {
	return Record{Kind: KindSet, Key: key, Value: value}
}

// NewRemove builds a Remove record.
func NewRemove(key string) Record {
	return Record{Kind: KindRemove, Key: key}
}

var benc = binary.BigEndian

// encode serializes r to the record payload shape: a tag byte, a 4-byte
// key length, the key bytes, and — for Set only — a 4-byte value length
// and the value bytes. The caller (generation.go) wraps this payload in
// the shared length-prefix framing before writing it to disk.
func encode(r Record) []byte {
	keyLen := len(r.Key)
	size := 1 + 4 + keyLen
	if r.Kind == KindSet {
		size += 4 + len(r.Value)
	}

	buf := make([]byte, size)
	buf[0] = byte(r.Kind)
	benc.PutUint32(buf[1:5], uint32(keyLen))
	copy(buf[5:5+keyLen], r.Key)

	if r.Kind == KindSet {
		off := 5 + keyLen
		benc.PutUint32(buf[off:off+4], uint32(len(r.Value)))
		copy(buf[off+4:], r.Value)
	}
	return buf
}

// decode parses a record payload previously produced by encode. Malformed
// framing (a length field pointing past the end of buf) is reported as
// kvserr.CodeCorrupt; the framing layer already handles the truncated-tail
// case before decode is ever called.
func decode(buf []byte) (Record, error) {
	if len(buf) < 5 {
		return Record{}, kvserr.New(kvserr.CodeCorrupt, "record shorter than its fixed header")
	}

	kind := Kind(buf[0])
	keyLen := benc.Uint32(buf[1:5])
	if uint64(5+keyLen) > uint64(len(buf)) {
		return Record{}, kvserr.New(kvserr.CodeCorrupt, "record key length exceeds payload")
	}
	key := string(buf[5 : 5+keyLen])

	switch kind {
	case KindRemove:
		return NewRemove(key), nil
	case KindSet:
		off := 5 + keyLen
		if uint64(off+4) > uint64(len(buf)) {
			return Record{}, kvserr.New(kvserr.CodeCorrupt, "record missing value length")
		}
		valLen := benc.Uint32(buf[off : off+4])
		if uint64(off+4+valLen) != uint64(len(buf)) {
			return Record{}, kvserr.New(kvserr.CodeCorrupt, "record value length mismatch")
		}
		value := string(buf[off+4 : off+4+valLen])
		return NewSet(key, value), nil
	default:
		return Record{}, kvserr.New(kvserr.CodeCorrupt, "unknown record tag").WithDetail("tag", byte(kind))
	}
}
