// Package framing implements the single length-delimited self-describing
// document shape shared by log records (internal/log) and wire protocol
// messages (internal/protocol): every document begins with a fixed-width
// header holding its payload length, so a reader positioned at a document boundary can decode
// the next one without external framing information.
//
// This is the literal answer to the spec's open question on framing: one
// length-delimited shape everywhere, no trailing delimiter.
package framing

import (
	"encoding/binary"
	"io"

	"github.com/mvasko/kvs/pkg/kvserr"
)

// lenWidth is the width, in bytes, of the length prefix.
const lenWidth = 8

var enc = binary.BigEndian

// ErrTruncated is returned when the reader is exhausted before a full
// document (or even its length prefix) could be read. Callers treat this
// as "no more documents", not as corruption.
var ErrTruncated = io.ErrUnexpectedEOF

// Write encodes payload as a length-prefixed document and writes it to w,
// returning the total number of bytes written (prefix + payload).
func Write(w io.Writer, payload []byte) (int, error) {
	var header [lenWidth]byte
	enc.PutUint64(header[:], uint64(len(payload)))

	n, err := w.Write(header[:])
	if err != nil {
		return n, kvserr.Wrap(kvserr.CodeIO, err, "write frame header")
	}
	m, err := w.Write(payload)
	n += m
	if err != nil {
		return n, kvserr.Wrap(kvserr.CodeIO, err, "write frame payload")
	}
	return n, nil
}

// Read decodes the next length-prefixed document from r. A reader
// exhausted exactly at a document boundary (before any byte of the next
// header) returns io.EOF. A reader exhausted partway through a header or
// payload returns ErrTruncated — the caller's contract for "truncated
// tail", not a hard corruption error.
func Read(r io.Reader) ([]byte, error) {
	var header [lenWidth]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}

	size := enc.Uint64(header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrTruncated
	}
	return payload, nil
}

// ReadAt decodes exactly one length-prefixed document whose header starts
// at byte offset off in ra, returning the document's payload and its total
// encoded length (header + payload).
func ReadAt(ra io.ReaderAt, off int64) (payload []byte, encodedLen uint64, err error) {
	var header [lenWidth]byte
	if _, err := ra.ReadAt(header[:], off); err != nil {
		return nil, 0, kvserr.Wrap(kvserr.CodeIO, err, "read frame header")
	}

	size := enc.Uint64(header[:])
	payload = make([]byte, size)
	if size > 0 {
		if _, err := ra.ReadAt(payload, off+lenWidth); err != nil {
			return nil, 0, kvserr.Wrap(kvserr.CodeIO, err, "read frame payload")
		}
	}
	return payload, lenWidth + size, nil
}

// HeaderWidth returns the fixed width of the length prefix, for callers
// that need to compute record boundaries without decoding.
func HeaderWidth() uint64 {
	return lenWidth
}
