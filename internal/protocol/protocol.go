// Package protocol implements the wire encoding exchanged between
// internal/server and internal/client: one self-delimiting binary
// document per request, one per response, built on the same
// internal/framing length-prefix discipline used for on-disk records.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/mvasko/kvs/internal/framing"
	"github.com/mvasko/kvs/pkg/kvserr"
)

// RequestKind tags the three operations a client may send.
type RequestKind byte

const (
	ReqGet    RequestKind = 0x01
	ReqSet    RequestKind = 0x02
	ReqRemove RequestKind = 0x03
)

// Request is the tagged union of Get{key}, Set{key,value}, Remove{key}.
type Request struct {
	Kind  RequestKind
	Key   string
	Value string
}

func NewGetRequest(key string) Request { return Request{Kind: ReqGet, Key: key} }

func NewSetRequest(key, value string) Request {
	return Request{Kind: ReqSet, Key: key, Value: value}
}

func NewRemoveRequest(key string) Request { return Request{Kind: ReqRemove, Key: key} }

var benc = binary.BigEndian

func encodeRequest(r Request) []byte {
	keyLen := len(r.Key)
	size := 1 + 4 + keyLen
	if r.Kind == ReqSet {
		size += 4 + len(r.Value)
	}
	buf := make([]byte, size)
	buf[0] = byte(r.Kind)
	benc.PutUint32(buf[1:5], uint32(keyLen))
	copy(buf[5:5+keyLen], r.Key)
	if r.Kind == ReqSet {
		off := 5 + keyLen
		benc.PutUint32(buf[off:off+4], uint32(len(r.Value)))
		copy(buf[off+4:], r.Value)
	}
	return buf
}

func decodeRequest(buf []byte) (Request, error) {
	if len(buf) < 5 {
		return Request{}, kvserr.New(kvserr.CodeCorrupt, "request shorter than its fixed header")
	}
	kind := RequestKind(buf[0])
	keyLen := benc.Uint32(buf[1:5])
	if uint64(5+keyLen) > uint64(len(buf)) {
		return Request{}, kvserr.New(kvserr.CodeCorrupt, "request key length exceeds payload")
	}
	key := string(buf[5 : 5+keyLen])

	switch kind {
	case ReqGet:
		return NewGetRequest(key), nil
	case ReqRemove:
		return NewRemoveRequest(key), nil
	case ReqSet:
		off := 5 + keyLen
		if uint64(off+4) > uint64(len(buf)) {
			return Request{}, kvserr.New(kvserr.CodeCorrupt, "set request missing value length")
		}
		valLen := benc.Uint32(buf[off : off+4])
		if uint64(off+4+valLen) != uint64(len(buf)) {
			return Request{}, kvserr.New(kvserr.CodeCorrupt, "set request value length mismatch")
		}
		value := string(buf[off+4 : off+4+valLen])
		return NewSetRequest(key, value), nil
	default:
		return Request{}, kvserr.New(kvserr.CodeCorrupt, "unknown request tag").WithDetail("tag", byte(kind))
	}
}

// WriteRequest frames and writes a Request.
func WriteRequest(w io.Writer, r Request) error {
	_, err := framing.Write(w, encodeRequest(r))
	return err
}

// ReadRequest reads and decodes one Request.
func ReadRequest(r io.Reader) (Request, error) {
	payload, err := framing.Read(r)
	if err != nil {
		return Request{}, err
	}
	return decodeRequest(payload)
}

const (
	statusOk  byte = 0x00
	statusErr byte = 0x01
)

// Response is the tagged Ok/Err result of one Request. HasValue only ever
// carries meaning for a GetResponse: Ok with HasValue=false is "key not
// found" reported as success (spec's get-of-absent-key behavior); Set and
// Remove responses always leave HasValue false on success.
type Response struct {
	Err      string
	HasValue bool
	Value    string
}

// OkUnit builds a successful Set/Remove response.
func OkUnit() Response { return Response{} }

// OkValue builds a successful Get response for a present key.
func OkValue(value string) Response { return Response{HasValue: true, Value: value} }

// OkAbsent builds a successful Get response for an absent key.
func OkAbsent() Response { return Response{} }

// ErrResponse builds a failed response carrying a human-readable message.
func ErrResponse(message string) Response { return Response{Err: message} }

// IsErr reports whether the response represents a failure.
func (r Response) IsErr() bool { return r.Err != "" }

func encodeResponse(r Response) []byte {
	if r.IsErr() {
		msg := []byte(r.Err)
		buf := make([]byte, 1+4+len(msg))
		buf[0] = statusErr
		benc.PutUint32(buf[1:5], uint32(len(msg)))
		copy(buf[5:], msg)
		return buf
	}

	if !r.HasValue {
		return []byte{statusOk, 0x00}
	}
	val := []byte(r.Value)
	buf := make([]byte, 1+1+4+len(val))
	buf[0] = statusOk
	buf[1] = 0x01
	benc.PutUint32(buf[2:6], uint32(len(val)))
	copy(buf[6:], val)
	return buf
}

func decodeResponse(buf []byte) (Response, error) {
	if len(buf) < 1 {
		return Response{}, kvserr.New(kvserr.CodeCorrupt, "empty response")
	}
	switch buf[0] {
	case statusErr:
		if len(buf) < 5 {
			return Response{}, kvserr.New(kvserr.CodeCorrupt, "error response missing message length")
		}
		msgLen := benc.Uint32(buf[1:5])
		if uint64(5+msgLen) != uint64(len(buf)) {
			return Response{}, kvserr.New(kvserr.CodeCorrupt, "error response message length mismatch")
		}
		return ErrResponse(string(buf[5 : 5+msgLen])), nil
	case statusOk:
		if len(buf) < 2 {
			return Response{}, kvserr.New(kvserr.CodeCorrupt, "ok response missing presence flag")
		}
		if buf[1] == 0x00 {
			return OkAbsent(), nil
		}
		if len(buf) < 6 {
			return Response{}, kvserr.New(kvserr.CodeCorrupt, "ok response missing value length")
		}
		valLen := benc.Uint32(buf[2:6])
		if uint64(6+valLen) != uint64(len(buf)) {
			return Response{}, kvserr.New(kvserr.CodeCorrupt, "ok response value length mismatch")
		}
		return OkValue(string(buf[6 : 6+valLen])), nil
	default:
		return Response{}, kvserr.New(kvserr.CodeCorrupt, "unknown response status").WithDetail("status", buf[0])
	}
}

// WriteResponse frames and writes a Response.
func WriteResponse(w io.Writer, r Response) error {
	_, err := framing.Write(w, encodeResponse(r))
	return err
}

// ReadResponse reads and decodes one Response.
func ReadResponse(r io.Reader) (Response, error) {
	payload, err := framing.Read(r)
	if err != nil {
		return Response{}, err
	}
	return decodeResponse(payload)
}
