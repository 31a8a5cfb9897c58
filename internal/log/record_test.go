package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvasko/kvs/internal/framing"
)

func TestRecordRoundTrip(t *testing.T) {
	cases := []Record{
		NewSet("a", "1"),
		NewSet("key", ""),
		NewRemove("a"),
	}

	for _, want := range cases {
		payload := encode(want)
		got, err := decode(payload)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRecordDecodeCorrupt(t *testing.T) {
	_, err := decode([]byte{0x01, 0x00})
	require.Error(t, err)

	// valid tag and key, but the value is one byte shorter than its length field.
	buf := encode(NewSet("hello", "world"))
	_, err = decode(buf[:len(buf)-1])
	require.Error(t, err)

	_, err = decode([]byte{0x09, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestFramingTruncatedTail(t *testing.T) {
	payload := encode(NewSet("a", "1"))
	var buf bytes.Buffer
	_, err := framing.Write(&buf, payload)
	require.NoError(t, err)

	full := buf.Bytes()
	// Simulate a crash mid-write: drop the last few bytes of the frame.
	truncated := bytes.NewReader(full[:len(full)-2])

	_, err = framing.Read(truncated)
	require.ErrorIs(t, err, framing.ErrTruncated)
}
