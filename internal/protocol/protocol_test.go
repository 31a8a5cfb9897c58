package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		NewGetRequest("a"),
		NewSetRequest("a", "1"),
		NewSetRequest("empty", ""),
		NewRemoveRequest("a"),
	}
	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, want))
		got, err := ReadRequest(&buf)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		OkUnit(),
		OkValue("world"),
		OkAbsent(),
		ErrResponse("Key not found"),
	}
	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteResponse(&buf, want))
		got, err := ReadResponse(&buf)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestResponseIsErr(t *testing.T) {
	require.False(t, OkUnit().IsErr())
	require.False(t, OkValue("x").IsErr())
	require.True(t, ErrResponse("boom").IsErr())
}

func TestMultipleMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, NewSetRequest("a", "1")))
	require.NoError(t, WriteRequest(&buf, NewGetRequest("a")))

	r1, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, NewSetRequest("a", "1"), r1)

	r2, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, NewGetRequest("a"), r2)
}
