// Package client implements the TCP client side of internal/protocol: one
// connection per operation, matching spec.md §4.8.
package client

import (
	"bufio"
	"net"

	"github.com/mvasko/kvs/internal/protocol"
	"github.com/mvasko/kvs/pkg/kvserr"
)

// Client issues single-shot Get/Set/Remove operations against a server
// address, opening and closing a fresh TCP connection for each one.
type Client struct {
	addr string
}

// New builds a Client targeting addr, e.g. "127.0.0.1:4000".
func New(addr string) *Client {
	return &Client{addr: addr}
}

// Get fetches key's value. ok is false when the key is absent; this is
// not reported as an error.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.roundTrip(protocol.NewGetRequest(key))
	if err != nil {
		return "", false, err
	}
	if resp.IsErr() {
		return "", false, kvserr.New(kvserr.CodeRemote, resp.Err)
	}
	return resp.Value, resp.HasValue, nil
}

// Set stores key=value.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.NewSetRequest(key, value))
	if err != nil {
		return err
	}
	if resp.IsErr() {
		return kvserr.New(kvserr.CodeRemote, resp.Err)
	}
	return nil
}

// Remove deletes key. It fails if key is absent.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.NewRemoveRequest(key))
	if err != nil {
		return err
	}
	if resp.IsErr() {
		return kvserr.New(kvserr.CodeRemote, resp.Err)
	}
	return nil
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return protocol.Response{}, kvserr.Wrap(kvserr.CodeIO, err, "dial").WithDetail("addr", c.addr)
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := protocol.WriteRequest(w, req); err != nil {
		return protocol.Response{}, err
	}
	if err := w.Flush(); err != nil {
		return protocol.Response{}, kvserr.Wrap(kvserr.CodeIO, err, "flush request")
	}

	resp, err := protocol.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return protocol.Response{}, err
	}
	return resp, nil
}
