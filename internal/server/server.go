// Package server implements the sequential TCP front-end: bind, accept
// one connection, serve exactly one request document on it, close,
// repeat. There is no per-connection goroutine; the single-threaded
// concurrency tier is a deliberate part of the design this spec targets,
// not a missing feature.
package server

import (
	"bufio"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvasko/kvs/internal/engine"
	"github.com/mvasko/kvs/internal/protocol"
	"github.com/mvasko/kvs/pkg/kvserr"
)

// Server binds a TCP listener and serves requests against an Engine, one
// connection at a time.
type Server struct {
	addr   string
	engine engine.Engine
	log    *zap.SugaredLogger
}

// New builds a Server. addr is the TCP address to listen on, e.g.
// "127.0.0.1:4000".
func New(addr string, eng engine.Engine, logger *zap.SugaredLogger) *Server {
	return &Server{addr: addr, engine: eng, log: logger}
}

// Run binds addr and serves connections until the listener is closed or
// accept fails.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return kvserr.Wrap(kvserr.CodeIO, err, "listen").WithDetail("addr", s.addr)
	}
	defer ln.Close()

	s.log.Infow("server listening", "addr", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return kvserr.Wrap(kvserr.CodeIO, err, "accept")
		}
		s.handle(conn)
	}
}

// handle serves exactly one request on conn and closes it. Errors are
// logged and never propagate to the caller: a single bad connection must
// not bring the server down.
func (s *Server) handle(conn net.Conn) {
	connID := uuid.NewString()
	defer conn.Close()

	log := s.log.With("conn", connID, "remote", conn.RemoteAddr().String())

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	req, err := protocol.ReadRequest(r)
	if err != nil {
		log.Errorw("failed to read request", "error", err)
		return
	}

	resp := s.dispatch(log, req)

	if err := protocol.WriteResponse(w, resp); err != nil {
		log.Errorw("failed to write response", "error", err)
		return
	}
	if err := w.Flush(); err != nil {
		log.Errorw("failed to flush response", "error", err)
	}
}

func (s *Server) dispatch(log *zap.SugaredLogger, req protocol.Request) protocol.Response {
	switch req.Kind {
	case protocol.ReqGet:
		value, ok, err := s.engine.Get(req.Key)
		if err != nil {
			log.Errorw("get failed", "key", req.Key, "error", err)
			return protocol.ErrResponse(err.Error())
		}
		if !ok {
			log.Infow("get miss", "key", req.Key)
			return protocol.OkAbsent()
		}
		log.Infow("get hit", "key", req.Key)
		return protocol.OkValue(value)

	case protocol.ReqSet:
		if err := s.engine.Set(req.Key, req.Value); err != nil {
			log.Errorw("set failed", "key", req.Key, "error", err)
			return protocol.ErrResponse(err.Error())
		}
		log.Infow("set ok", "key", req.Key)
		return protocol.OkUnit()

	case protocol.ReqRemove:
		if err := s.engine.Remove(req.Key); err != nil {
			log.Infow("remove failed", "key", req.Key, "error", err)
			return protocol.ErrResponse(err.Error())
		}
		log.Infow("remove ok", "key", req.Key)
		return protocol.OkUnit()

	default:
		log.Errorw("unknown request kind", "kind", req.Kind)
		return protocol.ErrResponse("unknown request kind")
	}
}
