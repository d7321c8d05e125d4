package mockmc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/helpers"

	"github.com/couchbase/gocbcore/v9/memd"
)

// cmdQuit has no named constant in memd.
const cmdQuit = memd.CmdCode(0x07)

// Server is a running fake cache server.
type Server struct {
	config    serverConfig
	store     *store
	listener  net.Listener
	logger    framework.Logger
	conns     map[net.Conn]struct{}
	connsLock sync.Mutex
	requests  int64
	closing   atomic.Bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Start listens on addr, which may use port 0 to pick a free port, and serves connections until
// Close is called.
func Start(addr string, options ...ServerOption) (*Server, error) {
	var config serverConfig
	if err := helpers.ApplyOptions[serverConfig, ServerOption](&config, options...); err != nil {
		return nil, err
	}
	if config.logger == nil {
		config.logger = framework.NullLogger()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fake server could not listen on %s: %w", addr, err)
	}
	s := &Server{
		config:   config,
		store:    newStore(config),
		listener: listener,
		logger:   config.logger,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Address returns the host:port the server is listening on.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Requests returns the number of requests handled so far.
func (s *Server) Requests() int {
	return int(atomic.LoadInt64(&s.requests))
}

// Keys returns the number of keys currently stored.
func (s *Server) Keys() int {
	return s.store.len()
}

// Close stops listening, closes every open connection and waits for their goroutines to exit.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		err = s.listener.Close()
		s.connsLock.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.connsLock.Unlock()
		s.wg.Wait()
	})
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closing.Load() {
				s.logger.Printf("fake server stopped accepting: %s", err)
			}
			return
		}
		if s.config.refuseConnections {
			_ = conn.Close()
			continue
		}
		s.connsLock.Lock()
		if s.closing.Load() {
			s.connsLock.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.connsLock.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
			s.connsLock.Lock()
			delete(s.conns, conn)
			s.connsLock.Unlock()
			_ = conn.Close()
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	mc := memd.NewConn(conn)
	for {
		req, _, err := mc.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closing.Load() {
				s.logger.Printf("fake server read error from %s: %s", conn.RemoteAddr(), err)
			}
			return
		}
		atomic.AddInt64(&s.requests, 1)
		if s.config.latency > 0 {
			time.Sleep(s.config.latency)
		}
		resp, keepOpen := s.handle(req)
		if err := mc.WritePacket(resp); err != nil {
			s.logger.Printf("fake server write error to %s: %s", conn.RemoteAddr(), err)
			return
		}
		if !keepOpen {
			return
		}
	}
}

func response(req *memd.Packet, status memd.StatusCode) *memd.Packet {
	return &memd.Packet{
		Magic:   memd.CmdMagicRes,
		Command: req.Command,
		Opaque:  req.Opaque,
		Status:  status,
	}
}

func errorResponse(req *memd.Packet, status memd.StatusCode, message string) *memd.Packet {
	resp := response(req, status)
	resp.Value = []byte(message)
	return resp
}

// handle applies one request. The second return value is false when the connection should be
// closed after the response is sent.
func (s *Server) handle(req *memd.Packet) (*memd.Packet, bool) {
	if req.Magic != memd.CmdMagicReq {
		return errorResponse(req, memd.StatusInvalidArgs, "Bad parameters"), false
	}
	switch req.Command {
	case memd.CmdGet:
		it, ok := s.store.get(string(req.Key))
		if !ok {
			return errorResponse(req, memd.StatusKeyNotFound, "Not found"), true
		}
		resp := response(req, memd.StatusSuccess)
		resp.Extras = make([]byte, 4)
		binary.BigEndian.PutUint32(resp.Extras, it.flags)
		resp.Value = it.value
		resp.Cas = it.cas
		return resp, true

	case memd.CmdSet:
		if len(req.Extras) != 8 || len(req.Key) == 0 {
			return errorResponse(req, memd.StatusInvalidArgs, "Bad parameters"), true
		}
		flags := binary.BigEndian.Uint32(req.Extras[0:4])
		if !s.store.set(string(req.Key), req.Value, flags, req.Cas) {
			return errorResponse(req, memd.StatusKeyExists, "Entry exists for key"), true
		}
		resp := response(req, memd.StatusSuccess)
		resp.Cas = req.Cas
		return resp, true

	case memd.CmdDelete:
		if len(req.Key) == 0 {
			return errorResponse(req, memd.StatusInvalidArgs, "Bad parameters"), true
		}
		if !s.store.remove(string(req.Key), req.Cas) {
			return errorResponse(req, memd.StatusKeyExists, "Entry exists for key"), true
		}
		return response(req, memd.StatusSuccess), true

	case memd.CmdSASLListMechs:
		resp := response(req, memd.StatusSuccess)
		resp.Value = []byte("PLAIN")
		return resp, true

	case memd.CmdSASLAuth:
		resp := response(req, memd.StatusSuccess)
		resp.Value = []byte("Authenticated")
		return resp, true

	case cmdQuit:
		return response(req, memd.StatusSuccess), false

	default:
		return errorResponse(req, memd.StatusUnknownCommand, "Unsupported command"), true
	}
}
