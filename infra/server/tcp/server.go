/*
Package tcp runs the framed-protocol listener. The server owns nothing
but the accept loop; each accepted socket is handed to the protocol
handler on its own goroutine. Stopping closes the listener and waits for
sessions to drain, bounded by the caller's context.
*/
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	tcphandler "github.com/chatfabric/chat-node/internal/handler/tcp"
)

type Server struct {
	logger  *slog.Logger
	handler *tcphandler.Handler
	addr    string

	mu       sync.Mutex
	listener net.Listener

	wg sync.WaitGroup
}

func New(addr string, handler *tcphandler.Handler, logger *slog.Logger) *Server {
	return &Server{
		logger:  logger,
		handler: handler,
		addr:    addr,
	}
}

// Start binds the listen socket and launches the accept loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("LISTENER_UP", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr reports the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Closed by Stop.
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("ACCEPT_FAILED", "err", err)
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler.HandleConnection(context.Background(), conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight sessions. Sessions
// end when the registry shutdown closes their sockets, so the wait here
// normally returns immediately; ctx bounds it either way.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil {
		return fmt.Errorf("tcpserver: close listener: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("LISTENER_DOWN")
	case <-ctx.Done():
		s.logger.Warn("LISTENER_DRAIN_TIMEOUT")
	}
	return nil
}
