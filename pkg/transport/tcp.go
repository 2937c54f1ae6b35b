package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// TCPServer accepts guest connections for one instance. Every connection
// sees all modem output; lines from any of them reach the same modem.
type TCPServer struct {
	addr     string
	instance int
	ep       Endpoint
	log      *logger.Logger
	listener net.Listener
	// started is closed once the listener is bound
	started chan struct{}
	conns   sync.WaitGroup
}

// NewTCPServer serves ep on host:port.
func NewTCPServer(host string, port, instance int, ep Endpoint, log *logger.Logger) *TCPServer {
	return &TCPServer{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		instance: instance,
		ep:       ep,
		log:      log.WithComponent(fmt.Sprintf("transport.tcp.%d", instance)),
		started:  make(chan struct{}),
	}
}

// Start listens and serves connections until ctx is done.
func (s *TCPServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	close(s.started)

	s.log.Info("AT transport listening", logger.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.conns.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *TCPServer) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Info("Guest connected", logger.String("remote", remote))
	if err := Serve(ctx, s.ep, conn, s.log); err != nil {
		s.log.Warn("Guest connection failed", logger.String("remote", remote), logger.Error(err))
	}
	s.log.Info("Guest disconnected", logger.String("remote", remote))
}

// WaitStarted blocks until the listener is bound or the context is canceled.
func (s *TCPServer) WaitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address. It should be called after WaitStarted.
func (s *TCPServer) Addr() (net.Addr, error) {
	if s.listener == nil {
		return nil, fmt.Errorf("server not started")
	}
	return s.listener.Addr(), nil
}
