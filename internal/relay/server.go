package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"rchat/internal/domain"
	"rchat/internal/relay/config"
)

// Server accepts TLS connections and forwards opaque frames between
// room participants.
type Server struct {
	log        *zap.Logger
	state      *State
	tlsConf    *tls.Config
	address    string
	maxFrame   uint32
	queueDepth int

	ln     net.Listener
	wg     sync.WaitGroup
	nextID atomic.Uint64
}

// New builds a server from its configuration.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load certificate: %v", domain.ErrHandshakeFailed, err)
	}
	return &Server{
		log:   log,
		state: NewState(cfg.Limits.MaxGroupParticipants),
		tlsConf: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		},
		address:    cfg.Server.Address,
		maxFrame:   cfg.Limits.MaxFrameBytes,
		queueDepth: cfg.Limits.OutboundQueueDepth,
	}, nil
}

// Listen binds the TLS listener. The bound address is available from
// Addr, which matters when the configured port is 0.
func (s *Server) Listen() error {
	ln, err := tls.Listen("tcp", s.address, s.tlsConf)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.address, err)
	}
	s.ln = ln
	s.log.Info("relay listening", zap.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe binds and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for every connection task to finish.
func (s *Server) Serve(ctx context.Context) error {
	ln := s.ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var conns sync.Map
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		c := newConn(s.nextID.Add(1), nc, s)
		conns.Store(c.id, c)
		s.wg.Add(1)
		go func() {
			defer conns.Delete(c.id)
			c.run()
		}()
	}

	// Cancelled: kick every live connection, then drain.
	conns.Range(func(_, v any) bool {
		v.(*conn).shutdown()
		return true
	})
	s.wg.Wait()
	s.log.Info("relay stopped")
	return ctx.Err()
}

// State exposes the registry for tests.
func (s *Server) State() *State { return s.state }
