package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/lkv/lib/store"
	"github.com/ValentinKolb/lkv/lib/store/actor"
	"github.com/ValentinKolb/lkv/rpc/codec"
	"github.com/ValentinKolb/lkv/rpc/common"
	"github.com/ValentinKolb/lkv/rpc/service"
	"github.com/ValentinKolb/lkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// connection is a live client connection of the server
type connection struct {
	conn     net.Conn
	peer     string
	accepted time.Time
}

// Server accepts connections with the given transport and serves the line protocol
// on every connection against one shared store actor.
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport

	actor  *actor.Actor
	handle *actor.Handle

	conns    *xsync.MapOf[string, connection]
	limiters *hostRateLimiter // nil if rate limiting is disabled
	metrics  *serverMetrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewServer creates a new server with an empty store.
//
// Usage:
//
//	s := server.NewServer(
//		config,
//		tcp.NewTCPServerTransport(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, t transport.IServerTransport) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	a, h := actor.New(config.QueueSize)

	s := &Server{
		config:    config,
		transport: t,
		actor:     a,
		handle:    h,
		conns:     xsync.NewMapOf[string, connection](),
		done:      make(chan struct{}),
	}
	if config.RateLimit > 0 {
		s.limiters = newHostRateLimiter(config.RateLimit, config.RateBurst)
	}
	s.metrics = newServerMetrics(s.conns.Size)

	Logger.Infof("Created lkv server")
	Logger.Infof(config.String())

	return s
}

// Serve starts the store actor and listens on the configured endpoint until ctx is done
// or Shutdown is called. A server can only be started once.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, nil)
}

// ServeListener is like Serve but accepts connections from an existing listener.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	return s.serve(ctx, listener)
}

// Shutdown stops accepting, closes all live connections and waits until the store actor
// drained its queue, or until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	if !started {
		s.handle.Close()
		return nil
	}

	cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the server stopped completely.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Connections returns the number of live connections.
func (s *Server) Connections() int {
	return s.conns.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer close(s.done)
	defer cancel()

	// the actor is not bound to ctx, it stops once every handle is closed
	go s.actor.Run(context.Background())

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics(ctx)
	}

	stop := context.AfterFunc(ctx, s.closeConnections)
	defer stop()

	s.transport.RegisterHandler(s.handleConnection)

	var err error
	if listener != nil {
		err = s.transport.Serve(ctx, listener, s.config)
	} else {
		err = s.transport.Listen(ctx, s.config)
	}
	if err != nil {
		Logger.Errorf("%s transport stopped: %v", s.transport.GetName(), err)
	}

	// every connection handler returned, so this is the last open handle
	s.handle.Close()
	<-s.actor.Done()
	Logger.Infof("Server stopped, store held %d keys", s.actor.Len())

	return err
}

// handleConnection serves a single connection. It is called by the transport in its own goroutine.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	id := ulid.Make().String()
	c := connection{
		conn:     conn,
		peer:     peerName(conn),
		accepted: time.Now(),
	}

	s.conns.Store(id, c)
	defer s.conns.Delete(id)
	s.metrics.accepted.Inc()

	h := s.handle.Clone()
	defer h.Close()

	Logger.Debugf("Accepted connection %s from %s", id, c.peer)

	svc := service.New(conn, h, service.Config{
		ReadBufferSize: s.config.Transport.ReadBufferSize,
		MaxLineLength:  s.config.MaxLineLength,
		Timeout:        s.config.Timeout(),
		Limiter:        s.limiters.get(hostOf(conn)),
	})
	err := svc.Serve(ctx)

	s.metrics.duration.UpdateDuration(c.accepted)
	s.logResult(ctx, id, c.peer, err)
}

// logResult logs how a connection ended and counts the failures by kind
func (s *Server) logResult(ctx context.Context, id, peer string, err error) {
	var netErr net.Error

	switch {
	case err == nil:
		Logger.Infof("Bye %s (%s)", peer, id)
	case ctx.Err() != nil:
		Logger.Debugf("Closed connection %s from %s: server shutting down", id, peer)
	case errors.Is(err, codec.ErrProtocol):
		s.metrics.protocolErrors.Inc()
		Logger.Warningf("Oops from %s (%s): %v", peer, id, err)
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		s.metrics.timeouts.Inc()
		Logger.Infof("Closed idle connection %s from %s", id, peer)
	case errors.Is(err, service.ErrTransport):
		s.metrics.transportErrors.Inc()
		Logger.Warningf("Oops from %s (%s): %v", peer, id, err)
	case store.IsUnavailable(err):
		s.metrics.storeErrors.Inc()
		Logger.Errorf("Oops from %s (%s): %v", peer, id, err)
	default:
		s.metrics.otherErrors.Inc()
		Logger.Errorf("Oops from %s (%s): %v", peer, id, err)
	}
}

// closeConnections closes every live connection, their handlers then return with a read error
func (s *Server) closeConnections() {
	if n := s.conns.Size(); n > 0 {
		Logger.Infof("Closing %d live connections", n)
	}
	s.conns.Range(func(id string, c connection) bool {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			Logger.Debugf("Failed to close connection %s from %s: %v", id, c.peer, err)
		}
		return true
	})
}

// peerName returns a printable name of the remote side
func peerName(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		if name := addr.String(); name != "" && name != "<nil>" {
			return name
		}
	}
	// unix socket peers have no address
	return "@local"
}

// hostOf returns the remote host without port, all unix socket peers share one host
func hostOf(conn net.Conn) string {
	peer := peerName(conn)
	if host, _, err := net.SplitHostPort(peer); err == nil {
		return host
	}
	return peer
}
