package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/lkv/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandler is called by a server transport for every accepted connection, each call in its own goroutine.
// The transport closes the connection once the handler returned.
// ctx is done when the transport stops accepting connections.
type ConnHandler func(ctx context.Context, conn net.Conn)

// IServerTransport is the interface for the server side of a transport (tcp, unix)
type IServerTransport interface {
	// RegisterHandler registers the handler for accepted connections. It must be called before Listen or Serve.
	RegisterHandler(handler ConnHandler)
	// Listen creates a listener for config.Transport.Endpoint and serves it (see Serve).
	Listen(ctx context.Context, config common.ServerConfig) error
	// Serve accepts connections on listener until ctx is done or the listener fails.
	// It closes the listener and returns only after all handlers returned.
	// A listener closed because ctx is done is not an error.
	Serve(ctx context.Context, listener net.Listener, config common.ServerConfig) error
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the interface for the client side of a transport
type IClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// RoundTrip writes one request line and returns the next response line (including its terminator).
	// Concurrent calls are spread over the open connections, each connection serves one call at a time.
	RoundTrip(ctx context.Context, req []byte) (resp []byte, err error)
	// Close closes all connections
	Close() error
}
