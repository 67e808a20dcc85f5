// Package server ties the lkv building blocks together: it owns the store actor, accepts
// connections through a transport and runs one connection service per connection.
//
// Key Components:
//
//   - Server: created with NewServer from a common.ServerConfig and a transport. Serve (or
//     ServeListener) starts the store actor and the accept loop. Every connection gets its
//     own clone of the store handle, which is closed again when the connection ends.
//
//   - Connection registry: live connections are tracked by a ULID in an xsync.MapOf.
//     Shutdown stops accepting, closes every live connection, waits for their handlers
//     and finally for the store actor to drain its queue.
//
//   - Rate limiting: an optional token bucket per remote host (RateLimit, RateBurst),
//     shared by all connections of that host. Limiters live in an LRU cache.
//
//   - Metrics: accepted and active connections, connection errors by kind plus the metrics
//     of the store actor, served in Prometheus text format on MetricsEndpoint (/metrics),
//     next to a /healthz endpoint.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Transport.Endpoint = "0.0.0.0:6142"
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// A connection that sends a malformed line is closed without a response, all other
// connections are not affected. Errors of a single connection are logged and never stop
// the server.
package server
