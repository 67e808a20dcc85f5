// Package base provides a foundation for the transport layers of lkv, implementing the
// connection handling independent of the specific network protocol (TCP, Unix sockets).
// It is extended with protocol-specific connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dial, listen and socket options) that allow extending the base transport with
//     different network protocols.
//
//   - serverTransport: accept loop that upgrades every connection and runs the
//     registered handler in a dedicated goroutine. Stopping the context closes the
//     listener and every open connection; Serve then waits until every handler returned.
//
//   - clientTransport: manages multiple connections with round-robin load balancing.
//     A connection carries one request line and its response line at a time. Failed
//     connections are dropped and dialed again on their next use; failed round trips
//     are retried with exponential backoff (50ms start, +-10% jitter).
//
// Thread Safety:
//
//	All public methods are thread-safe. The server creates a dedicated goroutine for
//	each connection, the client serializes round trips per connection with a mutex.
package base
