// Package transport defines the interfaces of the network layer of lkv.
// It provides a common contract for all transport implementations (tcp and unix sockets),
// so the server and the client don't depend on a specific network protocol.
//
// Key Components:
//
//   - IServerTransport: accepts connections and hands each one to a ConnHandler in its
//     own goroutine. What is spoken on the connection is up to the handler.
//
//   - IClientTransport: manages a pool of connections to one or more endpoints and
//     performs line based request/response round trips on them.
//
//   - ConnHandler: Function type for connection handling callbacks.
package transport
