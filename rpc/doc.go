// Package rpc contains the network side of lkv: the line protocol, the per connection
// service, transports, the server and the client.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across lkv, including the request
//     and response types, configuration structures, and logging.
//
//   - codec: Encoding and decoding of the line protocol (GET <key>, SET <key> <value>,
//     OKAY/FAIL responses).
//
//   - service: The request/response loop of a single connection.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets).
//
//   - server: Owns the store actor and runs a service for every accepted connection.
//
//   - client: A store.IStore implementation that talks to a remote lkv server.
package rpc
