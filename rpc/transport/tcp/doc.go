// Package tcp implements the TCP socket transport of lkv. It provides the TCP specific
// connectors for the base package: dialing and listening on host:port endpoints and
// applying the socket options of common.TCPConf and common.SocketConf (no delay,
// keep-alive, linger and buffer sizes) to every connection.
//
// See the base package documentation for the connection handling itself.
package tcp
