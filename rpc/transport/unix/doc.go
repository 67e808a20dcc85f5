// Package unix implements the Unix domain socket transport of lkv, for clients running
// on the same machine as the server.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. A stale socket file at the
//     endpoint path is removed first; any other kind of file makes Listen fail.
//
// Both apply the buffer sizes of common.SocketConf, the TCP options are ignored.
package unix
