// Package common provides core data structures and utilities shared by the
// lkv server, client and CLI.
//
// The package focuses on:
//   - Request and response types of the line protocol
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger interface
//
// Key Components:
//
//   - Request / Response: the decoded form of a protocol line. A Response always
//     answers exactly one Request and echoes its key. Its Status (OKAY or FAIL) is
//     derived: only a Get for a missing key fails.
//
//   - RequestType: enumeration of the supported operations (GET and SET) with
//     their wire keyword and field count.
//
//   - ServerConfig: configuration of the server (endpoint, socket options, queue size,
//     timeouts, rate limit, metrics and logging).
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: a zap backed implementation of Dragonboat's logger.ILogger. Packages keep
//     calling logger.GetLogger(name), InitLoggers swaps in the zap output (console or
//     json, stdout or a rotating file via lumberjack).
package common
