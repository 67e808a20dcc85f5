// Package cmd implements the command-line interface of lkv. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the lkv server
//   - kv: Client commands for key-value operations (get, set) and a benchmark (perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as an environment variable with the prefix LKV_
// (e.g. --log-level becomes LKV_LOG_LEVEL). .env and .env.local files in the working
// directory are loaded first.
//
// See lkv -help for a list of all commands.
package cmd
