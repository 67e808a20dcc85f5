// Package store provides the interface for key-value storage operations and unified error handling.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining Get and Set on opaque string keys and values.
//     Both the in-process store (lib/store/actor) and the network client (rpc/client) implement it,
//     so callers can switch between a local and a remote store without code changes.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     and descriptive messages. Errors with the same code match each other under errors.Is,
//     which lets callers check for conditions like RetCUnavailable on wrapped errors.
//
// Implementations:
//
//	- Actor Store (actor): a single goroutine owns the map and serves commands from a bounded queue.
//	  Handles to it can be cloned and shared by any number of goroutines.
//	  Available in the "github.com/ValentinKolb/lkv/lib/store/actor" package.
//
//	- Line Store (rpc/client): speaks the line protocol to a remote lkv server.
//	  Available in the "github.com/ValentinKolb/lkv/rpc/client" package.
package store
