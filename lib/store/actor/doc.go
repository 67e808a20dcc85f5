// Package actor implements an in-memory key-value store owned by a single goroutine.
//
// The store state (a plain map) is never shared. Every access goes through a bounded
// command queue (lib/queue) that the owner goroutine drains one command at a time.
// Callers talk to the store through a Handle, which implements store.IStore.
//
// Key Features:
//   - No locks around the data: only the goroutine running Actor.Run touches the map
//   - Backpressure: Set and Get block while the command queue is full
//   - Fire-and-forget writes: Set returns as soon as the command is queued
//   - One-shot replies: every Get carries its own reply channel (capacity 1), so the actor never blocks on a caller
//   - Reference counted handles: Clone adds a reference, Close drops one. When the last
//     reference is dropped the queue is closed, the actor drains what is left and stops.
//
// Lifecycle:
//
//	a, h := actor.New(32)
//	go a.Run(ctx)
//
//	conn := h.Clone() // one per connection
//	defer conn.Close()
//
//	h.Close()  // drop the root reference
//	<-a.Done() // closed once the actor stopped
//
// The actor also stops when the context passed to Run is done. Pending Get calls then fail
// with an error matching store.ErrUnavailable.
package actor
