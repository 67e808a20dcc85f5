// Package service runs the lkv line protocol on a single connection.
//
// A Service owns the input and output buffers and the codec of one connection. Its Serve
// loop reads bytes, decodes every complete request line, executes it against a store.IStore
// and writes the response before the next request is handled, so responses always come back
// in request order. When the peer closes its side, a final line without terminator is still
// served.
//
// The first undecodable line ends the connection without a response. Serve reports why it
// stopped: nil for a clean close by the peer, errors matching codec.ErrProtocol for bad input,
// ErrTransport for read and write failures and store errors for a store that stopped answering.
package service
