// Package client implements the client side of the lkv line protocol.
//
// Key Components:
//
//   - LineStore: implements store.IStore on top of a transport.IClientTransport. Every
//     Get and Set is one request line and one response line. Keys and values are checked
//     before sending, a key or value that can't be sent as a single field fails with
//     store.RetCInvalidOperation without touching the connection.
//
// Errors:
//
//   - RetCInvalidOperation: the request can't be encoded (empty, whitespace, too long)
//   - RetCUnavailable: the server could not be reached after all retries
//   - RetCInternalError: the server answered with something that doesn't match the request
//   - the error of ctx if it is done
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:6142"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 2,
//	  },
//	}
//
//	s, err := client.NewLineStore(config, tcp.NewTCPClientTransport())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	_ = s.Set(ctx, "mykey", "myvalue")
//	value, found, _ := s.Get(ctx, "mykey")
//
// Performance Considerations:
//
//   - The protocol has no request ids, a connection carries one request at a time. Raise
//     ConnectionsPerEndpoint to run more requests in parallel.
//
// Thread Safety:
//
//	LineStore is safe for concurrent use by multiple goroutines.
package client
