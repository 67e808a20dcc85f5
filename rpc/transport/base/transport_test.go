package base

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/lkv/rpc/common"
	"github.com/ValentinKolb/lkv/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainConnector is a tcp connector without socket options
type plainConnector struct{}

func (plainConnector) GetName() string { return "test" }

func (plainConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Transport.Endpoint)
}

func (plainConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (plainConnector) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

type plainClientConnector struct{ plainConnector }

func (plainClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// upperHandler answers every line with its upper case version
func upperHandler(_ context.Context, conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if _, err := conn.Write([]byte(strings.ToUpper(line))); err != nil {
			return
		}
	}
}

// startServer serves handler on a loopback port until the test ends
func startServer(t *testing.T, handler transport.ConnHandler) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewBaseServerTransport(plainConnector{})
	srv.RegisterHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, common.DefaultServerConfig()) }()
	t.Cleanup(cancel)

	return ln.Addr().String(), cancel, done
}

func clientConfig(endpoints ...string) common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:              endpoints,
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
		},
	}
}

func TestServeRequiresHandler(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewBaseServerTransport(plainConnector{})
	err = srv.Serve(context.Background(), ln, common.DefaultServerConfig())
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	addr, _, _ := startServer(t, upperHandler)

	client := NewBaseClientTransport(plainClientConnector{})
	require.NoError(t, client.Connect(clientConfig(addr)))
	defer client.Close()

	resp, err := client.RoundTrip(context.Background(), []byte("get key\n"))
	require.NoError(t, err)
	assert.Equal(t, "GET KEY\n", string(resp))
}

func TestConcurrentRoundTrips(t *testing.T) {
	addr, _, _ := startServer(t, upperHandler)

	client := NewBaseClientTransport(plainClientConnector{})
	require.NoError(t, client.Connect(clientConfig(addr)))
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				req := []byte(strings.Repeat("x", i+1) + "\n")
				resp, err := client.RoundTrip(context.Background(), req)
				if assert.NoError(t, err) {
					assert.Equal(t, string(bytes.ToUpper(req)), string(resp))
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectFailsWithoutEndpoints(t *testing.T) {
	client := NewBaseClientTransport(plainClientConnector{})
	assert.Error(t, client.Connect(clientConfig()))

	// nothing listens on this address
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	assert.Error(t, client.Connect(clientConfig(addr)))
}

// TestReconnect checks that a connection dropped by the server is dialed again
func TestReconnect(t *testing.T) {
	var served atomic.Int32
	// answers a single line per connection, then hangs up
	oneShot := func(_ context.Context, conn net.Conn) {
		served.Add(1)
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(strings.ToUpper(line)))
	}
	addr, _, _ := startServer(t, oneShot)

	cfg := clientConfig(addr)
	cfg.Transport.ConnectionsPerEndpoint = 1
	client := NewBaseClientTransport(plainClientConnector{})
	require.NoError(t, client.Connect(cfg))
	defer client.Close()

	for i := 0; i < 3; i++ {
		resp, err := client.RoundTrip(context.Background(), []byte("ping\n"))
		require.NoError(t, err, "round trip %d", i)
		assert.Equal(t, "PING\n", string(resp))
	}
	assert.GreaterOrEqual(t, served.Load(), int32(3))
}

func TestRoundTripContextCancel(t *testing.T) {
	// never answers
	silent := func(ctx context.Context, conn net.Conn) {
		<-ctx.Done()
	}
	addr, _, _ := startServer(t, silent)

	client := NewBaseClientTransport(plainClientConnector{})
	require.NoError(t, client.Connect(clientConfig(addr)))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.RoundTrip(ctx, []byte("ping\n"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// TestCancelAfterRoundTripKeepsConnectionUsable cancels requests while they complete and
// checks that the following request on the same connection is not cut short
func TestCancelAfterRoundTripKeepsConnectionUsable(t *testing.T) {
	addr, _, _ := startServer(t, upperHandler)

	// no client timeout, one connection and no retries, so a stray deadline fails the next request
	cfg := clientConfig(addr)
	cfg.TimeoutSecond = 0
	cfg.Transport.RetryCount = 1
	cfg.Transport.ConnectionsPerEndpoint = 1

	client := NewBaseClientTransport(plainClientConnector{})
	require.NoError(t, client.Connect(cfg))
	defer client.Close()

	for i := 0; i < 300; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go cancel()
		// may fail if the cancel wins
		_, _ = client.RoundTrip(ctx, []byte("ping\n"))
		cancel()

		resp, err := client.RoundTrip(context.Background(), []byte("pong\n"))
		require.NoError(t, err, "round %d", i)
		require.Equal(t, "PONG\n", string(resp))
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	started := make(chan struct{})
	// blocks until the connection is closed or the server stops
	blocking := func(ctx context.Context, conn net.Conn) {
		close(started)
		<-ctx.Done()
	}
	addr, cancel, done := startServer(t, blocking)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	<-started

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// the listener is gone
	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}
