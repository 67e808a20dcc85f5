package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/ValentinKolb/lkv/lib/store"
	"github.com/ValentinKolb/lkv/lib/store/actor"
	"github.com/ValentinKolb/lkv/rpc/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// readWriter glues a scripted input to a recorded output
type readWriter struct {
	io.Reader
	io.Writer
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// newStore starts an actor that lives as long as the test
func newStore(t *testing.T) *actor.Handle {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a, h := actor.New(32)
	go a.Run(ctx)
	t.Cleanup(func() {
		h.Close()
		cancel()
		<-a.Done()
	})
	return h
}

// serveScript runs a service on the given input and returns the output and the result of Serve
func serveScript(t *testing.T, s store.IStore, input io.Reader, config Config) (string, error) {
	t.Helper()
	var out bytes.Buffer
	svc := New(readWriter{Reader: input, Writer: &out}, s, config)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := svc.Serve(ctx)
	return out.String(), err
}

func TestGetMissingKey(t *testing.T) {
	out, err := serveScript(t, newStore(t), strings.NewReader("GET foo\n"), Config{})
	require.NoError(t, err)
	assert.Equal(t, "FAIL foo\n", out)
}

func TestSetThenGet(t *testing.T) {
	out, err := serveScript(t, newStore(t), strings.NewReader("SET foo bar\nGET foo\n"), Config{})
	require.NoError(t, err)
	assert.Equal(t, "OKAY foo\nOKAY foo bar\n", out)
}

func TestPipelinedRequestsAnsweredInOrder(t *testing.T) {
	input := "SET a 1\nSET a 2\nGET a\nGET b\nSET b x\r\nGET b\n"
	want := "OKAY a\nOKAY a\nOKAY a 2\nFAIL b\nOKAY b\nOKAY b x\n"

	out, err := serveScript(t, newStore(t), strings.NewReader(input), Config{})
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

// TestByteWiseInput delivers the input one byte per read, every line is assembled from fragments
func TestByteWiseInput(t *testing.T) {
	input := iotest.OneByteReader(strings.NewReader("SET key value\nGET key\nGET other\n"))

	out, err := serveScript(t, newStore(t), input, Config{ReadBufferSize: 3})
	require.NoError(t, err)
	assert.Equal(t, "OKAY key\nOKAY key value\nFAIL other\n", out)
}

func TestFinalLineWithoutTerminator(t *testing.T) {
	out, err := serveScript(t, newStore(t), strings.NewReader("SET a 1\nGET a"), Config{})
	require.NoError(t, err)
	assert.Equal(t, "OKAY a\nOKAY a 1\n", out)
}

func TestEmptyConnection(t *testing.T) {
	out, err := serveScript(t, newStore(t), strings.NewReader(""), Config{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBadCommandEndsConnection(t *testing.T) {
	h := newStore(t)

	out, err := serveScript(t, h, strings.NewReader("SET a 1\nBADCMD x\nSET a 2\n"), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrUnknownCommand)
	assert.ErrorIs(t, err, codec.ErrProtocol)
	assert.Equal(t, "OKAY a\n", out, "nothing is answered for and after the bad line")

	// the line after the bad one was never executed
	v, ok, err := h.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestMalformedRequests(t *testing.T) {
	for _, in := range []string{"GET\n", "SET\n", "SET key\n", "GET a b\n", "\n"} {
		out, err := serveScript(t, newStore(t), strings.NewReader(in), Config{})
		assert.ErrorIs(t, err, codec.ErrMalformedRequest, "input %q", in)
		assert.Empty(t, out, "input %q", in)
	}
}

func TestLineTooLong(t *testing.T) {
	in := "SET k " + strings.Repeat("v", 100) + "\n"
	out, err := serveScript(t, newStore(t), strings.NewReader(in), Config{MaxLineLength: 16})
	assert.ErrorIs(t, err, codec.ErrLineTooLong)
	assert.Empty(t, out)
}

func TestStoreUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, h := actor.New(4)
	defer h.Close()
	go a.Run(ctx)
	cancel()
	<-a.Done()

	out, err := serveScript(t, h, strings.NewReader("GET a\n"), Config{})
	assert.True(t, store.IsUnavailable(err), "expected unavailable store, got %v", err)
	assert.Empty(t, out)
}

func TestWriteFailure(t *testing.T) {
	svc := New(readWriter{Reader: strings.NewReader("GET a\n"), Writer: failingWriter{}}, newStore(t), Config{})
	err := svc.Serve(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestReadFailure(t *testing.T) {
	input := io.MultiReader(strings.NewReader("SET a 1\n"), iotest.ErrReader(errors.New("connection reset")))
	out, err := serveScript(t, newStore(t), input, Config{})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "OKAY a\n", out)
}

func TestReadDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	svc := New(server, newStore(t), Config{Timeout: 30 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the read deadline")
	}
}

// TestConversation talks to a service over an in-memory connection like a real client would
func TestConversation(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	svc := New(server, newStore(t), Config{Timeout: time.Second})
	done := make(chan error, 1)
	go func() {
		defer server.Close()
		done <- svc.Serve(context.Background())
	}()

	r := bufio.NewReader(client)
	roundTrip := func(line string) string {
		_, err := client.Write([]byte(line))
		require.NoError(t, err)
		resp, err := r.ReadString('\n')
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, "FAIL k\n", roundTrip("GET k\n"))
	assert.Equal(t, "OKAY k\n", roundTrip("SET k v1\n"))
	assert.Equal(t, "OKAY k v1\n", roundTrip("GET k\n"))
	assert.Equal(t, "OKAY k\n", roundTrip("SET k v2\n"))
	assert.Equal(t, "OKAY k v2\n", roundTrip("GET k\n"))

	// a bad line closes the connection without an answer
	_, err := client.Write([]byte("NOPE\n"))
	require.NoError(t, err)
	_, err = r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, codec.ErrProtocol)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestRateLimit(t *testing.T) {
	// one token, refilled once an hour: the second request has to wait longer than the context allows
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)

	var out bytes.Buffer
	svc := New(readWriter{Reader: strings.NewReader("SET a 1\nGET a\n"), Writer: &out}, newStore(t), Config{Limiter: limiter})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := svc.Serve(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, "OKAY a\n", out.String())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	svc := New(readWriter{Reader: strings.NewReader("GET a\n"), Writer: &out}, newStore(t), Config{})
	assert.ErrorIs(t, svc.Serve(ctx), context.Canceled)
	assert.Empty(t, out.String())
}
