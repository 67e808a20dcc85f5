package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/lkv/lib/store"
	"github.com/ValentinKolb/lkv/rpc/codec"
	"github.com/ValentinKolb/lkv/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/time/rate"
)

// Logger for the connection service
var Logger = logger.GetLogger("service")

// ErrTransport wraps every read or write failure of the underlying connection.
var ErrTransport = errors.New("transport error")

// Config holds the per connection settings of a Service.
type Config struct {
	// ReadBufferSize is the size of a single read from the connection
	ReadBufferSize int
	// MaxLineLength is the longest accepted request line
	MaxLineLength int
	// Timeout is the read and write deadline per operation (only for connections that support deadlines), 0 disables it
	Timeout time.Duration
	// Limiter throttles the requests of this connection, nil disables rate limiting
	Limiter *rate.Limiter
}

// deadliner is implemented by net.Conn and net.Pipe
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, common.DefaultBufferSize)
		return &b
	},
}

// Service runs the request/response loop for one connection: it decodes request lines,
// executes them against the store and writes one response line per request, in order.
type Service struct {
	conn   io.ReadWriter
	store  store.IStore
	codec  *codec.Codec
	config Config

	in  bytes.Buffer
	out bytes.Buffer
}

// New creates a service for conn that executes requests against s.
func New(conn io.ReadWriter, s store.IStore, config Config) *Service {
	if config.ReadBufferSize < 1 {
		config.ReadBufferSize = common.DefaultBufferSize
	}
	return &Service{
		conn:   conn,
		store:  s,
		codec:  codec.New(config.MaxLineLength),
		config: config,
	}
}

// Serve processes requests until the peer closes the connection (nil) or an error occurs.
//
// A line that can't be decoded ends the connection without a response, the returned error
// then matches codec.ErrProtocol. Read and write failures match ErrTransport, store failures
// are returned as they come from the store. Serve never closes conn.
func (s *Service) Serve(ctx context.Context) error {
	chunk := s.readBuffer()
	defer s.releaseReadBuffer(chunk)

	eof := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req *common.Request
		var err error
		if eof {
			req, err = s.codec.DecodeEOF(&s.in)
		} else {
			req, err = s.codec.Decode(&s.in)
		}
		if err != nil {
			return fmt.Errorf("decode request: %w", err)
		}

		if req == nil {
			if eof {
				return nil
			}
			if eof, err = s.fill(*chunk); err != nil {
				return err
			}
			continue
		}

		if err := s.handle(ctx, req); err != nil {
			return err
		}
	}
}

// fill reads once from the connection into the input buffer.
// It reports true once the peer closed its side.
func (s *Service) fill(chunk []byte) (bool, error) {
	if d, ok := s.conn.(deadliner); ok && s.config.Timeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(s.config.Timeout)); err != nil {
			return false, fmt.Errorf("%w: set read deadline: %w", ErrTransport, err)
		}
	}

	n, err := s.conn.Read(chunk)
	if n > 0 {
		s.in.Write(chunk[:n])
	}
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	return false, nil
}

// handle executes one request and writes its response.
func (s *Service) handle(ctx context.Context, req *common.Request) error {
	if s.config.Limiter != nil {
		if err := s.config.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := s.process(ctx, req)
	if err != nil {
		return err
	}
	Logger.Debugf("Processed %s took %s", req, time.Since(start))

	s.codec.Encode(resp, &s.out)
	return s.flush()
}

// process maps a request to the matching store operation
func (s *Service) process(ctx context.Context, req *common.Request) (*common.Response, error) {
	switch req.Type {
	case common.ReqGet:
		value, found, err := s.store.Get(ctx, req.Key)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", req.Key, err)
		}
		return common.NewGetResponse(req.Key, value, found), nil
	case common.ReqSet:
		if err := s.store.Set(ctx, req.Key, req.Value); err != nil {
			return nil, fmt.Errorf("set %q: %w", req.Key, err)
		}
		return common.NewSetResponse(req.Key), nil
	default:
		return nil, fmt.Errorf("%w: unsupported request type %s", codec.ErrProtocol, req.Type)
	}
}

// flush writes the pending output to the connection.
func (s *Service) flush() error {
	defer s.out.Reset()

	if d, ok := s.conn.(deadliner); ok && s.config.Timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(s.config.Timeout)); err != nil {
			return fmt.Errorf("%w: set write deadline: %w", ErrTransport, err)
		}
	}

	if _, err := s.conn.Write(s.out.Bytes()); err != nil {
		return fmt.Errorf("%w: write: %w", ErrTransport, err)
	}
	return nil
}

func (s *Service) readBuffer() *[]byte {
	if s.config.ReadBufferSize == common.DefaultBufferSize {
		return bufferPool.Get().(*[]byte)
	}
	b := make([]byte, s.config.ReadBufferSize)
	return &b
}

func (s *Service) releaseReadBuffer(b *[]byte) {
	if len(*b) == common.DefaultBufferSize {
		bufferPool.Put(b)
	}
}
