package client

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ValentinKolb/lkv/lib/store"
	"github.com/ValentinKolb/lkv/rpc/codec"
	"github.com/ValentinKolb/lkv/rpc/common"
	"github.com/ValentinKolb/lkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// LineStore is a store.IStore that forwards every operation to an lkv server.
type LineStore struct {
	config    common.ClientConfig
	transport transport.IClientTransport
}

var _ store.IStore = (*LineStore)(nil)

// NewLineStore connects the transport and returns a store that speaks the line protocol over it.
func NewLineStore(config common.ClientConfig, t transport.IClientTransport) (*LineStore, error) {
	if err := t.Connect(config); err != nil {
		return nil, err
	}
	return &LineStore{
		config:    config,
		transport: t,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *LineStore) Set(ctx context.Context, key, value string) error {
	_, err := s.invoke(ctx, common.NewSetRequest(key, value))
	return err
}

func (s *LineStore) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.invoke(ctx, common.NewGetRequest(key))
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

// Close closes all connections of the underlying transport.
func (s *LineStore) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends req and parses the response line.
// It checks that the response belongs to the request type and echoes the requested key.
func (s *LineStore) invoke(ctx context.Context, req *common.Request) (*common.Response, error) {
	var buf bytes.Buffer
	if err := codec.EncodeRequest(req, &buf); err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	if s.config.MaxLineLength > 0 && buf.Len()-1 > s.config.MaxLineLength {
		return nil, store.NewError(store.RetCInvalidOperation,
			fmt.Sprintf("request is %d bytes long, the limit is %d", buf.Len()-1, s.config.MaxLineLength))
	}

	line, err := s.transport.RoundTrip(ctx, buf.Bytes())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, store.NewError(store.RetCUnavailable, err.Error())
	}

	resp, err := codec.ParseResponse(line, req.Type)
	if err != nil {
		Logger.Warningf("Unexpected response to %s: %v", req, err)
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
	if resp.Key != req.Key {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("response for key %q, expected %q", resp.Key, req.Key))
	}

	return resp, nil
}
