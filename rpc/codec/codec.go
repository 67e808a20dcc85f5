package codec

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/ValentinKolb/lkv/rpc/common"
)

// DefaultMaxLineLength is the longest line (without terminator) the codec accepts by default.
const DefaultMaxLineLength = common.DefaultMaxLineLength

// Errors returned by the codec. Every protocol error matches ErrProtocol.
var (
	ErrProtocol           = errors.New("protocol error")
	ErrUnknownCommand     = fmt.Errorf("%w: unknown command", ErrProtocol)
	ErrMalformedRequest   = fmt.Errorf("%w: malformed request", ErrProtocol)
	ErrLineTooLong        = fmt.Errorf("%w: line too long", ErrProtocol)
	ErrUnexpectedResponse = fmt.Errorf("%w: unexpected response", ErrProtocol)
	ErrInvalidToken       = errors.New("invalid token")
)

// Codec decodes newline terminated request lines from a growing input buffer and
// encodes responses into an output buffer.
//
// A Codec keeps a scan cursor between calls so bytes already searched for a terminator
// are not searched again when more input arrives. The caller owns the input buffer but must
// only consume from it through Decode and DecodeEOF; after changing it in any other way
// Reset must be called before the next Decode. It is not safe for concurrent use;
// every connection has its own Codec.
type Codec struct {
	// next is the offset in the input buffer up to which there is no terminator
	next int

	// MaxLineLength limits the length of a line without terminator, 0 disables the limit
	MaxLineLength int
}

// New creates a codec with the given line length limit (DefaultMaxLineLength if maxLineLength < 1).
func New(maxLineLength int) *Codec {
	if maxLineLength < 1 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Codec{MaxLineLength: maxLineLength}
}

// Reset forgets the scan cursor, the next Decode searches the whole input buffer.
func (c *Codec) Reset() {
	c.next = 0
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode extracts the next request from src.
//
//   - (req, nil): a complete line was consumed from src and parsed
//   - (nil, nil): src holds no complete line yet, nothing was consumed
//   - (nil, err): a complete line was consumed but is not a valid request,
//     or the pending line exceeds MaxLineLength (src is then discarded)
func (c *Codec) Decode(src *bytes.Buffer) (*common.Request, error) {
	buf := src.Bytes()
	if c.next > len(buf) {
		// cursor past the end, src must have been changed without Reset
		c.next = 0
	}

	idx := bytes.IndexByte(buf[c.next:], '\n')
	if idx < 0 {
		c.next = len(buf)
		// +1 leaves room for a '\r' in front of the missing '\n'
		if c.MaxLineLength > 0 && len(buf) > c.MaxLineLength+1 {
			src.Reset()
			c.next = 0
			return nil, fmt.Errorf("%w: more than %d bytes without line break", ErrLineTooLong, c.MaxLineLength)
		}
		return nil, nil
	}

	end := c.next + idx
	c.next = 0
	line := src.Next(end + 1)[:end]

	if n := len(bytes.TrimSuffix(line, []byte{'\r'})); c.MaxLineLength > 0 && n > c.MaxLineLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLineTooLong, n, c.MaxLineLength)
	}
	return ParseRequest(line)
}

// DecodeEOF is Decode for the end of the stream: once no complete line is left,
// the remaining bytes (if any) are parsed as a final, unterminated line.
func (c *Codec) DecodeEOF(src *bytes.Buffer) (*common.Request, error) {
	req, err := c.Decode(src)
	if err != nil || req != nil {
		return req, err
	}
	if src.Len() == 0 {
		return nil, nil
	}

	c.next = 0
	line := src.Next(src.Len())
	return ParseRequest(line)
}

// ParseRequest parses a single line (without the '\n' terminator, a trailing '\r' is ignored).
// Fields are separated by runs of whitespace. GET takes exactly one argument, SET exactly two.
func ParseRequest(line []byte) (*common.Request, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: line is not valid utf-8", ErrMalformedRequest)
	}

	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedRequest)
	}

	reqType := common.ParseRequestType(string(fields[0]))
	if reqType == common.ReqUnknown {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, truncate(fields[0]))
	}
	if len(fields) != reqType.Arity() {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrMalformedRequest, reqType, reqType.Arity()-1, len(fields)-1)
	}

	switch reqType {
	case common.ReqGet:
		return common.NewGetRequest(string(fields[1])), nil
	default:
		return common.NewSetRequest(string(fields[1]), string(fields[2])), nil
	}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode appends the response line for resp to dst:
//
//	OKAY <key> <value>   Get, key found
//	FAIL <key>           Get, key not found
//	OKAY <key>           Set
func (c *Codec) Encode(resp *common.Response, dst *bytes.Buffer) {
	dst.WriteString(resp.Status().String())
	dst.WriteByte(' ')
	dst.WriteString(resp.Key)
	if resp.Type == common.ReqGet && resp.Found {
		dst.WriteByte(' ')
		dst.WriteString(resp.Value)
	}
	dst.WriteByte('\n')
}

// EncodeRequest appends the request line for req to dst.
// Key and value must be valid tokens (see ValidateToken), otherwise nothing is written.
func EncodeRequest(req *common.Request, dst *bytes.Buffer) error {
	if err := ValidateToken(req.Key); err != nil {
		return fmt.Errorf("key: %w", err)
	}

	switch req.Type {
	case common.ReqGet:
		dst.WriteString("GET ")
		dst.WriteString(req.Key)
	case common.ReqSet:
		if err := ValidateToken(req.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		dst.WriteString("SET ")
		dst.WriteString(req.Key)
		dst.WriteByte(' ')
		dst.WriteString(req.Value)
	default:
		return fmt.Errorf("%w: can't encode request type %s", ErrProtocol, req.Type)
	}
	dst.WriteByte('\n')
	return nil
}

// ParseResponse parses a response line (terminator optional) to a request of type expected.
func ParseResponse(line []byte, expected common.RequestType) (*common.Response, error) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})

	fields := bytes.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedResponse, truncate(line))
	}

	status, ok := common.ParseStatus(string(fields[0]))
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrUnexpectedResponse, truncate(fields[0]))
	}
	key := string(fields[1])

	switch {
	case expected == common.ReqGet && status == common.StatusOkay && len(fields) == 3:
		return common.NewGetResponse(key, string(fields[2]), true), nil
	case expected == common.ReqGet && status == common.StatusFail && len(fields) == 2:
		return common.NewGetResponse(key, "", false), nil
	case expected == common.ReqSet && status == common.StatusOkay && len(fields) == 2:
		return common.NewSetResponse(key), nil
	default:
		return nil, fmt.Errorf("%w: %q for a %s request", ErrUnexpectedResponse, truncate(line), expected)
	}
}

// ValidateToken checks that s can be sent as a single field: not empty and without whitespace.
func ValidateToken(s string) error {
	if s == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidToken)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidToken)
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidToken, truncate([]byte(s)))
		}
	}
	return nil
}

// truncate shortens b for error messages.
func truncate(b []byte) string {
	const limit = 64
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
