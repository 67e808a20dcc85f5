// Package codec implements the line protocol of lkv.
//
// Every request and every response is a single line terminated by '\n' (a preceding '\r'
// is tolerated). Fields are separated by whitespace, so keys and values are single tokens.
//
//	request              response
//	GET <key>            OKAY <key> <value>   (found)
//	                     FAIL <key>           (not found)
//	SET <key> <value>    OKAY <key>
//
// The Codec decodes incrementally: bytes are appended to a bytes.Buffer as they arrive and
// Decode is called until it reports that no complete line is left. Lines are consumed from
// the buffer even if they fail to parse, so a caller that chooses to keep going after an
// error never sees the same line twice. At the end of the stream DecodeEOF additionally
// returns a final line without terminator.
//
// All errors caused by the peer wrap ErrProtocol (ErrUnknownCommand, ErrMalformedRequest,
// ErrLineTooLong, ErrUnexpectedResponse) and can be checked with errors.Is.
package codec
