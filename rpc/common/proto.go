package common

import "fmt"

// --------------------------------------------------------------------------
// Message Structures
// --------------------------------------------------------------------------

// Request is a single decoded request line.
type Request struct {
	// Type of request
	Type RequestType

	Key   string // Used for: Get, Set
	Value string // Used for: Set
}

// Response is the answer to exactly one Request.
// Its Type always equals the Type of the request it answers.
type Response struct {
	// Type of the request this response answers
	Type RequestType

	Key   string // Echo of the request key
	Value string // Used for: Get (only meaningful if Found is true)
	Found bool   // Used for: Get
}

// Status derives the status word of the response:
// StatusFail for a Get whose key was not found, StatusOkay otherwise.
func (r *Response) Status() Status {
	if r.Type == ReqGet && !r.Found {
		return StatusFail
	}
	return StatusOkay
}

func (r *Request) String() string {
	if r.Type == ReqSet {
		return fmt.Sprintf("%s %q=%q", r.Type, r.Key, r.Value)
	}
	return fmt.Sprintf("%s %q", r.Type, r.Key)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Request {
	return &Request{
		Type: ReqGet,
		Key:  key,
	}
}

// NewSetRequest creates a new Set request
func NewSetRequest(key, value string) *Request {
	return &Request{
		Type:  ReqSet,
		Key:   key,
		Value: value,
	}
}

// NewGetResponse creates a new Get response. If found is false, value is ignored.
func NewGetResponse(key, value string, found bool) *Response {
	resp := &Response{
		Type:  ReqGet,
		Key:   key,
		Found: found,
	}
	if found {
		resp.Value = value
	}
	return resp
}

// NewSetResponse creates a new Set response
func NewSetResponse(key string) *Response {
	return &Response{
		Type: ReqSet,
		Key:  key,
	}
}

// --------------------------------------------------------------------------
// Request Type Definition
// --------------------------------------------------------------------------

// RequestType defines the operation a request asks for.
type RequestType uint8

const (
	ReqUnknown RequestType = iota
	ReqGet                 // Get a value by key
	ReqSet                 // Set a key-value pair
)

// String returns the wire keyword of a RequestType.
func (t RequestType) String() string {
	switch t {
	case ReqGet:
		return "GET"
	case ReqSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// Arity returns the number of whitespace separated fields (keyword included) of a request line.
func (t RequestType) Arity() int {
	switch t {
	case ReqGet:
		return 2
	case ReqSet:
		return 3
	default:
		return 0
	}
}

// ParseRequestType maps a wire keyword to its RequestType (ReqUnknown if there is none).
// Keywords are case-sensitive.
func ParseRequestType(keyword string) RequestType {
	switch keyword {
	case "GET":
		return ReqGet
	case "SET":
		return ReqSet
	default:
		return ReqUnknown
	}
}

// --------------------------------------------------------------------------
// Status Definition
// --------------------------------------------------------------------------

// Status is the first word of every response line.
type Status uint8

const (
	StatusOkay Status = iota
	StatusFail
)

func (s Status) String() string {
	if s == StatusFail {
		return "FAIL"
	}
	return "OKAY"
}

// ParseStatus maps a status word to its Status. ok is false for anything but OKAY and FAIL.
func ParseStatus(word string) (s Status, ok bool) {
	switch word {
	case "OKAY":
		return StatusOkay, true
	case "FAIL":
		return StatusFail, true
	default:
		return StatusOkay, false
	}
}
