package rpc

import (
	"encoding/json"
	"errors"
)

const Version = "2.0"

// ErrMalformedEnvelope indicates a payload that is not a JSON-RPC request or
// response.
var ErrMalformedEnvelope = errors.New("rpc: malformed envelope")

// Request is a JSON-RPC 2.0 request.
type Request struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with a freshly generated id.
func NewRequest(id int64, method string, params any) (Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, err
	}
	return Request{ID: id, JSONRPC: Version, Method: method, Params: raw}, nil
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Response is a JSON-RPC 2.0 response; exactly one of Result or Err is set.
type Response struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *Error          `json:"error,omitempty"`
}

// NewResponse builds a success response for id.
func NewResponse(id int64, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{ID: id, JSONRPC: Version, Result: raw}, nil
}

// NewErrorResponse builds an error response for id.
func NewErrorResponse(id int64, code int, message string) Response {
	return Response{ID: id, JSONRPC: Version, Err: &Error{Code: code, Message: message}}
}

// Envelope is the result of decoding an inbound payload that may be either a
// request or a response.
type Envelope struct {
	Request  *Request
	Response *Response
}

// DecodeEnvelope parses raw JSON into a request (method present) or a
// response (result or error present).
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var probe struct {
		ID      int64           `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Envelope{}, errors.Join(ErrMalformedEnvelope, err)
	}
	if probe.ID == 0 {
		return Envelope{}, ErrMalformedEnvelope
	}
	if probe.Method != "" {
		return Envelope{Request: &Request{ID: probe.ID, JSONRPC: probe.JSONRPC, Method: probe.Method, Params: probe.Params}}, nil
	}
	if probe.Result != nil || probe.Error != nil {
		return Envelope{Response: &Response{ID: probe.ID, JSONRPC: probe.JSONRPC, Result: probe.Result, Err: probe.Error}}, nil
	}
	return Envelope{}, ErrMalformedEnvelope
}
