package jsonrpc

import "encoding/json"

// Response represents a JSON-RPC response generated by the proxy itself
// (invalid request, endpoint not found, upstream unreachable). Upstream
// response bodies are never re-modelled through this type; they pass through
// the rewriter as raw bytes.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      ID              `json:"id"`
}

// NewErrorResponse creates an error response
func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   err,
		ID:      id,
	}
}

// Bytes returns the response as JSON bytes
func (r *Response) Bytes() ([]byte, error) {
	return json.Marshal(r)
}
