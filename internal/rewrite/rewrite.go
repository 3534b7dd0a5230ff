// Package rewrite restores the caller's original JSON-RPC identifier into a
// response body. Cached bodies were computed for whichever caller triggered
// the fetch; the rewrite guarantees every client still sees the id it sent.
package rewrite

import (
	"encoding/json"
	"io"
)

// Rewrite sets the id field of a complete JSON object body to originalID and
// re-serializes it. All other fields pass through untouched. When the body
// is not a JSON object, or there is no identifier to restore, the bytes are
// returned unchanged.
func Rewrite(originalID json.RawMessage, body []byte) []byte {
	if originalID == nil {
		return body
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		// Non-object or unparseable body (batch arrays, upstream error
		// pages): nothing to restore, pass through.
		return body
	}

	fields["id"] = originalID
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

// FromReader buffers a streamed response body to completion and then
// rewrites it. No output is produced until end-of-stream, so a partial
// rewritten body can never be emitted.
func FromReader(originalID json.RawMessage, r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Rewrite(originalID, body), nil
}
