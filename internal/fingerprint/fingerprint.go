// Package fingerprint derives stable cache keys from JSON-RPC requests.
//
// Two requests that differ only in their caller-supplied id field map to the
// same fingerprint; the stripped id is carried alongside so the response
// rewriter can restore it.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Call is the per-request transient state produced by fingerprinting.
type Call struct {
	// Key is the hex-encoded 128-bit digest used as the cache key.
	Key string
	// OriginalID holds the raw JSON of the caller's id field, nil when the
	// request carried no restorable identifier (batch arrays, non-JSON
	// bodies, objects without id).
	OriginalID json.RawMessage
	// Method is the JSON-RPC method when one was present, for logging.
	Method string
}

// HasID returns true if the call carried a restorable identifier
func (c Call) HasID() bool {
	return c.OriginalID != nil
}

// Compute derives the cache key for a request. The canonical form is:
//   - the full path+query when the body is empty,
//   - the body with the top-level id removed and keys serialized
//     deterministically when it parses as a JSON object,
//   - the whole structure when it parses as JSON but is not an object,
//   - the raw body with whitespace stripped otherwise.
func Compute(endpointName, httpMethod string, body []byte, pathQuery string) Call {
	call := Call{}

	trimmed := bytes.TrimSpace(body)
	var canonical []byte

	switch {
	case len(trimmed) == 0:
		canonical = []byte(pathQuery)

	case json.Valid(trimmed):
		call.Method = gjson.GetBytes(trimmed, "method").String()
		canonical = canonicalize(trimmed, &call)

	default:
		canonical = stripWhitespace(trimmed)
	}

	sum := sha256.New()
	sum.Write([]byte(endpointName))
	sum.Write([]byte{0})
	sum.Write([]byte(httpMethod))
	sum.Write([]byte{0})
	sum.Write(canonical)
	call.Key = hex.EncodeToString(sum.Sum(nil)[:16])

	return call
}

// canonicalize re-serializes a valid JSON body deterministically. For
// top-level objects the id field is removed first and recorded on the call.
func canonicalize(body []byte, call *Call) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber() // keep numeric literals byte-exact through the round trip

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return stripWhitespace(body)
	}

	if obj, ok := v.(map[string]interface{}); ok {
		if id := gjson.GetBytes(body, "id"); id.Exists() {
			call.OriginalID = json.RawMessage(id.Raw)
		}
		delete(obj, "id")
		v = obj
	}

	// encoding/json marshals map keys in sorted order, which makes the
	// serialization independent of the caller's key order.
	out, err := json.Marshal(v)
	if err != nil {
		return stripWhitespace(body)
	}
	return out
}

// stripWhitespace removes all JSON whitespace characters from a body that
// could not be parsed, so formatting differences still share a key.
func stripWhitespace(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			out = append(out, b)
		}
	}
	return out
}
