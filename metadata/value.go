package metadata

import "github.com/tidwall/gjson"

// Value is a metadata response body. Most metadata values are plain text
// scalars; directory listings requested with the recursive param are JSON
// documents that may contain integers wider than float64 can represent, so
// JSON access goes through gjson, which reads numbers from the raw bytes
// without a lossy float round-trip.
type Value struct {
	body string
}

func newValue(body string) *Value {
	return &Value{body: body}
}

// Text returns the response body exactly as received.
func (v *Value) Text() string {
	return v.body
}

// JSON parses the body as JSON. The second return is false when the body is
// not valid JSON, in which case callers use Text instead; a plain-text scalar
// answer is not an error.
func (v *Value) JSON() (gjson.Result, bool) {
	if !gjson.Valid(v.body) {
		return gjson.Result{}, false
	}
	return gjson.Parse(v.body), true
}

func (v *Value) String() string {
	return v.body
}
