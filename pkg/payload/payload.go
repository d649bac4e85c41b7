// Package payload parses data submitted by the Mini App through
// Telegram.WebApp.sendData. It only checks structure; the meaning of keys is
// left to the caller.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is the only error Parse returns.
var ErrMalformed = errors.New("malformed mini app payload")

// Payload is a decoded JSON value: map[string]any, []any, string,
// json.Number, bool or nil.
type Payload struct {
	value any
}

func Parse(raw string) (Payload, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return Payload{}, fmt.Errorf("%w: trailing JSON content", ErrMalformed)
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Payload{value: v}, nil
}

func (p Payload) Value() any {
	return p.value
}

// Object returns the root as an object, if it is one.
func (p Payload) Object() (map[string]any, bool) {
	m, ok := p.value.(map[string]any)
	return m, ok
}

// Field looks up a top-level key. It reports false when the root is not an
// object or the key is absent.
func (p Payload) Field(key string) (any, bool) {
	m, ok := p.Object()
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func (p Payload) Marshal() ([]byte, error) {
	return encode(p.value, "")
}

// Indent renders the payload with two-space indentation and without HTML
// escaping, for display in a reply.
func (p Payload) Indent() string {
	data, err := encode(p.value, "  ")
	if err != nil {
		return fmt.Sprintf("%v", p.value)
	}
	return string(data)
}

// Text renders a single value for inline display: strings as-is, anything
// else as compact JSON.
func Text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := encode(v, "")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
