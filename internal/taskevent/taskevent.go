// Package taskevent decodes the event envelopes passed between state
// machine tasks. Task inputs carry their payload under a "body" member that
// may arrive either as a JSON object or as a JSON-encoded string, depending
// on which state produced it.
package taskevent

import (
	"encoding/json"
	"fmt"
)

// DecodeBody unmarshals a task body into v, unwrapping one level of string
// encoding if the body arrived as a JSON string.
func DecodeBody(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("event body is empty")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("unwrap string body: %w", err)
		}
		raw = []byte(s)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
