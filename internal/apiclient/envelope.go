package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DefaultErrorMessage is used when a failed envelope carries no message.
const DefaultErrorMessage = "request failed"

// UnknownCode stands in for a "code" member that is not an integer.
const UnknownCode = -1

// Kind discriminates a decoded response body.
type Kind int

const (
	// KindRaw is any JSON body without a top-level "code" field.
	KindRaw Kind = iota
	// KindEnveloped is a JSON object with a "code" field.
	KindEnveloped
)

// Envelope is a decoded backend response.
type Envelope struct {
	Kind    Kind
	Code    int
	Message string
	// Data is the "data" member, nil when absent or null.
	Data json.RawMessage
	// Raw is the whole body.
	Raw json.RawMessage
}

// OK reports whether the body is raw or a successful envelope.
func (e Envelope) OK() bool {
	return e.Kind == KindRaw || e.Code == 0
}

// Payload returns what a successful call resolves with: data when present,
// otherwise the whole body.
func (e Envelope) Payload() json.RawMessage {
	if e.Kind == KindEnveloped && e.Data != nil {
		return e.Data
	}
	return e.Raw
}

// ErrorMessage returns the envelope message or DefaultErrorMessage.
func (e Envelope) ErrorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultErrorMessage
}

// ParseEnvelope classifies a response body. It fails only when body is not
// valid JSON.
func ParseEnvelope(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Envelope{}, fmt.Errorf("invalid JSON response body")
	}

	env := Envelope{Kind: KindRaw, Raw: json.RawMessage(trimmed)}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return env, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("decode response object: %w", err)
	}

	rawCode, ok := fields["code"]
	if !ok {
		return env, nil
	}

	env.Kind = KindEnveloped
	var code float64
	if isNull(rawCode) || json.Unmarshal(rawCode, &code) != nil || code != math.Trunc(code) {
		// Only the number 0 means success; anything unreadable is a failure.
		env.Code = UnknownCode
	} else {
		env.Code = int(code)
	}

	if rawMsg, ok := fields["message"]; ok {
		var msg string
		if json.Unmarshal(rawMsg, &msg) == nil {
			env.Message = msg
		}
	}

	if rawData, ok := fields["data"]; ok && !isNull(rawData) {
		env.Data = rawData
	}

	return env, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
