// Package envelope implements the JSON control envelope: the uniform
// request/response shape carried inside wire.KindJSON frames. It uses
// sonic for decode/encode in place of encoding/json.
package envelope

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrorInfo is the {code, message} object carried on a failed response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the generic decode target for any control message: the
// common fields are promoted to struct members, and the original bytes
// are kept (see Raw/DecodeInto) for the operation-specific handler to
// re-decode.
type Envelope struct {
	Type  string     `json:"type"`
	ReqID string     `json:"reqId"`
	OK    *bool      `json:"ok,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`

	raw []byte
}

// Decode parses a JSON control message payload into an Envelope. The
// original bytes are retained so operation handlers can re-decode
// operation-specific fields without a second round of reflection-heavy
// unmarshalling into a generic map.
func Decode(payload []byte) (Envelope, error) {
	var e Envelope
	if err := sonic.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	e.raw = payload
	return e, nil
}

// Raw returns the original JSON bytes this Envelope was decoded from.
func (e Envelope) Raw() []byte { return e.raw }

// DecodeInto re-decodes the envelope's original bytes into dst, which
// should be a struct embedding the common fields plus operation-specific
// ones.
func (e Envelope) DecodeInto(dst any) error {
	if err := sonic.Unmarshal(e.raw, dst); err != nil {
		return fmt.Errorf("decode into %T: %w", dst, err)
	}
	return nil
}

// Encode marshals v (expected to carry type/reqId/ok/error fields,
// typically via an embedded Header) to JSON bytes.
func Encode(v any) ([]byte, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// Header is embedded by every concrete response type to satisfy the
// common envelope fields.
type Header struct {
	Type  string     `json:"type"`
	ReqID string     `json:"reqId"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// NewOK builds a success Header for the given response type/reqId.
func NewOK(respType, reqID string) Header {
	return Header{Type: respType, ReqID: reqID, OK: true}
}

// NewError builds a failure Header carrying the given error code/message.
func NewError(respType, reqID, code, message string) Header {
	return Header{
		Type:  respType,
		ReqID: reqID,
		OK:    false,
		Error: &ErrorInfo{Code: code, Message: message},
	}
}

// ResponseType derives the response message type for a given request
// type via a mechanical table: most requests get an irregular
// domain-specific response name (HELLO_ACK, AUTH_OK, ...); anything not
// in the table falls back to appending "_RESP".
func ResponseType(requestType string) string {
	switch requestType {
	case "HELLO":
		return "HELLO_ACK"
	case "AUTH":
		return "AUTH_OK"
	case "PING":
		return "PONG"
	case "LIST_SHARES":
		return "LIST_SHARES_RESP"
	case "LIST_DIR":
		return "LIST_DIR_RESP"
	case "STAT":
		return "STAT_RESP"
	case "DOWNLOAD_REQ":
		return "DOWNLOAD_ACK"
	case "UPLOAD_REQ":
		return "UPLOAD_ACK"
	case "HASH_REQ":
		return "HASH_RESP"
	default:
		return requestType + "_RESP"
	}
}
