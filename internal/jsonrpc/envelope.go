// ABOUTME: JSON-RPC 2.0 envelope codec shared by the request and streaming transports.
// ABOUTME: Decodes raw bytes into an Envelope and encodes each variant with its own field set.

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Version is the only protocol version the codec emits.
const Version = "2.0"

// Kind identifies which variant of the envelope union a value holds.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Envelope is the message unit exchanged over both transports. Which
// fields are meaningful depends on Kind.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

var nullLiteral = json.RawMessage("null")

// HasID reports whether the envelope carries a non-null correlation id.
func (e *Envelope) HasID() bool {
	return len(e.ID) > 0 && !bytes.Equal(e.ID, nullLiteral)
}

// Kind classifies the envelope. A method without an id is a notification;
// an error object wins over a result.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Method != "" && !e.HasID():
		return KindNotification
	case e.Method != "":
		return KindRequest
	case e.Error != nil:
		return KindError
	default:
		return KindResponse
	}
}

// Each variant is written through its own wire struct so that absent
// fields stay absent and required ones (id, result) are always present.
type requestWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type notificationWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type responseWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type errorWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *Error          `json:"error"`
}

// MarshalJSON writes the field set of the envelope's variant.
func (e Envelope) MarshalJSON() ([]byte, error) {
	version := e.JSONRPC
	if version == "" {
		version = Version
	}
	id := e.ID
	if len(id) == 0 {
		id = nullLiteral
	}

	switch e.Kind() {
	case KindRequest:
		return json.Marshal(requestWire{JSONRPC: version, ID: id, Method: e.Method, Params: e.Params})
	case KindNotification:
		return json.Marshal(notificationWire{JSONRPC: version, Method: e.Method, Params: e.Params})
	case KindError:
		return json.Marshal(errorWire{JSONRPC: version, ID: id, Error: e.Error})
	default:
		result := e.Result
		if len(result) == 0 {
			result = nullLiteral
		}
		return json.Marshal(responseWire{JSONRPC: version, ID: id, Result: result})
	}
}

// Decode parses raw bytes into an Envelope. Empty or malformed input is a
// parse error and a JSON value that is not an object is an invalid request.
// Missing fields are left for the dispatcher to judge. Raw members come back
// compacted and a null id, params or result comes back as nil.
func Decode(data []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ParseError("empty payload")
	}
	if !json.Valid(trimmed) {
		return nil, ParseError("invalid JSON")
	}
	if trimmed[0] != '{' {
		return nil, InvalidRequest("envelope must be a JSON object")
	}

	// Decode through an alias so Envelope.MarshalJSON is not involved and
	// unknown members are ignored.
	type plain Envelope
	var env plain
	if err := json.Unmarshal(trimmed, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, InvalidRequest("field " + typeErr.Field + " has the wrong type")
		}
		return nil, ParseError(err.Error())
	}
	out := Envelope(env)
	out.ID = canonicalRaw(out.ID)
	out.Params = canonicalRaw(out.Params)
	out.Result = canonicalRaw(out.Result)
	return &out, nil
}

// canonicalRaw compacts a raw member and maps a JSON null to nil, matching
// what Encode writes for an absent member.
func canonicalRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, nullLiteral) {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return json.RawMessage(buf.Bytes())
}

// Encode serializes an envelope. It only fails if a RawMessage field holds
// invalid JSON, which the constructors in this package never produce.
func Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// NewResult builds a response carrying v as its result.
func NewResult(id json.RawMessage, v any) (*Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Envelope{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error envelope for the given id.
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Envelope {
	return &Envelope{JSONRPC: Version, ID: id, Error: rpcErr}
}
