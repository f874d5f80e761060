// ABOUTME: Tests for the JSON-RPC envelope codec.
// ABOUTME: Covers round-trips per variant, decode failures, and error code matching.

package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
	}{
		{
			name: "request with params",
			env: &Envelope{
				JSONRPC: Version,
				ID:      json.RawMessage(`1`),
				Method:  "tools/call",
				Params:  json.RawMessage(`{"name":"gmail_search","arguments":{"query":"from:me"}}`),
			},
		},
		{
			name: "request with string id and no params",
			env:  &Envelope{JSONRPC: Version, ID: json.RawMessage(`"abc-1"`), Method: "tools/list"},
		},
		{
			name: "notification",
			env:  &Envelope{JSONRPC: Version, Method: "notifications/initialized"},
		},
		{
			name: "response",
			env:  &Envelope{JSONRPC: Version, ID: json.RawMessage(`7`), Result: json.RawMessage(`{"tools":[]}`)},
		},
		{
			name: "error with data",
			env: &Envelope{
				JSONRPC: Version,
				ID:      json.RawMessage(`"x"`),
				Error:   &Error{Code: CodeMethodNotFound, Message: "method not found: nope", Data: json.RawMessage(`{"method":"nope"}`)},
			},
		},
		{
			name: "error without id",
			env:  NewErrorResponse(nil, ParseError("invalid JSON")),
		},
		{
			name: "response without result",
			env:  &Envelope{JSONRPC: Version, ID: json.RawMessage(`1`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.env)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.env, decoded)
			assert.Equal(t, tt.env.Kind(), decoded.Kind())
		})
	}
}

func TestDecode_CanonicalizesRawMembers(t *testing.T) {
	env := &Envelope{
		JSONRPC: Version,
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"a": 1,  "b": [1, 2]}`),
	}
	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"a":1,"b":[1,2]}`), decoded.Params)

	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	decoded, err = Decode([]byte(`{"jsonrpc":"2.0","id":null,"result":null,"params":null}`))
	require.NoError(t, err)
	assert.Nil(t, decoded.ID)
	assert.Nil(t, decoded.Result)
	assert.Nil(t, decoded.Params)
	assert.False(t, decoded.HasID())
}

func TestEncode_VariantFieldSets(t *testing.T) {
	t.Run("notification omits id", func(t *testing.T) {
		data, err := Encode(&Envelope{Method: "notifications/initialized"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, string(data))
	})

	t.Run("response always has result", func(t *testing.T) {
		data, err := Encode(&Envelope{ID: json.RawMessage(`3`)})
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"result":null}`, string(data))
	})

	t.Run("error without id writes null id", func(t *testing.T) {
		data, err := Encode(NewErrorResponse(nil, ParseError("empty payload")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error: empty payload"}}`, string(data))
	})

	t.Run("error wins over result", func(t *testing.T) {
		env := &Envelope{ID: json.RawMessage(`1`), Result: json.RawMessage(`{}`), Error: ErrInternal}
		data, err := Encode(env)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "result")
	})
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrParse},
		{"whitespace", "  \n\t", ErrParse},
		{"truncated", `{"jsonrpc":"2.0","id":1`, ErrParse},
		{"not json", `hello`, ErrParse},
		{"array", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, ErrInvalidRequest},
		{"scalar", `42`, ErrInvalidRequest},
		{"method has wrong type", `{"jsonrpc":"2.0","id":1,"method":5}`, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.input))
			assert.Nil(t, env)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_IncompleteEnvelopeIsNotAnError(t *testing.T) {
	env, err := Decode([]byte(`{"jsonrpc":"2.0","id":9}`))
	require.NoError(t, err)
	assert.Empty(t, env.Method)
	assert.True(t, env.HasID())
	assert.Equal(t, KindResponse, env.Kind())

	env, err = Decode([]byte(`{"id":1,"method":"initialize","extra":"ignored"}`))
	require.NoError(t, err)
	assert.Empty(t, env.JSONRPC)
	assert.Equal(t, KindRequest, env.Kind())
}

func TestEnvelope_Kind(t *testing.T) {
	assert.Equal(t, KindNotification, (&Envelope{Method: "x", ID: json.RawMessage(`null`)}).Kind())
	assert.Equal(t, KindRequest, (&Envelope{Method: "x", ID: json.RawMessage(`0`)}).Kind())
	assert.Equal(t, KindError, (&Envelope{Error: ErrInternal}).Kind())
	assert.Equal(t, KindResponse, (&Envelope{}).Kind())
	assert.Equal(t, "notification", KindNotification.String())
}

func TestError_IsComparesCode(t *testing.T) {
	err := MethodNotFound("resources/list")
	assert.True(t, errors.Is(err, ErrMethodNotFound))
	assert.False(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "resources/list")

	var rpcErr *Error
	wrapped := errors.Join(errors.New("context"), InternalError("boom"))
	require.True(t, errors.As(wrapped, &rpcErr))
	assert.Equal(t, CodeInternalError, rpcErr.Code)
}

func TestNewResult(t *testing.T) {
	env, err := NewResult(json.RawMessage(`5`), map[string]string{"ok": "yes"})
	require.NoError(t, err)
	assert.Equal(t, KindResponse, env.Kind())
	assert.JSONEq(t, `{"ok":"yes"}`, string(env.Result))

	_, err = NewResult(json.RawMessage(`5`), make(chan int))
	assert.Error(t, err)
}
