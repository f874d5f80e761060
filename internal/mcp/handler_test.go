// ABOUTME: Tests for the request-style MCP HTTP handler.
// ABOUTME: Verifies synchronous responses, republishing, notifications, and body limits.

package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/workspace-gateway/internal/jsonrpc"
)

// recordingPublisher captures everything published to it.
type recordingPublisher struct {
	mu        sync.Mutex
	published []*jsonrpc.Envelope
}

func (p *recordingPublisher) Publish(env *jsonrpc.Envelope) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, env)
	return 1
}

func (p *recordingPublisher) all() []*jsonrpc.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*jsonrpc.Envelope(nil), p.published...)
}

func newTestHandler(t *testing.T, maxBody int64) (*Handler, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	h := NewHandler(HandlerConfig{
		Dispatcher:   newTestDispatcher(t, setupTestRegistry(t)),
		Publisher:    pub,
		MaxBodyBytes: maxBody,
	})
	return h, pub
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_RequestIsAnsweredAndPublished(t *testing.T) {
	h, pub := newTestHandler(t, 0)

	rr := post(h, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp, err := jsonrpc.Decode(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, jsonrpc.KindResponse, resp.Kind())
	assert.Contains(t, string(resp.Result), DefaultProtocolVersion)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, resp.ID, published[0].ID)
	assert.JSONEq(t, string(resp.Result), string(published[0].Result))
}

func TestHandler_UnknownToolScenario(t *testing.T) {
	h, pub := newTestHandler(t, 0)

	rr := post(h, `{"jsonrpc":"2.0","id":"call-1","method":"tools/call","params":{"name":"unknown_tool","arguments":{}}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unknown tool: unknown_tool")
	assert.NotContains(t, rr.Body.String(), `"error"`)
	assert.Len(t, pub.all(), 1)
}

func TestHandler_NotificationIsAcceptedSilently(t *testing.T) {
	h, pub := newTestHandler(t, 0)

	rr := post(h, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, pub.all())
}

func TestHandler_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"empty body", "", jsonrpc.CodeParseError},
		{"malformed json", `{"jsonrpc":`, jsonrpc.CodeParseError},
		{"array payload", `[1,2,3]`, jsonrpc.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`, jsonrpc.CodeMethodNotFound},
		{"missing version", `{"id":4,"method":"ping"}`, jsonrpc.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, pub := newTestHandler(t, 0)

			rr := post(h, tt.body)
			require.Equal(t, http.StatusOK, rr.Code)

			resp, err := jsonrpc.Decode(rr.Body.Bytes())
			require.NoError(t, err)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			published := pub.all()
			require.Len(t, published, 1)
			assert.Equal(t, tt.wantCode, published[0].Error.Code)
		})
	}
}

func TestHandler_OversizeBody(t *testing.T) {
	h, _ := newTestHandler(t, 32)

	rr := post(h, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"padding":"xxxxxxxxxxxxxxxx"}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	resp, err := jsonrpc.Decode(rr.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
}

func TestHandler_RejectsOtherMethods(t *testing.T) {
	h, pub := newTestHandler(t, 0)

	req := httptest.NewRequest(http.MethodPut, "/mcp", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Allow"))
	assert.Empty(t, pub.all())
}

func TestHandler_WithoutPublisher(t *testing.T) {
	h := NewHandler(HandlerConfig{Dispatcher: newTestDispatcher(t, setupTestRegistry(t))})

	rr := post(h, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, rr.Body.String())
}
