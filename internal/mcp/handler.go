// ABOUTME: Request-style HTTP transport for MCP: one POST carries one JSON-RPC envelope.
// ABOUTME: The response is written synchronously and one copy is published for stream subscribers.

package mcp

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/workspace-gateway/internal/jsonrpc"
)

// DefaultMaxBodyBytes is used when HandlerConfig.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Publisher receives a copy of every response the handler writes.
// Publish must not block; it returns the number of deliveries.
type Publisher interface {
	Publish(env *jsonrpc.Envelope) int
}

// HandlerConfig holds configuration for the request-style handler.
type HandlerConfig struct {
	Dispatcher   *Dispatcher
	Publisher    Publisher
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Handler serves POST requests carrying a single envelope.
type Handler struct {
	dispatcher   *Dispatcher
	publisher    Publisher
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates a request-style handler. A nil Publisher disables
// republishing.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Handler{
		dispatcher:   cfg.Dispatcher,
		publisher:    cfg.Publisher,
		maxBodyBytes: maxBody,
		logger:       logger.With("component", "mcp_http"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := h.handle(r)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := jsonrpc.Encode(resp)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		resp = jsonrpc.NewErrorResponse(resp.ID, jsonrpc.InternalError("encoding response"))
		data, _ = jsonrpc.Encode(resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}

	h.publish(resp)
}

// handle reads, decodes and dispatches one request. A nil result means the
// request was a notification and nothing is answered.
func (h *Handler) handle(r *http.Request) *jsonrpc.Envelope {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError("failed to read request body"))
	}
	if int64(len(body)) > h.maxBodyBytes {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.InvalidRequest("request body too large"))
	}

	req, err := jsonrpc.Decode(body)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = jsonrpc.ParseError(err.Error())
		}
		h.logger.Debug("rejected request", "code", rpcErr.Code, "message", rpcErr.Message)
		return jsonrpc.NewErrorResponse(nil, rpcErr)
	}

	h.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.Kind() == jsonrpc.KindNotification,
	)
	return h.dispatcher.Dispatch(r.Context(), req)
}

func (h *Handler) publish(resp *jsonrpc.Envelope) {
	if h.publisher == nil {
		return
	}
	msg := *resp
	delivered := h.publisher.Publish(&msg)
	h.logger.Debug("published response", "deliveries", delivered)
}
