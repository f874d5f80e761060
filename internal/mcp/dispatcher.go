// ABOUTME: JSON-RPC method dispatcher for the MCP methods the gateway answers.
// ABOUTME: Maps each method to a handler and converts every failure into an error envelope.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/workspace-gateway/internal/auth"
	"github.com/2389/workspace-gateway/internal/jsonrpc"
	"github.com/2389/workspace-gateway/internal/metrics"
	"github.com/2389/workspace-gateway/internal/packs"
)

// DefaultProtocolVersion is advertised when the peer asks for nothing we support.
const DefaultProtocolVersion = "2024-11-05"

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// MethodInitialized is the notification a peer sends after initialize.
const MethodInitialized = "notifications/initialized"

// InitializeParams is the subset of initialize params the gateway reads.
type InitializeParams struct {
	ProtocolVersion string                `json:"protocolVersion"`
	ClientInfo      mcpsdk.Implementation `json:"clientInfo"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    map[string]any        `json:"capabilities"`
	ServerInfo      mcpsdk.Implementation `json:"serverInfo"`
	Instructions    string                `json:"instructions,omitempty"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []mcpsdk.Tool `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type methodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Tools         *packs.Registry
	ServerName    string
	ServerVersion string
	Instructions  string
	Logger        *slog.Logger
}

// Dispatcher turns request envelopes into response envelopes. It keeps no
// state between calls.
type Dispatcher struct {
	tools        *packs.Registry
	serverInfo   mcpsdk.Implementation
	instructions string
	logger       *slog.Logger
	handlers     map[string]methodHandler
}

// NewDispatcher creates a dispatcher over the given tool catalog.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Tools == nil {
		return nil, errors.New("tool registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "workspace-gateway"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	d := &Dispatcher{
		tools:        cfg.Tools,
		serverInfo:   mcpsdk.Implementation{Name: name, Version: version},
		instructions: cfg.Instructions,
		logger:       logger,
	}
	d.handlers = map[string]methodHandler{
		string(mcpsdk.MethodInitialize): d.handleInitialize,
		MethodInitialized:               d.handleInitialized,
		string(mcpsdk.MethodPing):       d.handlePing,
		string(mcpsdk.MethodToolsList):  d.handleToolsList,
		string(mcpsdk.MethodToolsCall):  d.handleToolsCall,
	}
	return d, nil
}

// Dispatch handles one envelope. It returns nil for notifications, which
// get no response, and an error envelope for every failure. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Envelope) (resp *jsonrpc.Envelope) {
	notification := req.Kind() == jsonrpc.KindNotification

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic while dispatching", "method", req.Method, "panic", rec)
			metrics.RecordDispatch(req.Method, false)
			resp = nil
			if !notification {
				resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.InternalError(fmt.Sprint(rec)))
			}
		}
	}()

	if req.JSONRPC != jsonrpc.Version {
		return d.fail(req, notification, jsonrpc.InvalidRequest(`jsonrpc must be "2.0"`))
	}
	if req.Method == "" {
		return d.fail(req, notification, jsonrpc.InvalidRequest("missing method"))
	}

	handler, ok := d.handlers[req.Method]
	if !ok {
		return d.fail(req, notification, jsonrpc.MethodNotFound(req.Method))
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = jsonrpc.InternalError(err.Error())
		}
		return d.fail(req, notification, rpcErr)
	}

	metrics.RecordDispatch(req.Method, true)
	if notification {
		d.logger.Debug("accepted notification", "method", req.Method)
		return nil
	}

	env, err := jsonrpc.NewResult(req.ID, result)
	if err != nil {
		d.logger.Error("failed to encode result", "method", req.Method, "error", err)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.InternalError("encoding result"))
	}
	return env
}

func (d *Dispatcher) fail(req *jsonrpc.Envelope, notification bool, rpcErr *jsonrpc.Error) *jsonrpc.Envelope {
	metrics.RecordDispatch(req.Method, false)
	d.logger.Debug("dispatch failed",
		"method", req.Method,
		"code", rpcErr.Code,
		"message", rpcErr.Message,
	)
	if notification {
		return nil
	}
	return jsonrpc.NewErrorResponse(req.ID, rpcErr)
}

// decodeParams unmarshals params into v. Absent params leave v untouched;
// malformed params are an internal error.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return jsonrpc.InternalError("invalid params: " + err.Error())
	}
	return nil
}

// handleInitialize answers the handshake. It may be called any number of
// times and in any order relative to other methods.
func (d *Dispatcher) handleInitialize(_ context.Context, params json.RawMessage) (any, error) {
	var p InitializeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	version := DefaultProtocolVersion
	if supportedProtocolVersions[p.ProtocolVersion] {
		version = p.ProtocolVersion
	}

	d.logger.Info("MCP initialize",
		"client_name", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
		"protocol_version", version,
	)

	return InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo:   d.serverInfo,
		Instructions: d.instructions,
	}, nil
}

func (d *Dispatcher) handleInitialized(_ context.Context, _ json.RawMessage) (any, error) {
	return struct{}{}, nil
}

func (d *Dispatcher) handlePing(_ context.Context, _ json.RawMessage) (any, error) {
	return struct{}{}, nil
}

func (d *Dispatcher) handleToolsList(_ context.Context, _ json.RawMessage) (any, error) {
	return ListToolsResult{Tools: d.tools.Tools()}, nil
}

// handleToolsCall runs a catalog tool. Unknown tools produce a successful
// result describing the problem rather than a protocol error.
func (d *Dispatcher) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p CallToolParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	result, err := d.tools.Call(ctx, p.Name, p.Arguments)
	if errors.Is(err, packs.ErrToolNotFound) {
		d.logger.Debug("tools/call for unknown tool", "tool_name", p.Name)
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{mcpsdk.NewTextContent("Unknown tool: " + p.Name)},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", p.Name, err)
	}
	if result == nil {
		return nil, fmt.Errorf("tool %s returned no result", p.Name)
	}

	d.logger.Debug("tools/call complete",
		"tool_name", p.Name,
		"client_id", auth.ClientIDFromContext(ctx),
		"is_error", result.IsError,
	)
	return result, nil
}
