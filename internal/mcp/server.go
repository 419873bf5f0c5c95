// Package mcp implements the stdio adapter: JSON-RPC 2.0 framed as one
// message per line on stdin/stdout, speaking the Model Context Protocol
// tool surface. Every tool call dispatches through the same operation
// registry as the HTTP gateway.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/solwire/solwire/internal/config"
	"github.com/solwire/solwire/internal/ops"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/pkg/logger"
)

const protocolVersion = "2024-11-05"

// maxLineBytes bounds a single stdin frame. Transfers carry base58 keys
// and mint requests carry metadata, both far below this.
const maxLineBytes = 4 << 20

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server reads JSON-RPC requests line by line and answers on the writer.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *ops.Registry

	in  io.Reader
	out io.Writer
	mu  sync.Mutex // serializes writes to out
}

// NewServer wires the adapter to a registry and the process streams.
func NewServer(cfg *config.Config, registry *ops.Registry, in io.Reader, out io.Writer, log *logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		in:       in,
		out:      out,
	}
}

// Run processes requests until stdin closes or the context is cancelled.
// Logging goes to stderr only; stdout carries nothing but protocol frames.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			continue
		}
		s.dispatch(ctx, req)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req request) {
	// Notifications carry no id and expect no reply.
	if req.ID == nil {
		if req.Method != "notifications/initialized" {
			s.log.Field("method", req.Method).Debug("ignoring notification")
		}
		return
	}

	switch req.Method {
	case "initialize":
		s.reply(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]string{
				"name":    s.cfg.ServerName,
				"version": s.cfg.ServerVersion,
			},
		})
	case "ping":
		s.reply(req.ID, map[string]any{})
	case "tools/list":
		s.reply(req.ID, map[string]any{"tools": s.toolList()})
	case "tools/call":
		s.handleToolCall(ctx, req)
	default:
		s.fail(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleToolCall(ctx context.Context, req request) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		s.fail(req.ID, codeInvalidParams, "tools/call requires a tool name")
		return
	}

	result, err := s.registry.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		// Tool failures are reported in-band so the client can show them
		// to the model rather than aborting the session.
		s.reply(req.ID, toolResult(map[string]any{
			"error": err.Error(),
			"code":  string(operr.KindOf(err)),
		}, true))
		return
	}
	s.reply(req.ID, toolResult(result, false))
}

// toolResult renders an operation outcome as MCP text content.
func toolResult(payload any, isError bool) map[string]any {
	text, err := json.Marshal(payload)
	if err != nil {
		text = []byte(`{"error":"unencodable result"}`)
		isError = true
	}
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": isError,
	}
}

// toolList converts registry descriptors into MCP tool declarations.
func (s *Server) toolList() []map[string]any {
	descriptors := s.registry.Descriptors()
	tools := make([]map[string]any, 0, len(descriptors))
	for _, d := range descriptors {
		properties := map[string]any{}
		required := []string{}
		for _, f := range d.Schema {
			properties[f.Name] = map[string]any{
				"type":        jsonSchemaType(f.Type),
				"description": f.Description,
			}
			if f.Required {
				required = append(required, f.Name)
			}
		}
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		tools = append(tools, map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": schema,
		})
	}
	return tools
}

func jsonSchemaType(t ops.FieldType) string {
	switch t {
	case ops.TypeAmount, ops.TypeNumber:
		return "number"
	case ops.TypeLimit:
		return "integer"
	default:
		return "string"
	}
}

func (s *Server) reply(id json.RawMessage, result any) {
	s.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) fail(id json.RawMessage, code int, message string) {
	s.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Err(err).Error("encoding response")
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		s.log.Err(err).Error("writing response")
	}
}
