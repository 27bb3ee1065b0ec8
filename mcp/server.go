package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/agent-assistant/logger"
	"github.com/zhubert/agent-assistant/wire"
)

// DefaultRequestTimeout bounds how long a tools/call waits for the user.
const DefaultRequestTimeout = 10 * time.Minute

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "agent-assistant"
	ServerVersion   = "1.0.0"
)

// Requester sends a binary request to the front-ends and waits for the
// reply correlated by requestID. bridge.Bridge implements it.
type Requester interface {
	SendAndAwait(ctx context.Context, msg *wire.Message, requestID string, timeout time.Duration) (*wire.Message, error)
}

// Server implements an MCP server over line-delimited JSON-RPC
type Server struct {
	reader    *bufio.Reader
	writer    io.Writer
	requester Requester
	timeout   time.Duration
	info      ServerInfo
	newID     func() string
	mu        sync.Mutex // serializes writes
	log       *slog.Logger
}

// ServerOption is a functional option for configuring Server
type ServerOption func(*Server)

// WithRequestTimeout sets how long a tool call waits for its reply.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithServerInfo overrides the name and version reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = ServerInfo{Name: name, Version: version}
	}
}

// WithIDGenerator replaces the request identifier generator.
func WithIDGenerator(fn func() string) ServerOption {
	return func(s *Server) {
		s.newID = fn
	}
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a new MCP server reading requests from r and writing
// responses to w. Tool calls are forwarded through requester.
func NewServer(r io.Reader, w io.Writer, requester Requester, opts ...ServerOption) *Server {
	s := &Server{
		reader:    bufio.NewReader(r),
		writer:    w,
		requester: requester,
		timeout:   DefaultRequestTimeout,
		info:      ServerInfo{Name: ServerName, Version: ServerVersion},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("mcp")
	}
	return s
}

// Run processes input lines in order until EOF, a read error or ctx is
// done. EOF is a clean shutdown and returns nil.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("server starting")

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go s.readLines(lines, readErr, done)

	for {
		select {
		case line := <-lines:
			s.handleLine(ctx, line)
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				s.log.Info("EOF received, shutting down")
				return nil
			}
			s.log.Error("read error", "error", err)
			return fmt.Errorf("read input: %w", err)
		case <-ctx.Done():
			s.log.Info("context done, shutting down")
			return ctx.Err()
		}
	}
}

// readLines frames the input into lines. A final line without a trailing
// newline is still delivered before the read error.
func (s *Server) readLines(lines chan<- string, readErr chan<- error, done <-chan struct{}) {
	for {
		line, err := s.reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	s.log.Debug("received message", "line", line)

	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.log.Warn("dropping unparseable line", "error", err)
		return
	}

	s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
		s.log.Debug("initialized notification received")
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		s.log.Debug("ignoring unknown method", "method", req.Method)
	}
}

func (s *Server) handleInitialize(req *JSONRPCRequest) {
	s.sendResult(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capability{
			Tools: &ToolCapability{},
		},
		ServerInfo: s.info,
	})
}

func (s *Server) handleToolsList(req *JSONRPCRequest) {
	s.sendResult(req.ID, ToolsListResult{Tools: toolDefinitions()})
}

func (s *Server) handleToolsCall(ctx context.Context, req *JSONRPCRequest) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.log.Warn("invalid tools/call params", "error", err)
		s.sendError(req.ID, CodeInvalidParams, "Invalid params")
		return
	}

	t, ok := lookupTool(params.Name)
	if !ok {
		s.log.Warn("unknown tool", "tool", params.Name)
		s.sendError(req.ID, CodeInvalidParams, "Unknown tool: "+params.Name)
		return
	}

	requestID := s.newID()
	log := s.log.With("tool", params.Name, "requestID", requestID)

	msg, err := t.request(requestID, params.Arguments)
	if err != nil {
		log.Warn("invalid tool arguments", "error", err)
		s.sendError(req.ID, CodeInvalidParams, "Invalid params")
		return
	}

	log.Info("tool called")
	start := time.Now()
	reply, err := s.requester.SendAndAwait(ctx, msg, requestID, s.timeout)
	if err != nil {
		log.Error("tool call failed", "error", err, "elapsed", time.Since(start))
		s.sendError(req.ID, CodeInternalError, "Internal error: "+err.Error())
		return
	}
	log.Info("tool call completed", "elapsed", time.Since(start))

	s.sendResult(req.ID, toolResult(reply))
}

// toolResult keeps the text items of a reply in order. Other content
// types are dropped.
func toolResult(reply *wire.Message) ToolCallResult {
	contents, isError := reply.Contents()
	items := make([]ContentItem, 0, len(contents))
	for _, c := range contents {
		if c.Type != wire.ContentTypeText || c.Text == nil {
			continue
		}
		items = append(items, ContentItem{Type: "text", Text: c.Text.Text})
	}
	return ToolCallResult{Content: items, IsError: isError}
}

func (s *Server) sendResult(id json.RawMessage, result any) {
	s.send(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) {
	s.send(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) send(resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = fmt.Fprintf(s.writer, "%s\n", data)
	if err != nil {
		s.log.Error("failed to write response", "error", err)
	} else {
		s.log.Debug("sent response", "data", string(data))
	}
}
