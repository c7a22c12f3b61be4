// Package server exposes the crew operation surface over MCP.
//
// Two servers share the handler set. The lead server carries the full
// surface the team lead drives: team lifecycle, spawning, messaging,
// inbox reads, and the task graph. The external server is the reduced
// surface handed to bridged agents: send_message and the task tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Iron-Ham/crew/internal/backend"
	"github.com/Iron-Ham/crew/internal/lifecycle"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/taskgraph"
	"github.com/Iron-Ham/crew/internal/team"
	"github.com/Iron-Ham/crew/internal/tmux"
	"github.com/Iron-Ham/crew/internal/watcher"
)

const serverVersion = "0.1.0"

// Deps carries the stores and coordinator the tool handlers call.
type Deps struct {
	Registry *team.Registry
	Mail     *mailbox.Store
	Tasks    *taskgraph.Store
	Coord    *lifecycle.Coordinator
	Tmux     *tmux.Client
	Watchers *watcher.Manager
	Backends *backend.Registry
	Log      *logging.Logger
}

// Server wraps an MCP server around the crew stores.
type Server struct {
	mcp  *mcpserver.MCPServer
	deps Deps
	log  *logging.Logger

	mu             sync.Mutex
	defaultBackend string
}

// NewLead builds the full lead-side server. The connecting client's
// name picks the default spawn backend: a claude client spawns claude
// teammates unless the spawn call says otherwise.
func NewLead(deps Deps) *Server {
	s := newServer(deps)

	hooks := &mcpserver.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, message *mcplib.InitializeRequest, result *mcplib.InitializeResult) {
		name := message.Params.ClientInfo.Name
		b := backend.DetectFromClient(name)
		if b == "" {
			return
		}
		if s.deps.Backends != nil {
			if err := s.deps.Backends.Enable(b); err != nil {
				s.log.Warn("cannot enable detected backend", "backend", b, "error", err)
				return
			}
		}
		s.setDefaultBackend(b)
		s.log.Info("client backend detected", "client", name, "backend", b)
	})

	s.mcp = mcpserver.NewMCPServer("crew", serverVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithHooks(hooks),
	)
	s.registerLeadTools()
	return s
}

// NewExternal builds the reduced server bridged agents connect to.
func NewExternal(deps Deps) *Server {
	s := newServer(deps)
	s.mcp = mcpserver.NewMCPServer("crew-external", serverVersion,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerExternalTools()
	return s
}

func newServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	return &Server{
		deps: deps,
		log:  deps.Log.WithComponent("server"),
	}
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// DefaultBackend reports the spawn backend inferred from the client.
func (s *Server) DefaultBackend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultBackend
}

func (s *Server) setDefaultBackend(name string) {
	s.mu.Lock()
	s.defaultBackend = name
	s.mu.Unlock()
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func errorResult(format string, args ...any) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

// withSenderReminder appends the sender signature reminder to a plain
// message body so agents know who wrote it and how to reply.
func withSenderReminder(content, sender string) string {
	return fmt.Sprintf("%s\n\n<system_reminder>This message was sent from %s. Use your send_message tool to respond.</system_reminder>", content, sender)
}

// toIntSlice converts a JSON array argument into task ids.
func toIntSlice(raw any) ([]int, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of task ids")
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("task ids must be numbers, got %T", item)
		}
		out = append(out, int(n))
	}
	return out, nil
}
