package livedata

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPStore talks to a telemetry backend exposed as an MCP server over stdio.
// The backend is expected to provide a single tool that accepts a service
// name plus optional time range and returns telemetry records as text.
type MCPStore struct {
	command string
	args    []string
	tool    string

	mu     sync.Mutex
	client *client.Client
}

// NewMCPStore configures a stdio MCP telemetry client. The subprocess is
// started lazily on first query.
func NewMCPStore(command string, args []string, tool string) *MCPStore {
	return &MCPStore{command: command, args: args, tool: tool}
}

func (s *MCPStore) Name() string { return "mcp:" + s.tool }

// connect starts the MCP subprocess and runs the initialize handshake.
func (s *MCPStore) connect(ctx context.Context) (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	c, err := client.NewStdioMCPClient(s.command, nil, s.args...)
	if err != nil {
		return nil, fmt.Errorf("starting MCP client %q: %w", s.command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "hragd",
		Version: "1.0.0",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP session: %w", err)
	}

	s.client = c
	return c, nil
}

// Query calls the configured telemetry tool and parses its text content.
func (s *MCPStore) Query(ctx context.Context, q Query) ([]Record, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	args := map[string]any{"service": q.Service}
	if q.TimeRange != "" {
		args["time_range"] = q.TimeRange
	}
	if q.Intent != "" {
		args["intent"] = q.Intent
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = s.tool
	req.Params.Arguments = args

	result, err := c.CallTool(ctx, req)
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("calling tool %q: %w", s.tool, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %q returned an error", s.tool)
	}

	var records []Record
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			records = append(records, parseRecords(text.Text, q.Service)...)
		}
	}
	return records, nil
}

// Healthy reports whether the backend can be reached.
func (s *MCPStore) Healthy(ctx context.Context) bool {
	c, err := s.connect(ctx)
	if err != nil {
		return false
	}
	return c.Ping(ctx) == nil
}

// Close shuts down the MCP subprocess.
func (s *MCPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// reset drops a broken session so the next query reconnects.
func (s *MCPStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
