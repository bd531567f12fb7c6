// Package mcp exposes tools served by an MCP (Model Context Protocol)
// server as a tool.Provider. The provider launches the server as a
// subprocess and speaks the stdio transport; the connection is established
// lazily on the first Tools call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/logging"
	"github.com/osok/agent-patterns/tool"
)

const protocolVersion = "2024-11-05"

// Config describes how to launch and filter one MCP server.
type Config struct {
	// Name identifies this provider in logs and errors.
	Name string

	// Command is the server executable; Args and Env are passed through to
	// the subprocess.
	Command string
	Args    []string
	Env     map[string]string

	// Include limits exposed tools to those matching at least one glob
	// pattern (e.g. "fetch_*"). Empty means all tools.
	Include []string
}

// Provider is a lazy, stdio-transport MCP tool provider.
type Provider struct {
	cfg      Config
	logger   logging.Logger
	includes []glob.Glob

	mu        sync.Mutex
	client    *client.Client
	tools     []tool.Tool
	connected bool
}

// New validates the config, compiles the include patterns and returns an
// unconnected provider.
func New(cfg Config, logger logging.Logger) (*Provider, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp provider %s: command is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	includes := make([]glob.Glob, 0, len(cfg.Include))
	for _, pattern := range cfg.Include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("mcp provider %s: invalid include pattern %q: %w", cfg.Name, pattern, err)
		}
		includes = append(includes, g)
	}

	return &Provider{
		cfg:      cfg,
		logger:   logger,
		includes: includes,
	}, nil
}

// Name implements tool.Provider.
func (p *Provider) Name() string { return p.cfg.Name }

// Tools returns the server's tool set, connecting on first use.
func (p *Provider) Tools(ctx context.Context) ([]tool.Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		if err := p.connect(ctx); err != nil {
			return nil, fmt.Errorf("mcp provider %s: %w", p.cfg.Name, err)
		}
	}

	return p.tools, nil
}

// Close shuts down the server subprocess.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	err := p.client.Close()
	p.client = nil
	p.tools = nil
	p.connected = false
	return err
}

func (p *Provider) connect(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(p.cfg.Command, envSlice(p.cfg.Env), p.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ClientInfo = mcpproto.Implementation{
		Name:    "agent-patterns",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = protocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	var tools []tool.Tool
	for _, remote := range listResp.Tools {
		if !p.included(remote.Name) {
			continue
		}
		tools = append(tools, &remoteTool{
			provider:    p,
			name:        remote.Name,
			description: remote.Description,
			schema:      schemaToMap(remote.InputSchema),
		})
	}

	p.client = mcpClient
	p.tools = tools
	p.connected = true

	p.logger.Info("mcp.connected", "provider", p.cfg.Name, "command", p.cfg.Command, "tools", len(tools))

	return nil
}

func (p *Provider) included(name string) bool {
	if len(p.includes) == 0 {
		return true
	}
	for _, g := range p.includes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// schemaToMap round-trips the SDK schema struct through JSON to get the plain
// map shape the tool interface expects.
func schemaToMap(schema mcpproto.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

// remoteTool adapts one MCP server tool to the tool.Tool interface.
type remoteTool struct {
	provider    *Provider
	name        string
	description string
	schema      map[string]any
}

func (t *remoteTool) Name() string { return t.name }

func (t *remoteTool) Description() string { return t.description }

func (t *remoteTool) Parameters() map[string]any { return t.schema }

// Call forwards the invocation to the MCP server and normalizes the result.
// Server-reported errors surface as *tool.ToolError with code MCP_ERROR.
func (t *remoteTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	t.provider.mu.Lock()
	mcpClient := t.provider.client
	t.provider.mu.Unlock()

	if mcpClient == nil {
		return nil, tool.NewToolError(t.name, "mcp client not connected", "EXECUTION_ERROR")
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(toolCtx.Context(), req)
	if err != nil {
		return nil, tool.NewToolError(t.name, err.Error(), "EXECUTION_ERROR")
	}

	texts := textContents(resp)

	if resp.IsError {
		msg := "unknown error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return nil, tool.NewToolError(t.name, msg, "MCP_ERROR")
	}

	switch len(texts) {
	case 0:
		return map[string]any{}, nil
	case 1:
		return map[string]any{"result": texts[0]}, nil
	default:
		return map[string]any{"results": texts}, nil
	}
}

func textContents(resp *mcpproto.CallToolResult) []string {
	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcpproto.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return texts
}
