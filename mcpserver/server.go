package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/quantfold/stratbox/config"
	"github.com/quantfold/stratbox/policy"
	"github.com/quantfold/stratbox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	engine    sandbox.Engine
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, engine sandbox.Engine) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		engine: engine,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("sandbox.max_timeout_sec", s.config.Sandbox.MaxTimeoutSec),
		zap.Int("sandbox.default_timeout_sec", s.config.Sandbox.DefaultTimeoutSec),
		zap.Int("sandbox.grace_period_ms", s.config.Sandbox.GracePeriodMS),
		zap.Int("sandbox.output_capacity_kb", s.config.Sandbox.OutputCapacityKB),
		zap.Int("sandbox.max_concurrent", s.config.Sandbox.MaxConcurrent),
		zap.Uint64("sandbox.max_steps", s.config.Sandbox.MaxSteps),
		zap.String("sandbox.default_tier", s.config.Sandbox.DefaultTier),
	)

	s.mcpServer = server.NewMCPServer("stratbox-engine", "A sandboxed strategy execution server")

	// Register the execute_strategy tool
	s.registerExecuteStrategyTool()

	return s, nil
}

// registerExecuteStrategyTool registers the execute_strategy tool
func (s *MCPServer) registerExecuteStrategyTool() {
	tool := mcp.Tool{
		Name:        "execute_strategy",
		Description: "Execute untrusted strategy code in a sandboxed environment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Strategy source code",
				},
				"timeout_sec": map[string]any{
					"type":        "integer",
					"description": "Wall-clock budget in seconds (defaults to the configured default; rejected above the platform maximum)",
				},
				"tier": map[string]any{
					"type":        "string",
					"description": "Capability tier",
					"enum":        []string{"minimal", "analysis"},
				},
				"bindings": map[string]any{
					"type":        "string",
					"description": "JSON object of values exposed to the run, e.g. candle columns (optional)",
				},
				"observe": map[string]any{
					"type":        "array",
					"description": "Names whose final values should be returned (optional)",
					"items":       map[string]any{"type": "string"},
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteStrategy)
}

// runResponse is the wire shape of an ExecutionResult.
type runResponse struct {
	RunID           string                   `json:"run_id"`
	Succeeded       bool                     `json:"succeeded"`
	Result          *sandbox.Value           `json:"result,omitempty"`
	Stdout          string                   `json:"stdout"`
	Stderr          string                   `json:"stderr"`
	StdoutTruncated bool                     `json:"stdout_truncated"`
	StderrTruncated bool                     `json:"stderr_truncated"`
	UpdatedBindings map[string]sandbox.Value `json:"updated_bindings,omitempty"`
	Error           *sandbox.Error           `json:"error,omitempty"`
	ElapsedMS       int64                    `json:"elapsed_ms"`
}

// handleExecuteStrategy handles the execute_strategy tool
func (s *MCPServer) handleExecuteStrategy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("strategy execution requested")

	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	timeout := s.config.DefaultTimeout()
	if sec := request.GetInt("timeout_sec", 0); sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}

	tier := policy.ParseTier(request.GetString("tier", s.config.Sandbox.DefaultTier))

	var bindings map[string]sandbox.Value
	if raw := request.GetString("bindings", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &bindings); err != nil {
			return nil, fmt.Errorf("failed to decode bindings: %w", err)
		}
	}

	observe := request.GetStringSlice("observe", nil)

	s.logger.Info("executing strategy in sandbox",
		zap.String("tier", string(tier)),
		zap.Duration("timeout", timeout),
		zap.Int("binding_count", len(bindings)),
		zap.Int("observe_count", len(observe)))

	req := sandbox.ExecutionRequest{
		Code:     code,
		Bindings: bindings,
		Observe:  observe,
		Timeout:  timeout,
		Tier:     tier,
	}

	result, err := s.engine.Run(ctx, req)
	if err != nil {
		s.logger.Error("sandbox execution failed",
			zap.Error(err),
			zap.String("run_id", result.RunID))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("strategy execution completed",
		zap.String("run_id", result.RunID),
		zap.Bool("succeeded", result.Succeeded),
		zap.Duration("elapsed", result.Elapsed),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	resp := runResponse{
		RunID:           result.RunID,
		Succeeded:       result.Succeeded,
		Result:          result.Result,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		StdoutTruncated: result.StdoutTruncated,
		StderrTruncated: result.StderrTruncated,
		UpdatedBindings: result.UpdatedBindings,
		Error:           result.Err,
		ElapsedMS:       result.Elapsed.Milliseconds(),
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
