// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// strategy-execution engine. It uses the mark3labs/mcp-go library to handle
// the protocol details and provides the execute_strategy tool as the primary
// interface for sandboxed strategy runs. The server performs no
// authentication or authorization; the caller layer is responsible for
// confirming ownership and quota before invoking the tool.
package mcpserver
