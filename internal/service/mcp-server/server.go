package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"jira_search/internal/logger"
)

// NewServer creates a new MCP server exposing the Jira search tools
func NewServer(searcher Searcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jira search",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	registerJiraTools(s, searcher)

	return s
}

// Serve starts the MCP server on stdio
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s, server.WithErrorLogger(logger.StdLogger()))
}
