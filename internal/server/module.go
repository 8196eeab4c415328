package server

import (
	"log/slog"

	plugins "github.com/alex-galey/restricted-domains/internal/server-plugin/application"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// Version is reported to MCP clients. It is set by the binary at startup.
var Version = "dev"

// NewMCPServerInstance creates a new MCP server instance.
func NewMCPServerInstance(logger *slog.Logger) *server.MCPServer {
	logger.Debug("Creating MCP server instance")
	mcpServer := server.NewMCPServer(
		"Restricted Domains MCP Server",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)
	logger.Debug("MCP server instance created successfully")
	return mcpServer
}

var Module = fx.Module("server",
	fx.Provide(
		NewMCPServerInstance,
		plugins.NewServerPluginRegistry,
		fx.Annotate(
			NewMCPAdapter,
			fx.From(new(*plugins.ServerPluginRegistry)),
		),
	),
	fx.Invoke(registerServerHooks),
)
