package mcp

import (
	"log/slog"

	"github.com/claude/repmax/internal/models"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools registered.
func New(ds DataSource, progCfg models.ProgressionConfig, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepMax", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("RepMax strength analytics server. Estimate one-rep maxes, inspect personal records and max history, preview progression decisions, and review prescribed-vs-actual workout deviations."),
	)

	h := &handlers{ds: ds, progCfg: progCfg, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolEstimateOneRM, Handler: h.estimateOneRM},
		server.ServerTool{Tool: toolGetCurrentMax, Handler: h.getCurrentMax},
		server.ServerTool{Tool: toolGetMaxHistory, Handler: h.getMaxHistory},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetProgression, Handler: h.getProgression},
		server.ServerTool{Tool: toolGetDeviations, Handler: h.getDeviations},
		server.ServerTool{Tool: toolGetSetLogs, Handler: h.getSetLogs},
	)

	return s
}

// handlers holds dependencies for MCP tool handlers.
type handlers struct {
	ds      DataSource
	progCfg models.ProgressionConfig
	log     *slog.Logger
}
