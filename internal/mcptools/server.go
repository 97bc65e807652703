package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abhisek/numbersense/internal/engine"
)

// Tool is one registered MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools returns every tool backed by svc, in registration order.
func Tools(svc *engine.Service) []Tool {
	return []Tool{
		NewSubmitOutcomeTool(svc),
		NewRiskProfileTool(svc),
		NewScreenTool(svc),
		NewSupportTool(svc),
		NewLevelsTool(svc),
		NewResetLevelTool(svc),
		NewSetSkillsTool(svc),
	}
}

// NewServer creates the MCP server with all tools registered.
func NewServer(svc *engine.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"numbersense",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(svc) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `numbersense tracks early arithmetic progression and screens for number-sense difficulties.

Record every attempted task with numbersense_submit_outcome. Ask for numbersense_risk_profile
only after a learner has practiced across several sessions: confidence grows with the session count.
Risk profiles are screening aids for teachers and parents, never a diagnosis.`
