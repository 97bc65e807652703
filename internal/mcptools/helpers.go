// Package mcptools exposes the engine as MCP tools over stdio.
//
// Each tool is a struct holding the engine service, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Engine
// validation failures come back as tool errors; only infrastructure
// failures are returned as Go errors.
package mcptools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/store"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg accepts a JSON array of strings or a comma-separated string.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// userError reports whether err is the caller's fault and should become a
// tool error rather than a protocol error.
func userError(err error) bool {
	return errors.Is(err, engine.ErrInvalidUser) ||
		errors.Is(err, engine.ErrInvalidOutcome) ||
		errors.Is(err, engine.ErrInvalidSkills) ||
		errors.Is(err, engine.ErrNarrativeUnavailable) ||
		errors.Is(err, progression.ErrInvalidState) ||
		errors.Is(err, store.ErrConflict)
}

// result turns an engine error into the right kind of tool outcome.
func result(action string, err error) (*mcp.CallToolResult, error) {
	if userError(err) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err)), nil
	}
	return nil, fmt.Errorf("%s: %w", action, err)
}
