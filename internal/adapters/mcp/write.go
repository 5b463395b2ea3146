package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"depgraph/internal/application"
	"depgraph/internal/application/commands"
)

// RegisterWriteTools adds the tools that modify the graph to the MCP server.
func RegisterWriteTools(s *server.MCPServer, ws *Workspace) {
	s.AddTool(buildTool(), buildHandler(ws))
}

// --- build ---

func buildTool() mcp.Tool {
	return mcp.NewTool("build",
		mcp.WithDescription("Bring the dependency graph up to date with the files on disk. Reports every round with the sources it recompiled."),
		mcp.WithBoolean("full",
			mcp.Description("Discard the graph and rebuild it from scratch"),
		),
	)
}

func buildHandler(ws *Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ws.buildMu.Lock()
		defer ws.buildMu.Unlock()

		cmd := commands.NewBuildCommand(ws.Graph, ws.States, ws.Tree, ws.Frontend)
		cmd.Full = req.GetBool("full", false)
		cmd.AffectionFilter = ws.AffectionFilter
		if ws.MaxRounds > 0 {
			cmd.MaxRounds = ws.MaxRounds
		}
		stats, err := cmd.Execute(ws.context(ctx))
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "scanned %d files, %d rounds, full rebuild: %v\n", stats.FilesScanned, len(stats.Rounds), stats.FullRebuild)
		for i, r := range stats.Rounds {
			fmt.Fprintf(&sb, "round %d: compiled %s", i+1, strings.Join(application.SourcePaths(r.Compiled), ", "))
			if len(r.Deleted) > 0 {
				fmt.Fprintf(&sb, "; deleted %s", strings.Join(application.SourcePaths(r.Deleted), ", "))
			}
			if len(r.WithErrors) > 0 {
				fmt.Fprintf(&sb, "; failed %s", strings.Join(application.SourcePaths(r.WithErrors), ", "))
			}
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
