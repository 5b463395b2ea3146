package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"depgraph/internal/application"
	"depgraph/internal/application/commands"
	"depgraph/internal/ctxlog"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// Workspace bundles the graph and the project it describes.
type Workspace struct {
	Graph           *graph.DependencyGraph
	States          ports.SourceStates
	Tree            ports.SourceTree
	Frontend        ports.Frontend
	MaxRounds       int
	AffectionFilter graph.SourceFilter
	Logger          *slog.Logger

	// Serializes builds; a build spans several integrations.
	buildMu sync.Mutex
}

func (ws *Workspace) context(ctx context.Context) context.Context {
	if ws.Logger == nil {
		return ctx
	}
	return ctxlog.WithLogger(ctx, ws.Logger)
}

// RegisterReadTools adds all read-only graph tools to the MCP server.
func RegisterReadTools(s *server.MCPServer, ws *Workspace) {
	s.AddTool(dependentsTool(), dependentsHandler(ws))
	s.AddTool(sourcesTool(), sourcesHandler(ws))
	s.AddTool(nodesTool(), nodesHandler(ws))
	s.AddTool(impactTool(), impactHandler(ws))
}

// --- dependents ---

func dependentsTool() mcp.Tool {
	return mcp.NewTool("dependents",
		mcp.WithDescription("List the declarations that depend on a node. Node IDs look like internal/store#Cache or internal/store#Cache.Get."),
		mcp.WithString("node_id",
			mcp.Description("ID of the node to look up"),
			mcp.Required(),
		),
		mcp.WithBoolean("transitive",
			mcp.Description("Follow dependents of dependents"),
		),
	)
}

func dependentsHandler(ws *Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cmd := commands.NewDependentsCommand(ws.Graph, req.GetString("node_id", ""), req.GetBool("transitive", false))
		ids, err := cmd.Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatLines(application.IDStrings(ids))
	}
}

// --- sources ---

func sourcesTool() mcp.Tool {
	return mcp.NewTool("sources",
		mcp.WithDescription("List the source files a node was produced from. Without a node ID lists every source in the graph."),
		mcp.WithString("node_id",
			mcp.Description("ID of the node. Omit to list all sources."),
		),
	)
}

func sourcesHandler(ws *Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sources, err := commands.NewSourcesCommand(ws.Graph, req.GetString("node_id", "")).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return formatLines(application.SourcePaths(sources))
	}
}

// --- nodes ---

func nodesTool() mcp.Tool {
	return mcp.NewTool("nodes",
		mcp.WithDescription("List the declarations a source file produces, with their kind, signature and the nodes they use."),
		mcp.WithString("source",
			mcp.Description("Source path relative to the project root"),
			mcp.Required(),
		),
	)
}

func nodesHandler(ws *Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nodes, err := commands.NewNodesCommand(ws.Graph, req.GetString("source", "")).Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		var sb strings.Builder
		for _, n := range nodes {
			fmt.Fprintf(&sb, "%s  %s  %s\n", n.ID, n.Kind, n.Signature)
			for _, u := range n.Uses {
				fmt.Fprintf(&sb, "  uses %s\n", u)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- impact ---

func impactTool() mcp.Tool {
	return mcp.NewTool("impact",
		mcp.WithDescription("Dry run: report which sources would need recompiling if the given sources changed to their current content. The graph is not modified."),
		mcp.WithArray("sources",
			mcp.Description("Source paths relative to the project root"),
			mcp.Required(),
			mcp.WithStringItems(),
		),
	)
}

func impactHandler(ws *Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cmd := commands.NewImpactCommand(ws.Graph, ws.Tree, ws.Frontend, req.GetStringSlice("sources", nil))
		result, err := cmd.Execute(ws.context(ctx))
		if err != nil {
			return toolError(err)
		}
		if !result.Incremental {
			return mcp.NewToolResultText("Not incremental: a full rebuild would be required."), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "affected: %d\n", len(result.Affected))
		for _, p := range application.SourcePaths(result.Affected) {
			fmt.Fprintf(&sb, "  %s\n", p)
		}
		for _, id := range application.IDStrings(result.DeletedNodes) {
			fmt.Fprintf(&sb, "deleted %s\n", id)
		}
		for _, p := range application.SourcePaths(result.WithErrors) {
			fmt.Fprintf(&sb, "failed %s\n", p)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func formatLines(lines []string) (*mcp.CallToolResult, error) {
	if len(lines) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n") + "\n"), nil
}
