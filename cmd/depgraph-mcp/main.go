package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/viper"

	mcpadapter "depgraph/internal/adapters/mcp"
	"depgraph/internal/config"
	"depgraph/internal/logging"
	"depgraph/internal/project"
)

func main() {
	rootFlag := flag.String("root", config.DefaultRoot, "project root")
	dbFlag := flag.String("db", "", "graph database path")
	flag.Parse()

	v := viper.New()
	v.Set("root", *rootFlag)
	if *dbFlag != "" {
		v.Set("db", *dbFlag)
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("depgraph-mcp: %v", err)
	}
	// stdout carries the protocol.
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	p, err := project.Open(cfg, logger)
	if err != nil {
		log.Fatalf("depgraph-mcp: %v", err)
	}
	defer p.Close()

	ws := &mcpadapter.Workspace{
		Graph:           p.Graph,
		States:          p.Storage,
		Tree:            p.Tree,
		Frontend:        p.Frontend,
		MaxRounds:       cfg.MaxRounds,
		AffectionFilter: p.AffectionFilter(),
		Logger:          logger,
	}

	mcpServer := server.NewMCPServer(
		"depgraph-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	mcpadapter.RegisterReadTools(mcpServer, ws)
	mcpadapter.RegisterWriteTools(mcpServer, ws)

	if err := server.ServeStdio(mcpServer); err != nil {
		log.Fatalf("depgraph-mcp: %v", err)
	}
}
