// Package project wires a configured source tree to its persistent graph.
package project

import (
	"fmt"
	"log/slog"

	"depgraph/internal/adapters/filesystem"
	"depgraph/internal/adapters/sqlite"
	"depgraph/internal/adapters/treesitter"
	"depgraph/internal/application/commands"
	"depgraph/internal/config"
	"depgraph/internal/golang"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// Project is an opened project: walker, extractor and graph sharing one store.
type Project struct {
	Config   *config.Config
	Storage  ports.PersistentStorage
	Graph    *graph.DependencyGraph
	Tree     *filesystem.Walker
	Frontend *treesitter.Extractor

	affectionFilter graph.SourceFilter
}

// Open resolves the project described by cfg and opens its graph database.
func Open(cfg *config.Config, logger *slog.Logger) (*Project, error) {
	tree, err := filesystem.NewWalker(cfg.Root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	modulePath, err := tree.ModulePath()
	if err != nil {
		return nil, err
	}
	filter, err := filesystem.GlobFilter(cfg.Affect)
	if err != nil {
		return nil, fmt.Errorf("affect: %w", err)
	}

	dbPath := cfg.DB
	if dbPath == "" {
		dbPath = sqlite.DefaultPath(tree.Root())
	}
	reg := golang.NewRegistry()
	storage, err := sqlite.Open(dbPath, reg)
	if err != nil {
		return nil, err
	}
	if storage.NeedsFullRebuild() {
		logger.Info("graph store is new or stale, next build is full", "db", dbPath)
	}

	opts := append(golang.Options(golang.AffectMode(cfg.Propagation)), graph.WithLogger(logger))
	g, err := graph.New(storage, reg, opts...)
	if err != nil {
		storage.Close()
		return nil, err
	}

	logger.Debug("project opened", "root", tree.Root(), "module", modulePath, "db", dbPath)
	return &Project{
		Config:          cfg,
		Storage:         storage,
		Graph:           g,
		Tree:            tree,
		Frontend:        treesitter.NewExtractor(modulePath, logger),
		affectionFilter: filter,
	}, nil
}

// BuildCommand returns a build over the project. A stale store forces a full
// build.
func (p *Project) BuildCommand(full bool) *commands.BuildCommand {
	cmd := commands.NewBuildCommand(p.Graph, p.Storage, p.Tree, p.Frontend)
	cmd.Full = full || p.Storage.NeedsFullRebuild()
	cmd.MaxRounds = p.Config.MaxRounds
	cmd.AffectionFilter = p.affectionFilter
	return cmd
}

// AffectionFilter returns the predicate built from the affect globs, nil
// when none are configured.
func (p *Project) AffectionFilter() graph.SourceFilter { return p.affectionFilter }

// Close releases the database. Unflushed writes are discarded.
func (p *Project) Close() error {
	return p.Graph.Close()
}
