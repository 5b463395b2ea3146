package commands

import (
	"context"
	"errors"
	"io/fs"

	"depgraph/internal/application"
	"depgraph/internal/ctxlog"
	"depgraph/internal/domain"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// ImpactResult is the outcome of a dry-run differentiate.
type ImpactResult struct {
	Incremental  bool
	Affected     []domain.NodeSource
	DeletedNodes []domain.ReferenceID
	WithErrors   []domain.NodeSource
}

// ImpactCommand reports what recompiling the given sources would affect,
// without touching the graph. Sources missing on disk count as deleted.
type ImpactCommand struct {
	graph    *graph.DependencyGraph
	tree     ports.SourceTree
	frontend ports.Frontend
	Sources  []string
}

// NewImpactCommand creates a new ImpactCommand
func NewImpactCommand(g *graph.DependencyGraph, tree ports.SourceTree, frontend ports.Frontend, sources []string) *ImpactCommand {
	return &ImpactCommand{graph: g, tree: tree, frontend: frontend, Sources: sources}
}

// Validate checks the command arguments
func (c *ImpactCommand) Validate() error {
	if len(c.Sources) == 0 {
		return &application.ValidationError{Field: "sources", Message: "at least one source is required"}
	}
	for _, s := range c.Sources {
		if err := application.ValidateSourcePath("sources", s); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the impact analysis
func (c *ImpactCommand) Execute(ctx context.Context) (*ImpactResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)

	type extracted struct {
		src   domain.NodeSource
		nodes []domain.Node
	}
	var compiled []extracted
	var base, deleted, failed []domain.NodeSource
	for _, p := range c.Sources {
		src := domain.NewNodeSource(p)
		content, err := c.tree.Read(src)
		if errors.Is(err, fs.ErrNotExist) {
			deleted = append(deleted, src)
			continue
		}
		if err != nil {
			return nil, err
		}
		base = append(base, src)
		nodes, err := c.frontend.Extract(src, content)
		if err != nil {
			log.Warn("source failed to compile", "source", p, "error", err)
			failed = append(failed, src)
			continue
		}
		compiled = append(compiled, extracted{src: src, nodes: nodes})
	}

	delta, err := c.graph.CreateDelta(base, deleted, false)
	if err != nil {
		return nil, err
	}
	for _, e := range compiled {
		delta.MarkCompiled(e.src)
		for _, n := range e.nodes {
			if err := delta.Associate(n, e.src); err != nil {
				return nil, err
			}
		}
	}

	params := graph.DefaultParameters("impact")
	params.CompiledWithErrors = len(failed) > 0
	params.BelongsToCurrentCompilationChunk = c.tree.InScope
	result, err := c.graph.Differentiate(delta, params)
	if err != nil {
		return nil, err
	}

	out := &ImpactResult{
		Incremental: result.IsIncremental(),
		Affected:    result.AffectedSources(),
		WithErrors:  failed,
	}
	for _, n := range result.DeletedNodes() {
		out.DeletedNodes = append(out.DeletedNodes, n.ReferenceID())
	}
	return out, nil
}
