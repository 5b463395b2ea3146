package graph

import (
	"fmt"
	"log/slog"
	"time"

	"depgraph/internal/domain"
)

// Integrate commits a differentiate result into the graph and flushes storage.
func (g *DependencyGraph) Integrate(result *DifferentiateResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	delta := result.Delta()
	params := result.Parameters()

	deltaSources, err := delta.CompiledSources()
	if err != nil {
		return fmt.Errorf("failed to list delta sources: %w", err)
	}

	processed := domain.NewSources()
	if !params.CompiledWithErrors {
		processed.Add(delta.BaseSources()...)
	}
	processed.Add(deltaSources...)
	processed.Add(delta.DeletedSources()...)

	for _, node := range result.DeletedNodes() {
		id := node.ReferenceID()
		sources, err := g.nodeToSources.Get(id)
		if err != nil {
			return err
		}
		remaining := domain.NewSources(sources...).Minus(processed)
		if err := g.nodeToSources.Put(id, remaining); err != nil {
			return fmt.Errorf("failed to update sources of %s: %w", id, err)
		}
	}

	for _, src := range delta.DeletedSources() {
		if err := g.sourceToNodes.Remove(src); err != nil {
			return fmt.Errorf("failed to remove source %s: %w", src, err)
		}
	}

	var updatedNodes []domain.Node
	for _, src := range deltaSources {
		nodes, err := g.sourceToNodes.Get(src)
		if err != nil {
			return err
		}
		updatedNodes = append(updatedNodes, nodes...)
	}
	for _, idx := range g.indices {
		deltaIdx := delta.Index(idx.name)
		if deltaIdx == nil {
			return &ConfigurationError{GraphIndices: indexNames(g.indices), DeltaIndices: indexNames(delta.indices)}
		}
		if err := idx.integrate(result.DeletedNodes(), updatedNodes, deltaIdx); err != nil {
			return err
		}
	}

	content := g.contentKey()
	compiled := domain.NewSources(deltaSources...)
	if !params.CompiledWithErrors {
		compiled.Add(delta.BaseSources()...)
	}
	compiled.Remove(delta.DeletedSources()...)
	for _, src := range compiled.Items() {
		before, err := g.sourceToNodes.Get(src)
		if err != nil {
			return err
		}
		after, err := delta.NodesOf(src)
		if err != nil {
			return err
		}
		if err := writeDiff(g.sourceToNodes, src, before, after, domain.SameKey, content); err != nil {
			return fmt.Errorf("failed to write nodes of %s: %w", src, err)
		}
	}

	nodeIDs, err := delta.RegisteredNodes()
	if err != nil {
		return err
	}
	for _, id := range nodeIDs {
		before, err := g.nodeToSources.Get(id)
		if err != nil {
			return err
		}
		produced, err := delta.SourcesOf(id)
		if err != nil {
			return err
		}
		after := domain.NewSources(before...).Minus(processed)
		merged := domain.NewSources(after...)
		merged.Add(produced...)
		if err := writeDiff(g.nodeToSources, id, before, merged.Items(), domain.NodeSource.Path, domain.NodeSource.Path); err != nil {
			return fmt.Errorf("failed to write sources of %s: %w", id, err)
		}
	}

	if err := g.storage.Flush(); err != nil {
		return fmt.Errorf("failed to flush graph: %w", err)
	}
	g.logger.Debug("integrated delta",
		slog.String("session", result.SessionName()),
		slog.Int("deleted_nodes", len(result.DeletedNodes())),
		slog.Int("compiled_sources", len(deltaSources)),
		slog.Duration("duration", time.Since(start)))
	return nil
}
