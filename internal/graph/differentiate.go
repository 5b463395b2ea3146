package graph

import (
	"fmt"
	"log/slog"

	"depgraph/internal/adapters/memory"
	"depgraph/internal/domain"
)

// Differentiate compares delta against the graph and computes the deleted
// nodes and the sources affected by the change. It does not modify the graph.
func (g *DependencyGraph) Differentiate(delta *Delta, params DifferentiateParameters) (*DifferentiateResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.differentiate(delta, params, true)
}

func (g *DependencyGraph) differentiate(delta *Delta, params DifferentiateParameters, followTransitive bool) (*DifferentiateResult, error) {
	log := g.logger.With("session", params.SessionName)

	deltaSources, err := delta.CompiledSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list delta sources: %w", err)
	}
	compiled := domain.NewSources(delta.BaseSources()...)
	compiled.Add(deltaSources...)

	processed := domain.NewSources()
	if delta.IsSourceOnly() {
		processed.Add(delta.DeletedSources()...)
	} else {
		processed.Add(delta.BaseSources()...)
		processed.Add(deltaSources...)
		processed.Add(delta.DeletedSources()...)
	}

	nodesWithErrors := domain.NewNodes()
	beforeScope := processed
	if params.CompiledWithErrors {
		produced := domain.NewSources(deltaSources...)
		for _, src := range delta.BaseSources() {
			if produced.Contains(src) {
				continue
			}
			nodes, err := g.NodesOf(src)
			if err != nil {
				return nil, err
			}
			nodesWithErrors.Add(nodes...)
		}
		beforeScope = domain.NewSources(deltaSources...)
		beforeScope.Add(delta.DeletedSources()...)
	}

	nodesBefore := domain.NewNodes()
	for _, src := range beforeScope.Items() {
		nodes, err := g.NodesOf(src)
		if err != nil {
			return nil, err
		}
		nodesBefore.Add(nodes...)
	}
	nodesAfter := domain.NewNodes()
	for _, src := range deltaSources {
		nodes, err := delta.NodesOf(src)
		if err != nil {
			return nil, err
		}
		nodesAfter.Add(nodes...)
	}

	deletedNodes := nodesBefore.Minus(nodesAfter)
	result := &DifferentiateResult{
		sessionName:  params.SessionName,
		params:       params,
		delta:        delta,
		deletedNodes: deletedNodes,
		incremental:  true,
	}
	if !params.CalculateAffected {
		return result, nil
	}

	nonIncremental := func(reason string, args ...any) (*DifferentiateResult, error) {
		log.Info("differentiate is not incremental: "+reason, args...)
		result.incremental = false
		result.affectedSources = nil
		return result, nil
	}

	ctx := newDifferentiateContext(g, delta, params, compiled, deletedNodes, log)
	before, after, withErrors := nodesBefore.Items(), nodesAfter.Items(), nodesWithErrors.Items()
	for _, strategy := range g.strategies {
		ok, err := strategy.Differentiate(ctx, before, after, withErrors)
		if err != nil {
			return nil, fmt.Errorf("strategy %T: %w", strategy, err)
		}
		if !ok {
			return nonIncremental("strategy gave up", "strategy", fmt.Sprintf("%T", strategy))
		}
	}

	dependingOnDeleted := domain.NewIDs()
	for _, n := range deletedNodes {
		deps, err := g.DependingNodes(n.ReferenceID())
		if err != nil {
			return nil, err
		}
		dependingOnDeleted.Add(deps...)
	}
	affected := domain.NewSources()
	for _, id := range dependingOnDeleted.Items() {
		sources, err := g.SourcesOf(id)
		if err != nil {
			return nil, err
		}
		affected.Add(sources...)
	}

	candidates := domain.NewIDs()
	for _, owner := range ctx.affectedOwners() {
		deps, err := g.DependingNodes(owner)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !dependingOnDeleted.Contains(dep) {
				candidates.Add(dep)
			}
		}
	}
	for _, id := range candidates.Items() {
		sources, err := g.SourcesOf(id)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			if affected.Contains(src) || processed.Contains(src) || !params.affectable(src) {
				continue
			}
			nodes, err := g.NodesOf(src)
			if err != nil {
				return nil, err
			}
			sourceAffected := false
			for _, node := range nodes {
				if !candidates.Contains(node.ReferenceID()) || !ctx.isAffected(node) {
					continue
				}
				for _, strategy := range g.strategies {
					if !strategy.IsIncremental(ctx, node) {
						return nonIncremental("affected node cannot be recompiled incrementally", "node", node.ReferenceID().String())
					}
				}
				sourceAffected = true
			}
			if sourceAffected {
				log.Debug("source affected", "source", src.Path())
				affected.Add(src)
			}
		}
	}

	if delta.IsSourceOnly() {
		if err := g.affectSplitNodes(delta, params, affected); err != nil {
			return nil, err
		}
	}

	affected.Remove(processed.Items()...)
	affected.Add(ctx.forced.Items()...)

	if followTransitive && !delta.IsSourceOnly() {
		var chunk []domain.NodeSource
		for _, src := range affected.Items() {
			if params.inChunk(src) {
				chunk = append(chunk, src)
			}
		}
		if len(chunk) > 0 {
			// The affected sources act as deleted sources of a synthetic delta, so
			// the nested pass reports the dependents of everything they define.
			next, err := NewDelta(g, memory.NewStorage(g.registry), g.specs, nil, chunk, true)
			if err != nil {
				return nil, err
			}
			nested, err := g.differentiate(next, params, false)
			if err != nil {
				return nil, err
			}
			if !nested.IsIncremental() {
				return nonIncremental("transitive pass is not incremental")
			}
			for _, src := range nested.affectedSources {
				if !processed.Contains(src) {
					affected.Add(src)
				}
			}
		}
	}

	result.affectedSources = affected.Items()
	log.Debug("differentiate finished",
		slog.Int("deleted_nodes", len(deletedNodes)),
		slog.Int("affected_sources", len(result.affectedSources)))
	return result, nil
}

// affectSplitNodes marks every in-chunk source of a node defined by several
// sources when some, but not all, of those in-chunk sources are dirty.
func (g *DependencyGraph) affectSplitNodes(delta *Delta, params DifferentiateParameters, affected *domain.Sources) error {
	dirty := domain.NewSources(delta.BaseSources()...)
	dirty.Add(delta.DeletedSources()...)
	for _, src := range dirty.Items() {
		nodes, err := g.NodesOf(src)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			all, err := g.SourcesOf(node.ReferenceID())
			if err != nil {
				return err
			}
			var filtered []domain.NodeSource
			clean, touched := false, false
			for _, s := range all {
				if !params.inChunk(s) {
					continue
				}
				filtered = append(filtered, s)
				if dirty.Contains(s) {
					touched = true
				} else {
					clean = true
				}
			}
			if len(filtered) > 1 && touched && clean {
				affected.Add(filtered...)
			}
		}
	}
	return nil
}
