package graph

import (
	"fmt"
	"slices"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
)

// Delta holds the nodes produced by one build round together with the set of
// sources that round recompiled and deleted. A source-only delta carries no
// nodes and only records deletions.
type Delta struct {
	objectGraph

	baseSources    *domain.Sources
	deletedSources *domain.Sources
	// compiled holds the sources compiled successfully, whether or not
	// they produced nodes.
	compiled   *domain.Sources
	sourceOnly bool
}

var _ Graph = (*Delta)(nil)

// NewDelta creates a delta over storage with the given index specs. It fails
// with a *ConfigurationError if the specs do not name the same indices as base.
func NewDelta(base Graph, storage ports.Storage, specs []IndexSpec, baseSources, deletedSources []domain.NodeSource, sourceOnly bool) (*Delta, error) {
	og, err := newObjectGraph(storage, specs)
	if err != nil {
		return nil, err
	}
	graphNames, deltaNames := indexNames(base.Indices()), indexNames(og.indices)
	if !slices.Equal(sorted(graphNames), sorted(deltaNames)) {
		return nil, &ConfigurationError{GraphIndices: graphNames, DeltaIndices: deltaNames}
	}
	return &Delta{
		objectGraph:    og,
		baseSources:    domain.NewSources(baseSources...),
		deletedSources: domain.NewSources(deletedSources...),
		compiled:       domain.NewSources(),
		sourceOnly:     sourceOnly,
	}, nil
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

// IsSourceOnly reports whether the delta only records deleted sources.
func (d *Delta) IsSourceOnly() bool { return d.sourceOnly }

// BaseSources returns the sources this round intended to compile.
func (d *Delta) BaseSources() []domain.NodeSource { return d.baseSources.Items() }

// DeletedSources returns the sources removed in this round.
func (d *Delta) DeletedSources() []domain.NodeSource { return d.deletedSources.Items() }

// IsBaseSource reports whether src is one of the base sources.
func (d *Delta) IsBaseSource(src domain.NodeSource) bool { return d.baseSources.Contains(src) }

// IsSourceDeleted reports whether src was deleted in this round.
func (d *Delta) IsSourceDeleted(src domain.NodeSource) bool { return d.deletedSources.Contains(src) }

// CompiledSources returns the sources compiled successfully in this delta,
// including those that produced no nodes.
func (d *Delta) CompiledSources() ([]domain.NodeSource, error) {
	return d.compiled.Items(), nil
}

// MarkCompiled records src as compiled successfully. Associate marks the
// sources it is given, so only sources without nodes need an explicit call.
// It panics for source-only deltas.
func (d *Delta) MarkCompiled(src domain.NodeSource) {
	if d.sourceOnly {
		unsupported("Delta.MarkCompiled on a source-only delta")
	}
	d.compiled.Add(src)
}

// Associate records node as produced from sources and indexes it. It panics
// for source-only deltas.
func (d *Delta) Associate(node domain.Node, sources ...domain.NodeSource) error {
	if d.sourceOnly {
		unsupported("Delta.Associate on a source-only delta")
	}
	id := node.ReferenceID()
	if err := d.nodeToSources.AppendValues(id, sources); err != nil {
		return fmt.Errorf("failed to associate %s: %w", id, err)
	}
	for _, src := range sources {
		d.compiled.Add(src)
		if err := d.sourceToNodes.AppendValue(src, node); err != nil {
			return fmt.Errorf("failed to associate %s with %s: %w", id, src, err)
		}
	}
	for _, idx := range d.indices {
		if err := idx.indexNode(node); err != nil {
			return err
		}
	}
	return nil
}
