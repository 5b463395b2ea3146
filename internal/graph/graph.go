// Package graph implements the incremental dependency graph: a persistent
// node/source mapping with back-dependency indices, per-build deltas,
// differentiation of a delta against the graph and integration of the result.
package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"depgraph/internal/adapters/memory"
	"depgraph/internal/domain"
	"depgraph/internal/ports"
	"depgraph/internal/serial"
)

// Graph is the read surface shared by DependencyGraph and Delta.
type Graph interface {
	Indices() []*BackDependencyIndex
	Index(name string) *BackDependencyIndex
	// DependingNodes returns the IDs of nodes that depend on id under the canonical index.
	DependingNodes(id domain.ReferenceID) ([]domain.ReferenceID, error)
	SourcesOf(id domain.ReferenceID) ([]domain.NodeSource, error)
	NodesOf(src domain.NodeSource) ([]domain.Node, error)
	AllSources() ([]domain.NodeSource, error)
	RegisteredNodes() ([]domain.ReferenceID, error)
}

// objectGraph holds the maplets and indices common to graphs and deltas.
type objectGraph struct {
	nodeToSources   ports.MultiMaplet[domain.ReferenceID, domain.NodeSource]
	sourceToNodes   ports.MultiMaplet[domain.NodeSource, domain.Node]
	indices         []*BackDependencyIndex
	dependencyIndex *BackDependencyIndex
}

func newObjectGraph(storage ports.Storage, specs []IndexSpec) (objectGraph, error) {
	var og objectGraph
	var err error
	if og.nodeToSources, err = storage.NodeSources(); err != nil {
		return og, fmt.Errorf("failed to open node sources: %w", err)
	}
	if og.sourceToNodes, err = storage.SourceNodes(); err != nil {
		return og, fmt.Errorf("failed to open source nodes: %w", err)
	}
	for _, spec := range specs {
		idx, err := newBackDependencyIndex(spec, storage)
		if err != nil {
			return og, err
		}
		og.indices = append(og.indices, idx)
		if spec.Name == DependencyIndexName {
			og.dependencyIndex = idx
		}
	}
	if og.dependencyIndex == nil {
		return og, fmt.Errorf("%w: missing %s index", ErrConfigurationMismatch, DependencyIndexName)
	}
	return og, nil
}

func (g *objectGraph) Indices() []*BackDependencyIndex {
	return append([]*BackDependencyIndex(nil), g.indices...)
}

func (g *objectGraph) Index(name string) *BackDependencyIndex {
	for _, idx := range g.indices {
		if idx.name == name {
			return idx
		}
	}
	return nil
}

func (g *objectGraph) DependingNodes(id domain.ReferenceID) ([]domain.ReferenceID, error) {
	return g.dependencyIndex.Dependencies(id)
}

func (g *objectGraph) SourcesOf(id domain.ReferenceID) ([]domain.NodeSource, error) {
	return g.nodeToSources.Get(id)
}

func (g *objectGraph) NodesOf(src domain.NodeSource) ([]domain.Node, error) {
	return g.sourceToNodes.Get(src)
}

func (g *objectGraph) AllSources() ([]domain.NodeSource, error) {
	return g.sourceToNodes.Keys()
}

func (g *objectGraph) RegisteredNodes() ([]domain.ReferenceID, error) {
	return g.nodeToSources.Keys()
}

func indexNames(indices []*BackDependencyIndex) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = idx.name
	}
	return names
}

// DependencyGraph is the persistent graph. Differentiate may run concurrently
// with other readers; Integrate is exclusive.
type DependencyGraph struct {
	objectGraph

	mu         sync.RWMutex
	storage    ports.Storage
	registry   *serial.Registry
	specs      []IndexSpec
	strategies []DifferentiateStrategy
	logger     *slog.Logger
}

var _ Graph = (*DependencyGraph)(nil)

// Option configures a DependencyGraph.
type Option func(*DependencyGraph)

// WithLogger sets the logger used for differentiate and integrate diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *DependencyGraph) { g.logger = l }
}

// WithStrategies replaces the strategy list. Strategies run in order.
func WithStrategies(strategies ...DifferentiateStrategy) Option {
	return func(g *DependencyGraph) { g.strategies = strategies }
}

// WithIndex registers an additional back-dependency index.
func WithIndex(spec IndexSpec) Option {
	return func(g *DependencyGraph) { g.specs = append(g.specs, spec) }
}

// New opens a graph on storage. reg must contain every node and usage type
// stored in the graph.
func New(storage ports.Storage, reg *serial.Registry, opts ...Option) (*DependencyGraph, error) {
	g := &DependencyGraph{
		storage:    storage,
		registry:   reg,
		specs:      []IndexSpec{NodeDependencyIndex()},
		strategies: DefaultStrategies(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	og, err := newObjectGraph(storage, g.specs)
	if err != nil {
		return nil, err
	}
	g.objectGraph = og
	return g, nil
}

// Registry returns the element registry of the graph.
func (g *DependencyGraph) Registry() *serial.Registry { return g.registry }

// IndexSpecs returns the index declarations deltas of this graph must match.
func (g *DependencyGraph) IndexSpecs() []IndexSpec {
	return append([]IndexSpec(nil), g.specs...)
}

// CreateDelta creates an in-memory delta compatible with this graph.
func (g *DependencyGraph) CreateDelta(baseSources, deletedSources []domain.NodeSource, sourceOnly bool) (*Delta, error) {
	return NewDelta(g, memory.NewStorage(g.registry), g.specs, baseSources, deletedSources, sourceOnly)
}

// Reset discards the whole graph, used before a full rebuild.
func (g *DependencyGraph) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.storage.Clear(); err != nil {
		return fmt.Errorf("failed to clear graph storage: %w", err)
	}
	return nil
}

func (g *DependencyGraph) Flush() error {
	return g.storage.Flush()
}

func (g *DependencyGraph) Close() error {
	return g.storage.Close()
}

func (g *DependencyGraph) contentKey() func(domain.Node) string {
	return domain.ContentKey[domain.Node](g.registry)
}
