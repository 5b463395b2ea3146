package graph

import (
	"fmt"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
)

// DependencyIndexName names the canonical back-dependency index every graph carries.
const DependencyIndexName = "node-backward-dependencies"

// IndexPolicy extracts the IDs a node depends on for one index.
type IndexPolicy func(n domain.Node) []domain.ReferenceID

// IndexSpec declares a back-dependency index. Graphs and their deltas must
// be built from the same specs.
type IndexSpec struct {
	Name         string
	Dependencies IndexPolicy
}

// NodeDependencyIndex is the canonical index: a node depends on the owners of its usages.
func NodeDependencyIndex() IndexSpec {
	return IndexSpec{Name: DependencyIndexName, Dependencies: domain.UsageOwners}
}

// BackDependencyIndex maps a node ID to the IDs of nodes that depend on it.
type BackDependencyIndex struct {
	name   string
	policy IndexPolicy
	store  ports.MultiMaplet[domain.ReferenceID, domain.ReferenceID]
}

func newBackDependencyIndex(spec IndexSpec, storage ports.Storage) (*BackDependencyIndex, error) {
	store, err := storage.BackDependencies(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", spec.Name, err)
	}
	return &BackDependencyIndex{name: spec.Name, policy: spec.Dependencies, store: store}, nil
}

// Name returns the index name.
func (idx *BackDependencyIndex) Name() string { return idx.name }

// IndexedDependencies returns what node depends on under this index's policy.
func (idx *BackDependencyIndex) IndexedDependencies(node domain.Node) []domain.ReferenceID {
	self := node.ReferenceID()
	seen := make(map[domain.ReferenceID]bool)
	var out []domain.ReferenceID
	for _, dep := range idx.policy(node) {
		if dep == self || seen[dep] {
			continue
		}
		seen[dep] = true
		out = append(out, dep)
	}
	return out
}

// Dependencies returns the IDs of nodes recorded as depending on id.
func (idx *BackDependencyIndex) Dependencies(id domain.ReferenceID) ([]domain.ReferenceID, error) {
	return idx.store.Get(id)
}

// Keys is not supported: index keys are only enumerated internally while integrating.
func (idx *BackDependencyIndex) Keys() []domain.ReferenceID {
	unsupported("BackDependencyIndex.Keys")
	return nil
}

func (idx *BackDependencyIndex) storedKeys() ([]domain.ReferenceID, error) {
	return idx.store.Keys()
}

// indexNode records node as a dependent of each of its dependencies.
func (idx *BackDependencyIndex) indexNode(node domain.Node) error {
	id := node.ReferenceID()
	for _, dep := range idx.IndexedDependencies(node) {
		if err := idx.store.AppendValue(dep, id); err != nil {
			return fmt.Errorf("failed to index %s in %s: %w", id, idx.name, err)
		}
	}
	return nil
}

// integrate merges the delta index into this one. deleted nodes are gone for
// good; updated nodes are the previous versions of nodes the delta re-produced.
func (idx *BackDependencyIndex) integrate(deleted, updated []domain.Node, delta *BackDependencyIndex) error {
	var order []domain.ReferenceID
	toRemove := make(map[domain.ReferenceID]*domain.IDs)
	schedule := func(dep, dependent domain.ReferenceID) {
		set, ok := toRemove[dep]
		if !ok {
			set = domain.NewIDs()
			toRemove[dep] = set
			order = append(order, dep)
		}
		set.Add(dependent)
	}

	for _, node := range deleted {
		id := node.ReferenceID()
		for _, dep := range idx.IndexedDependencies(node) {
			schedule(dep, id)
		}
		if err := idx.store.Remove(id); err != nil {
			return fmt.Errorf("failed to remove %s from %s: %w", id, idx.name, err)
		}
	}
	for _, node := range updated {
		id := node.ReferenceID()
		for _, dep := range idx.IndexedDependencies(node) {
			schedule(dep, id)
		}
	}

	keys, err := delta.storedKeys()
	if err != nil {
		return fmt.Errorf("failed to read delta index %s: %w", idx.name, err)
	}
	for _, key := range keys {
		deps, err := delta.Dependencies(key)
		if err != nil {
			return err
		}
		if set, ok := toRemove[key]; ok {
			set.Remove(deps...)
		}
		if err := idx.store.AppendValues(key, deps); err != nil {
			return fmt.Errorf("failed to merge %s into %s: %w", key, idx.name, err)
		}
	}

	for _, key := range order {
		stale := toRemove[key].Items()
		if len(stale) == 0 {
			continue
		}
		if err := idx.store.RemoveValues(key, stale); err != nil {
			return fmt.Errorf("failed to prune %s in %s: %w", key, idx.name, err)
		}
	}
	return nil
}
