// Package memory provides an in-process ports.Storage, used for deltas and tests.
package memory

import (
	"sync"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
	"depgraph/internal/serial"
)

// Storage implements ports.PersistentStorage in memory.
type Storage struct {
	reg *serial.Registry

	mu          sync.Mutex
	nodeSources *multiMaplet[domain.ReferenceID, domain.NodeSource]
	sourceNodes *multiMaplet[domain.NodeSource, domain.Node]
	indices     map[string]*multiMaplet[domain.ReferenceID, domain.ReferenceID]
	states      map[domain.NodeSource]string
}

var _ ports.PersistentStorage = (*Storage)(nil)

// NewStorage creates an empty store. reg decides value equivalence.
func NewStorage(reg *serial.Registry) *Storage {
	s := &Storage{reg: reg}
	s.reset()
	return s
}

func (s *Storage) reset() {
	s.nodeSources = newMultiMaplet[domain.ReferenceID](domain.ContentKey[domain.NodeSource](s.reg))
	s.sourceNodes = newMultiMaplet[domain.NodeSource](domain.ContentKey[domain.Node](s.reg))
	s.indices = make(map[string]*multiMaplet[domain.ReferenceID, domain.ReferenceID])
	s.states = make(map[domain.NodeSource]string)
}

func (s *Storage) NodeSources() (ports.MultiMaplet[domain.ReferenceID, domain.NodeSource], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeSources, nil
}

func (s *Storage) SourceNodes() (ports.MultiMaplet[domain.NodeSource, domain.Node], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceNodes, nil
}

func (s *Storage) BackDependencies(indexName string) (ports.MultiMaplet[domain.ReferenceID, domain.ReferenceID], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indices[indexName]
	if !ok {
		m = newMultiMaplet[domain.ReferenceID](domain.ReferenceID.String)
		s.indices[indexName] = m
	}
	return m, nil
}

// Clear empties every maplet in place so handed-out maplets stay valid.
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeSources.clear()
	s.sourceNodes.clear()
	for _, m := range s.indices {
		m.clear()
	}
	s.states = make(map[domain.NodeSource]string)
	return nil
}

func (s *Storage) Flush() error { return nil }

func (s *Storage) Close() error { return nil }

// NeedsFullRebuild is always false: nothing outlives the process.
func (s *Storage) NeedsFullRebuild() bool { return false }

func (s *Storage) States() (map[domain.NodeSource]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.NodeSource]string, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *Storage) SetState(src domain.NodeSource, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[src] = digest
	return nil
}

func (s *Storage) RemoveState(src domain.NodeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, src)
	return nil
}
