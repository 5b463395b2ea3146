package ports

import "depgraph/internal/domain"

// MultiMaplet is a persistent multimap. Values per key are de-duplicated by
// their encoded content and kept in insertion order.
type MultiMaplet[K comparable, V any] interface {
	ContainsKey(key K) (bool, error)
	// Get returns the values of key, or an empty slice if absent. The slice
	// is a copy and may be modified by the caller.
	Get(key K) ([]V, error)
	// Put replaces the values of key. An empty collection removes the key.
	Put(key K, values []V) error
	AppendValue(key K, value V) error
	AppendValues(key K, values []V) error
	RemoveValue(key K, value V) error
	RemoveValues(key K, values []V) error
	Remove(key K) error
	Keys() ([]K, error)
	Flush() error
	Close() error
}

// Storage provides the maplets backing a dependency graph.
type Storage interface {
	// NodeSources maps a node to the sources it was produced from.
	NodeSources() (MultiMaplet[domain.ReferenceID, domain.NodeSource], error)
	// SourceNodes maps a source to the nodes it produced.
	SourceNodes() (MultiMaplet[domain.NodeSource, domain.Node], error)
	// BackDependencies returns the maplet of the named back-dependency index.
	BackDependencies(indexName string) (MultiMaplet[domain.ReferenceID, domain.ReferenceID], error)

	// Lifecycle
	Clear() error
	Flush() error
	Close() error
}

// SourceStates records the content digest last integrated for each source.
type SourceStates interface {
	States() (map[domain.NodeSource]string, error)
	SetState(src domain.NodeSource, digest string) error
	RemoveState(src domain.NodeSource) error
}

// PersistentStorage is implemented by stores that survive the process and
// can report a stale layout.
type PersistentStorage interface {
	Storage
	SourceStates
	NeedsFullRebuild() bool
}
