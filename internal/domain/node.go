package domain

import (
	"fmt"
	"reflect"
	"strings"

	"depgraph/internal/serial"
)

// ReferenceID is the stable, comparable identity of a graph node.
type ReferenceID struct {
	name string
}

// NewReferenceID creates a ReferenceID from its qualified name.
func NewReferenceID(name string) ReferenceID {
	return ReferenceID{name: name}
}

func (id ReferenceID) String() string { return id.name }

// IsZero reports whether id is the zero ReferenceID.
func (id ReferenceID) IsZero() bool { return id.name == "" }

func (id ReferenceID) Encode(w *serial.Writer) { w.WriteString(id.name) }

func decodeReferenceID(r *serial.Reader) (serial.Element, error) {
	return ReferenceID{name: r.ReadString()}, nil
}

// NodeSource identifies an input artifact by its path. Paths always use
// forward slashes.
type NodeSource struct {
	path string
}

// NewNodeSource normalizes path separators and returns the source.
func NewNodeSource(path string) NodeSource {
	return NodeSource{path: strings.ReplaceAll(path, `\`, "/")}
}

// Path returns the normalized path.
func (s NodeSource) Path() string { return s.path }

func (s NodeSource) String() string { return s.path }

func (s NodeSource) Encode(w *serial.Writer) { w.WriteString(s.path) }

func decodeNodeSource(r *serial.Reader) (serial.Element, error) {
	return NodeSource{path: r.ReadString()}, nil
}

// Usage is a reference from a node to an element owned by another node.
// Implementations must be comparable.
type Usage interface {
	serial.Element
	ElementOwner() ReferenceID
}

// Node is a unit of the dependency graph produced from one or more sources.
type Node interface {
	serial.Element
	ReferenceID() ReferenceID
	Usages() []Usage
}

// SameKey is the identity equivalence for nodes: concrete type plus ReferenceID.
// Two versions of one declaration share a SameKey even when their content differs.
func SameKey(n Node) string {
	return reflect.TypeOf(n).String() + "\x00" + n.ReferenceID().String()
}

// ContentKey returns the structural equivalence for nodes and usages under
// reg: equal keys mean equal canonical encodings. Every element passed to
// the returned func must have a registered type; anything else panics.
func ContentKey[T serial.Element](reg *serial.Registry) func(T) string {
	return func(e T) string {
		fp, err := serial.Fingerprint(reg, e)
		if err != nil {
			panic(fmt.Sprintf("domain: content key: %v", err))
		}
		return fp
	}
}

// UsageOwners returns the distinct owners of n's usages, excluding n itself,
// in first-seen order.
func UsageOwners(n Node) []ReferenceID {
	self := n.ReferenceID()
	seen := make(map[ReferenceID]bool)
	var out []ReferenceID
	for _, u := range n.Usages() {
		owner := u.ElementOwner()
		if owner == self || seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, owner)
	}
	return out
}

// Register adds the domain element types to reg. It must run before any
// language-specific registration so type IDs stay stable.
func Register(reg *serial.Registry) {
	reg.Register(ReferenceID{}, decodeReferenceID)
	reg.Register(NodeSource{}, decodeNodeSource)
}
