// Package serial implements the compact binary encoding used to persist graph
// elements: 29-bit varints, interned strings and polymorphic element records
// tagged with registry type IDs.
package serial

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnknownType is returned when an element type or type ID is not registered.
	ErrUnknownType = errors.New("unknown element type")
	// ErrInvalidData is returned when the input stream is malformed.
	ErrInvalidData = errors.New("invalid serialized data")
)

// Element is a value that can be written by a Writer.
type Element interface {
	Encode(w *Writer)
}

// FactoredElement is an element whose encoding is split into a shared factor
// and a per-element payload. Consecutive elements with equal factors are
// grouped so the factor is written once per run.
type FactoredElement interface {
	Element
	Factor() Element
}

// DecodeFunc reconstructs an element from its payload.
type DecodeFunc func(r *Reader) (Element, error)

// FactoredDecodeFunc reconstructs a factored element from its factor and payload.
type FactoredDecodeFunc func(factor Element, r *Reader) (Element, error)

type registration struct {
	id       int
	name     string
	decode   DecodeFunc
	factored FactoredDecodeFunc
}

// Registry maps element types to stable numeric IDs. IDs are assigned in
// registration order, so every process reading a given store must register
// the same types in the same order. A Registry is built once at startup and
// is read-only afterwards.
type Registry struct {
	byType     map[reflect.Type]*registration
	byID       []*registration
	dictionary []string
}

// NewRegistry creates a registry whose string tables are pre-seeded with dictionary.
func NewRegistry(dictionary ...string) *Registry {
	seen := make(map[string]bool, len(dictionary))
	var dict []string
	for _, s := range dictionary {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dict = append(dict, s)
	}
	return &Registry{
		byType:     make(map[reflect.Type]*registration),
		dictionary: dict,
	}
}

// Register adds a plain element type. It panics if the type is already registered.
func (r *Registry) Register(proto Element, decode DecodeFunc) int {
	return r.add(proto, &registration{decode: decode})
}

// RegisterFactored adds a factored element type. It panics if the type is already registered.
func (r *Registry) RegisterFactored(proto FactoredElement, decode FactoredDecodeFunc) int {
	return r.add(proto, &registration{factored: decode})
}

func (r *Registry) add(proto Element, reg *registration) int {
	t := reflect.TypeOf(proto)
	if _, ok := r.byType[t]; ok {
		panic(fmt.Sprintf("serial: type %s registered twice", t))
	}
	reg.id = len(r.byID)
	reg.name = t.String()
	r.byType[t] = reg
	r.byID = append(r.byID, reg)
	return reg.id
}

// TypeID returns the ID registered for the dynamic type of e.
func (r *Registry) TypeID(e Element) (int, error) {
	reg, err := r.lookup(e)
	if err != nil {
		return 0, err
	}
	return reg.id, nil
}

// Dictionary returns the pre-seeded string table.
func (r *Registry) Dictionary() []string {
	return append([]string(nil), r.dictionary...)
}

// Fingerprint identifies the registry layout. Data written under one
// fingerprint is unreadable under another.
func (r *Registry) Fingerprint() string {
	h := sha256.New()
	for _, reg := range r.byID {
		fmt.Fprintf(h, "%d:%s:%t\n", reg.id, reg.name, reg.factored != nil)
	}
	for _, s := range r.dictionary {
		fmt.Fprintf(h, "d:%s\n", s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Registry) lookup(e Element) (*registration, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil element", ErrUnknownType)
	}
	reg, ok := r.byType[reflect.TypeOf(e)]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, e)
	}
	return reg, nil
}

func (r *Registry) byTypeID(id int) (*registration, error) {
	if id < 0 || id >= len(r.byID) {
		return nil, fmt.Errorf("%w: type id %d", ErrUnknownType, id)
	}
	return r.byID[id], nil
}
