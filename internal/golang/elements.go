// Package golang models Go declarations as graph nodes and decides how a
// change to one declaration affects the code using it.
package golang

import (
	"slices"
	"strings"

	"depgraph/internal/domain"
	"depgraph/internal/serial"
)

// Kind is the declaration kind of a DeclNode.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindFunc
	KindMethod
	KindVar
	KindConst
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindFunc:
		return "func"
	case KindMethod:
		return "method"
	case KindVar:
		return "var"
	case KindConst:
		return "const"
	default:
		return "unknown"
	}
}

// Flags carry declaration attributes.
type Flags uint8

const (
	FlagExported Flags = 1 << iota
	// FlagGenerated marks declarations from files with a "Code generated" header.
	FlagGenerated
)

// PackageID returns the ReferenceID of the package at dir (module-relative,
// or an import path for packages outside the module).
func PackageID(dir string) domain.ReferenceID {
	if dir == "" {
		dir = "."
	}
	return domain.NewReferenceID(dir)
}

// DeclID returns the ReferenceID of a package-level declaration.
func DeclID(dir, name string) domain.ReferenceID {
	return domain.NewReferenceID(PackageID(dir).String() + "#" + name)
}

// MethodID returns the ReferenceID of a method of receiver type recv.
func MethodID(dir, recv, name string) domain.ReferenceID {
	return DeclID(dir, recv+"."+name)
}

// DeclNode is one package-level declaration.
type DeclNode struct {
	id         domain.ReferenceID
	kind       Kind
	pkg        string
	name       string
	receiver   string
	signature  string
	bodyDigest string
	embeds     []domain.ReferenceID
	flags      Flags
	usages     []domain.Usage
}

var _ domain.Node = (*DeclNode)(nil)

// DeclOptions describe a declaration to construct.
type DeclOptions struct {
	Kind       Kind
	Package    string // module-relative package directory
	Name       string
	Receiver   string // receiver type name for methods
	Signature  string
	BodyDigest string
	Embeds     []domain.ReferenceID
	Flags      Flags
	Usages     []domain.Usage
}

// NewDecl builds a DeclNode. Usages and embeds are de-duplicated and sorted
// so equal declarations encode identically.
func NewDecl(o DeclOptions) *DeclNode {
	id := DeclID(o.Package, o.Name)
	if o.Kind == KindMethod {
		id = MethodID(o.Package, o.Receiver, o.Name)
	}
	return &DeclNode{
		id:         id,
		kind:       o.Kind,
		pkg:        PackageID(o.Package).String(),
		name:       o.Name,
		receiver:   o.Receiver,
		signature:  o.Signature,
		bodyDigest: o.BodyDigest,
		embeds:     canonicalIDs(o.Embeds),
		flags:      o.Flags,
		usages:     canonicalUsages(o.Usages),
	}
}

func (n *DeclNode) ReferenceID() domain.ReferenceID { return n.id }
func (n *DeclNode) Usages() []domain.Usage { return slices.Clone(n.usages) }
func (n *DeclNode) Kind() Kind { return n.kind }
func (n *DeclNode) Name() string { return n.name }
func (n *DeclNode) Receiver() string { return n.receiver }
func (n *DeclNode) Signature() string { return n.signature }
func (n *DeclNode) BodyDigest() string { return n.bodyDigest }
func (n *DeclNode) Embeds() []domain.ReferenceID { return slices.Clone(n.embeds) }
func (n *DeclNode) Flags() Flags { return n.flags }

// Package returns the ID of the declaring package.
func (n *DeclNode) Package() domain.ReferenceID { return domain.NewReferenceID(n.pkg) }

func (n *DeclNode) IsExported() bool { return n.flags&FlagExported != 0 }
func (n *DeclNode) IsGenerated() bool { return n.flags&FlagGenerated != 0 }

// ReceiverID returns the ID of the receiver type of a method.
func (n *DeclNode) ReceiverID() (domain.ReferenceID, bool) {
	if n.kind != KindMethod {
		return domain.ReferenceID{}, false
	}
	return domain.NewReferenceID(n.pkg + "#" + n.receiver), true
}

func (n *DeclNode) Encode(w *serial.Writer) {
	n.id.Encode(w)
	w.WriteUint8(uint8(n.kind))
	w.WriteString(n.pkg)
	w.WriteString(n.name)
	w.WriteString(n.receiver)
	w.WriteString(n.signature)
	w.WriteString(n.bodyDigest)
	w.WriteVarInt(len(n.embeds))
	for _, e := range n.embeds {
		e.Encode(w)
	}
	w.WriteUint8(uint8(n.flags))
	serial.WriteCollection(w, n.usages)
}

func decodeDecl(r *serial.Reader) (serial.Element, error) {
	n := &DeclNode{
		id:         domain.NewReferenceID(r.ReadString()),
		kind:       Kind(r.ReadUint8()),
		pkg:        r.ReadString(),
		name:       r.ReadString(),
		receiver:   r.ReadString(),
		signature:  r.ReadString(),
		bodyDigest: r.ReadString(),
	}
	count := r.ReadVarInt()
	for i := 0; i < count && r.Err() == nil; i++ {
		n.embeds = append(n.embeds, domain.NewReferenceID(r.ReadString()))
	}
	n.flags = Flags(r.ReadUint8())
	n.usages = serial.ReadCollection[domain.Usage](r)
	return n, r.Err()
}

func canonicalIDs(in []domain.ReferenceID) []domain.ReferenceID {
	set := domain.NewIDs(in...)
	out := set.Items()
	slices.SortFunc(out, func(a, b domain.ReferenceID) int { return strings.Compare(a.String(), b.String()) })
	return out
}

func canonicalUsages(in []domain.Usage) []domain.Usage {
	seen := make(map[domain.Usage]bool, len(in))
	out := make([]domain.Usage, 0, len(in))
	for _, u := range in {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	slices.SortStableFunc(out, func(a, b domain.Usage) int {
		if c := strings.Compare(usageKind(a), usageKind(b)); c != 0 {
			return c
		}
		if c := strings.Compare(a.ElementOwner().String(), b.ElementOwner().String()); c != 0 {
			return c
		}
		return strings.Compare(usageDetail(a), usageDetail(b))
	})
	return out
}
