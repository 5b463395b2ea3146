package golang

import (
	"depgraph/internal/domain"
	"depgraph/internal/serial"
)

// DeclUsage references a package-level declaration by ID.
type DeclUsage struct {
	owner domain.ReferenceID
}

func NewDeclUsage(owner domain.ReferenceID) DeclUsage { return DeclUsage{owner: owner} }

func (u DeclUsage) ElementOwner() domain.ReferenceID { return u.owner }
func (u DeclUsage) Encode(w *serial.Writer) { u.owner.Encode(w) }

// MemberUsage references a member of another package through a selector
// such as pkg.Name. Runs of members of one package share the package factor.
type MemberUsage struct {
	owner domain.ReferenceID
	name  string
}

func NewMemberUsage(pkg domain.ReferenceID, name string) MemberUsage {
	return MemberUsage{owner: pkg, name: name}
}

func (u MemberUsage) ElementOwner() domain.ReferenceID { return u.owner }
func (u MemberUsage) Name() string { return u.name }
func (u MemberUsage) Factor() serial.Element { return u.owner }
func (u MemberUsage) Encode(w *serial.Writer) { w.WriteString(u.name) }

// Target returns the ID of the referenced declaration.
func (u MemberUsage) Target() domain.ReferenceID {
	return domain.NewReferenceID(u.owner.String() + "#" + u.name)
}

// ImportUsage records that a declaration's file imports a package it uses.
type ImportUsage struct {
	owner domain.ReferenceID
}

func NewImportUsage(pkg domain.ReferenceID) ImportUsage { return ImportUsage{owner: pkg} }

func (u ImportUsage) ElementOwner() domain.ReferenceID { return u.owner }
func (u ImportUsage) Encode(w *serial.Writer) { u.owner.Encode(w) }

// EmbedUsage records that a type embeds another type.
type EmbedUsage struct {
	owner domain.ReferenceID
}

func NewEmbedUsage(owner domain.ReferenceID) EmbedUsage { return EmbedUsage{owner: owner} }

func (u EmbedUsage) ElementOwner() domain.ReferenceID { return u.owner }
func (u EmbedUsage) Encode(w *serial.Writer) { u.owner.Encode(w) }

func usageKind(u domain.Usage) string {
	switch u.(type) {
	case DeclUsage:
		return "decl"
	case MemberUsage:
		return "member"
	case ImportUsage:
		return "import"
	case EmbedUsage:
		return "embed"
	default:
		return "other"
	}
}

func usageDetail(u domain.Usage) string {
	if m, ok := u.(MemberUsage); ok {
		return m.name
	}
	return ""
}

func decodeDeclUsage(r *serial.Reader) (serial.Element, error) {
	return DeclUsage{owner: domain.NewReferenceID(r.ReadString())}, nil
}

func decodeMemberUsage(factor serial.Element, r *serial.Reader) (serial.Element, error) {
	pkg, ok := factor.(domain.ReferenceID)
	if !ok {
		return nil, serial.ErrInvalidData
	}
	return MemberUsage{owner: pkg, name: r.ReadString()}, nil
}

func decodeImportUsage(r *serial.Reader) (serial.Element, error) {
	return ImportUsage{owner: domain.NewReferenceID(r.ReadString())}, nil
}

func decodeEmbedUsage(r *serial.Reader) (serial.Element, error) {
	return EmbedUsage{owner: domain.NewReferenceID(r.ReadString())}, nil
}

// Dictionary seeds the string tables with tokens common in Go signatures.
var Dictionary = []string{
	".", "error", "string", "bool", "int", "int64", "int32", "uint8", "byte",
	"rune", "float64", "any", "context.Context", "[]byte", "[]string",
	"(ctx context.Context)", "() error", "func", "struct", "interface",
}

// Register adds the Go element types to reg. domain.Register must run first.
func Register(reg *serial.Registry) {
	reg.Register(&DeclNode{}, decodeDecl)
	reg.Register(DeclUsage{}, decodeDeclUsage)
	reg.RegisterFactored(MemberUsage{}, decodeMemberUsage)
	reg.Register(ImportUsage{}, decodeImportUsage)
	reg.Register(EmbedUsage{}, decodeEmbedUsage)
}

// NewRegistry returns the registry for graphs of Go declarations.
func NewRegistry() *serial.Registry {
	reg := serial.NewRegistry(Dictionary...)
	domain.Register(reg)
	Register(reg)
	return reg
}
