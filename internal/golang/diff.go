package golang

import (
	"slices"

	"depgraph/internal/domain"
)

// DeclDiff compares two versions of one declaration.
type DeclDiff struct {
	past, now *DeclNode
}

// Diff compares n against its past version.
func (n *DeclNode) Diff(past *DeclNode) DeclDiff {
	return DeclDiff{past: past, now: n}
}

func (d DeclDiff) KindChanged() bool { return d.past.kind != d.now.kind }
func (d DeclDiff) SignatureChanged() bool { return d.past.signature != d.now.signature }
func (d DeclDiff) BodyChanged() bool { return d.past.bodyDigest != d.now.bodyDigest }
func (d DeclDiff) ExportChanged() bool { return d.past.IsExported() != d.now.IsExported() }

// EmbedsChanged returns the embedded types added and removed.
func (d DeclDiff) EmbedsChanged() (added, removed []domain.ReferenceID) {
	for _, e := range d.now.embeds {
		if !slices.Contains(d.past.embeds, e) {
			added = append(added, e)
		}
	}
	for _, e := range d.past.embeds {
		if !slices.Contains(d.now.embeds, e) {
			removed = append(removed, e)
		}
	}
	return added, removed
}

// ShapeChanged reports a change visible to users of the declaration.
func (d DeclDiff) ShapeChanged() bool {
	added, removed := d.EmbedsChanged()
	return d.KindChanged() || d.SignatureChanged() || d.ExportChanged() || len(added) > 0 || len(removed) > 0
}
