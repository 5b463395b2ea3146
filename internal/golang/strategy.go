package golang

import (
	"strings"

	"depgraph/internal/domain"
	"depgraph/internal/graph"
)

// EmbeddersIndexName names the index from a type to the types embedding it.
const EmbeddersIndexName = "type-embedders"

// EmbeddersIndex indexes each type under the types it embeds.
func EmbeddersIndex() graph.IndexSpec {
	return graph.IndexSpec{
		Name: EmbeddersIndexName,
		Dependencies: func(n domain.Node) []domain.ReferenceID {
			if d, ok := n.(*DeclNode); ok && d.kind == KindType {
				return d.Embeds()
			}
			return nil
		},
	}
}

// AffectMode selects how changes propagate.
type AffectMode string

const (
	// AffectShape propagates only changes visible to users of a declaration.
	AffectShape AffectMode = "shape"
	// AffectAny propagates every content change, body edits included.
	AffectAny AffectMode = "any"
)

// Options configures a graph for Go declarations.
func Options(mode AffectMode) []graph.Option {
	strategies := []graph.DifferentiateStrategy{Strategy{}, graph.GeneralStrategy{}}
	if mode == AffectAny {
		strategies = []graph.DifferentiateStrategy{Strategy{}, graph.AnyUsageStrategy{}, graph.GeneralStrategy{}}
	}
	return []graph.Option{
		graph.WithIndex(EmbeddersIndex()),
		graph.WithStrategies(strategies...),
	}
}

// Strategy affects users of Go declarations whose shape changed: kind,
// signature, exported-ness or embedded types. Body-only edits affect nothing.
type Strategy struct{}

func (s Strategy) Differentiate(ctx *graph.DifferentiateContext, before, after, _ []domain.Node) (bool, error) {
	diff := domain.Compare(decls(before), decls(after),
		func(d *DeclNode) string { return domain.SameKey(d) },
		func(d *DeclNode) string { return ctx.ContentKey(d) })

	for _, n := range diff.Removed {
		if err := affectShape(ctx, n); err != nil {
			return false, err
		}
	}
	for _, ch := range diff.Changed {
		if !ch.Now.Diff(ch.Past).ShapeChanged() {
			ctx.Logger().Debug("body-only change", "decl", ch.Now.id.String())
			continue
		}
		if err := affectShape(ctx, ch.Past); err != nil {
			return false, err
		}
	}
	for _, n := range diff.Added {
		// A new method can make selectors through embedding types ambiguous.
		if recv, ok := n.ReceiverID(); ok {
			if err := affectEmbedders(ctx, recv); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// IsIncremental rejects generated declarations: their generator has to run again.
func (Strategy) IsIncremental(ctx *graph.DifferentiateContext, affected domain.Node) bool {
	if d, ok := affected.(*DeclNode); ok && d.IsGenerated() {
		ctx.Logger().Info("generated declaration affected", "decl", d.id.String())
		return false
	}
	return true
}

func decls(nodes []domain.Node) []*DeclNode {
	var out []*DeclNode
	for _, n := range nodes {
		if d, ok := n.(*DeclNode); ok {
			out = append(out, d)
		}
	}
	return out
}

func affectShape(ctx *graph.DifferentiateContext, n *DeclNode) error {
	switch n.kind {
	case KindMethod:
		recv, _ := n.ReceiverID()
		affectUsers(ctx, recv)
		return affectEmbedders(ctx, recv)
	case KindType:
		affectUsers(ctx, n.id)
		return affectEmbedders(ctx, n.id)
	default:
		affectUsers(ctx, n.id)
		return nil
	}
}

// affectUsers marks same-package references and cross-package selectors of id.
func affectUsers(ctx *graph.DifferentiateContext, id domain.ReferenceID) {
	ctx.AffectUsage(NewDeclUsage(id))
	if pkg, name, ok := splitDeclID(id); ok {
		ctx.AffectUsage(NewMemberUsage(PackageID(pkg), name))
	}
}

// affectEmbedders marks users of every type that embeds typeID, transitively.
func affectEmbedders(ctx *graph.DifferentiateContext, typeID domain.ReferenceID) error {
	idx := ctx.Graph().Index(EmbeddersIndexName)
	if idx == nil {
		return nil
	}
	embedders := domain.NewIDs()
	queue := []domain.ReferenceID{typeID}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		deps, err := idx.Dependencies(next)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if embedders.Add(dep) {
				queue = append(queue, dep)
			}
		}
	}
	if embedders.Len() == 0 {
		return nil
	}

	scope := domain.NewIDs(embedders.Items()...)
	for _, id := range embedders.Items() {
		if pkg, _, ok := splitDeclID(id); ok {
			scope.Add(PackageID(pkg))
		}
	}
	ctx.AffectUsages(scope.Items(), func(u domain.Usage) bool {
		switch u := u.(type) {
		case DeclUsage:
			return embedders.Contains(u.owner)
		case MemberUsage:
			return embedders.Contains(u.Target())
		default:
			return false
		}
	})
	return nil
}

func splitDeclID(id domain.ReferenceID) (pkg, name string, ok bool) {
	return strings.Cut(id.String(), "#")
}
