package graph

import "depgraph/internal/domain"

// DifferentiateStrategy contributes impact rules for one differentiate call.
type DifferentiateStrategy interface {
	// Differentiate inspects the node sets and registers impact on ctx.
	// Returning false abandons the call as non-incremental.
	Differentiate(ctx *DifferentiateContext, nodesBefore, nodesAfter, nodesWithErrors []domain.Node) (bool, error)
	// IsIncremental reports whether an affected node can be handled by recompiling its sources.
	IsIncremental(ctx *DifferentiateContext, affected domain.Node) bool
}

// DefaultStrategies returns the language-neutral strategies.
func DefaultStrategies() []DifferentiateStrategy {
	return []DifferentiateStrategy{AnyUsageStrategy{}, GeneralStrategy{}}
}

// AnyUsageStrategy affects every node that uses a removed or changed node.
type AnyUsageStrategy struct{}

func (AnyUsageStrategy) Differentiate(ctx *DifferentiateContext, before, after, _ []domain.Node) (bool, error) {
	diff := domain.Compare(before, after, domain.SameKey, ctx.ContentKey)
	owners := domain.NewIDs()
	for _, n := range diff.Removed {
		owners.Add(n.ReferenceID())
	}
	for _, ch := range diff.Changed {
		owners.Add(ch.Past.ReferenceID())
	}
	if owners.Len() == 0 {
		return true, nil
	}
	ctx.AffectUsages(owners.Items(), func(u domain.Usage) bool {
		return owners.Contains(u.ElementOwner())
	})
	return true, nil
}

func (AnyUsageStrategy) IsIncremental(*DifferentiateContext, domain.Node) bool { return true }

// GeneralStrategy detects a node newly defined in this round that is also
// defined by a source outside the round, and recompiles both sides.
type GeneralStrategy struct{}

func (GeneralStrategy) Differentiate(ctx *DifferentiateContext, before, after, _ []domain.Node) (bool, error) {
	known := domain.NewNodes(before...)
	for _, node := range after {
		if known.Contains(node) {
			continue
		}
		id := node.ReferenceID()
		existing, err := ctx.Graph().SourcesOf(id)
		if err != nil {
			return false, err
		}
		var others []domain.NodeSource
		for _, src := range existing {
			if ctx.IsCompiled(src) || ctx.Delta().IsSourceDeleted(src) || !ctx.Params().inChunk(src) {
				continue
			}
			others = append(others, src)
		}
		if len(others) == 0 {
			continue
		}
		ctx.Logger().Debug("duplicate definition", "node", id.String(), "sources", len(others))
		for _, src := range others {
			ctx.AffectNodeSource(src)
		}
		own, err := ctx.Delta().SourcesOf(id)
		if err != nil {
			return false, err
		}
		for _, src := range own {
			ctx.AffectNodeSource(src)
		}
	}
	return true, nil
}

func (GeneralStrategy) IsIncremental(*DifferentiateContext, domain.Node) bool { return true }
