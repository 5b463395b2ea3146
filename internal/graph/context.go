package graph

import (
	"log/slog"

	"depgraph/internal/domain"
)

// UsageConstraint restricts which dependent nodes an affected usage applies to.
type UsageConstraint func(node domain.Node) bool

// UsageQuery matches usages of candidate nodes.
type UsageQuery func(u domain.Usage) bool

type usageQuery struct {
	scope []domain.ReferenceID
	match UsageQuery
}

// DifferentiateContext is handed to strategies during one differentiate call.
// Strategies register impact through its Affect methods.
type DifferentiateContext struct {
	graph    *DependencyGraph
	delta    *Delta
	params   DifferentiateParameters
	logger   *slog.Logger
	compiled *domain.Sources
	deleted  *domain.IDs
	content  func(domain.Node) string

	usageOrder  []domain.Usage
	constraints map[domain.Usage]UsageConstraint
	queries     []usageQuery
	forced      *domain.Sources
}

func newDifferentiateContext(g *DependencyGraph, delta *Delta, params DifferentiateParameters, compiled *domain.Sources, deleted []domain.Node, logger *slog.Logger) *DifferentiateContext {
	ids := domain.NewIDs()
	for _, n := range deleted {
		ids.Add(n.ReferenceID())
	}
	return &DifferentiateContext{
		graph:       g,
		delta:       delta,
		params:      params,
		logger:      logger,
		compiled:    compiled,
		deleted:     ids,
		content:     g.contentKey(),
		constraints: make(map[domain.Usage]UsageConstraint),
		forced:      domain.NewSources(),
	}
}

func (c *DifferentiateContext) Params() DifferentiateParameters { return c.params }
func (c *DifferentiateContext) Graph() Graph { return c.graph }
func (c *DifferentiateContext) Delta() *Delta { return c.delta }
func (c *DifferentiateContext) Logger() *slog.Logger { return c.logger }

// ContentKey returns the structural fingerprint of node.
func (c *DifferentiateContext) ContentKey(node domain.Node) string { return c.content(node) }

// IsCompiled reports whether src is a base or compiled source of the delta.
func (c *DifferentiateContext) IsCompiled(src domain.NodeSource) bool {
	return c.compiled.Contains(src)
}

// IsDeleted reports whether a node with id was deleted in this round.
func (c *DifferentiateContext) IsDeleted(id domain.ReferenceID) bool {
	return c.deleted.Contains(id)
}

// AffectUsage marks every dependent node that has usage u as affected.
func (c *DifferentiateContext) AffectUsage(u domain.Usage) {
	c.AffectUsageIf(u, nil)
}

// AffectUsageIf marks dependent nodes that have usage u and satisfy constraint.
// A nil constraint accepts every node. Repeated registrations for one usage
// are OR-ed, and a nil constraint absorbs the others.
func (c *DifferentiateContext) AffectUsageIf(u domain.Usage, constraint UsageConstraint) {
	existing, ok := c.constraints[u]
	switch {
	case !ok:
		c.usageOrder = append(c.usageOrder, u)
		c.constraints[u] = constraint
	case existing == nil || constraint == nil:
		c.constraints[u] = nil
	default:
		c.constraints[u] = func(n domain.Node) bool { return existing(n) || constraint(n) }
	}
}

// AffectUsages marks dependents of the scope IDs whose usages satisfy match.
func (c *DifferentiateContext) AffectUsages(scope []domain.ReferenceID, match UsageQuery) {
	if len(scope) == 0 || match == nil {
		return
	}
	c.queries = append(c.queries, usageQuery{scope: append([]domain.ReferenceID(nil), scope...), match: match})
}

// AffectNodeSource forces src to be recompiled, even if it was compiled this round.
func (c *DifferentiateContext) AffectNodeSource(src domain.NodeSource) {
	c.forced.Add(src)
}

// affectedOwners returns owners of directly affected usages followed by query scopes.
func (c *DifferentiateContext) affectedOwners() []domain.ReferenceID {
	owners := domain.NewIDs()
	for _, u := range c.usageOrder {
		owners.Add(u.ElementOwner())
	}
	for _, q := range c.queries {
		owners.Add(q.scope...)
	}
	return owners.Items()
}

// isAffected checks node against direct registrations first. Queries only see
// usages without a direct registration.
func (c *DifferentiateContext) isAffected(node domain.Node) bool {
	var remaining []domain.Usage
	for _, u := range node.Usages() {
		constraint, ok := c.constraints[u]
		if !ok {
			remaining = append(remaining, u)
			continue
		}
		if constraint == nil || constraint(node) {
			return true
		}
	}
	for _, q := range c.queries {
		for _, u := range remaining {
			if q.match(u) {
				return true
			}
		}
	}
	return false
}
