package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"depgraph/internal/application"
	"depgraph/internal/domain"
	"depgraph/internal/golang"
	"depgraph/internal/graph"
)

// DependentsCommand lists the nodes depending on a node
type DependentsCommand struct {
	graph      graph.Graph
	NodeID     string
	Transitive bool
}

// NewDependentsCommand creates a new DependentsCommand
func NewDependentsCommand(g graph.Graph, nodeID string, transitive bool) *DependentsCommand {
	return &DependentsCommand{graph: g, NodeID: nodeID, Transitive: transitive}
}

// Validate checks the command arguments
func (c *DependentsCommand) Validate() error {
	return application.ValidateRequired("nodeID", c.NodeID)
}

// Execute returns direct dependents, or all transitive dependents in
// breadth-first order when Transitive is set.
func (c *DependentsCommand) Execute(ctx context.Context) ([]domain.ReferenceID, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start := domain.NewReferenceID(c.NodeID)
	if !c.Transitive {
		return dependingNodes(c.graph, start)
	}

	seen := domain.NewIDs(start)
	var out []domain.ReferenceID
	queue := []domain.ReferenceID{start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := queue[0]
		queue = queue[1:]
		deps, err := dependingNodes(c.graph, next)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if seen.Add(dep) {
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
	}
	return out, nil
}

// dependingNodes returns the indexed dependents of id plus the declarations
// reaching it through a selector from another package, which the index
// records under the package.
func dependingNodes(g graph.Graph, id domain.ReferenceID) ([]domain.ReferenceID, error) {
	deps, err := g.DependingNodes(id)
	if err != nil {
		return nil, err
	}
	pkg, _, ok := strings.Cut(id.String(), "#")
	if !ok {
		return deps, nil
	}
	users, err := g.DependingNodes(golang.PackageID(pkg))
	if err != nil {
		return nil, err
	}

	seen := domain.NewIDs(deps...)
	for _, user := range users {
		if seen.Contains(user) {
			continue
		}
		selects, err := selectsMember(g, user, id)
		if err != nil {
			return nil, err
		}
		if selects {
			seen.Add(user)
			deps = append(deps, user)
		}
	}
	return deps, nil
}

// selectsMember reports whether the node user holds a member usage of target.
func selectsMember(g graph.Graph, user, target domain.ReferenceID) (bool, error) {
	sources, err := g.SourcesOf(user)
	if err != nil {
		return false, err
	}
	for _, src := range sources {
		nodes, err := g.NodesOf(src)
		if err != nil {
			return false, err
		}
		for _, n := range nodes {
			if n.ReferenceID() != user {
				continue
			}
			for _, u := range n.Usages() {
				if m, ok := u.(golang.MemberUsage); ok && m.Target() == target {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// SourcesCommand lists the sources of a node, or every source when NodeID is empty
type SourcesCommand struct {
	graph  graph.Graph
	NodeID string
}

// NewSourcesCommand creates a new SourcesCommand
func NewSourcesCommand(g graph.Graph, nodeID string) *SourcesCommand {
	return &SourcesCommand{graph: g, NodeID: nodeID}
}

// Execute runs the sources command
func (c *SourcesCommand) Execute(ctx context.Context) ([]domain.NodeSource, error) {
	var (
		sources []domain.NodeSource
		err     error
	)
	if c.NodeID == "" {
		sources, err = c.graph.AllSources()
	} else {
		sources, err = c.graph.SourcesOf(domain.NewReferenceID(c.NodeID))
	}
	if err != nil {
		return nil, err
	}
	if c.NodeID != "" && len(sources) == 0 {
		return nil, fmt.Errorf("node %s: %w", c.NodeID, application.ErrNotFound)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path() < sources[j].Path() })
	return sources, nil
}

// NodesCommand lists the nodes produced by a source
type NodesCommand struct {
	graph  graph.Graph
	Source string
}

// NewNodesCommand creates a new NodesCommand
func NewNodesCommand(g graph.Graph, source string) *NodesCommand {
	return &NodesCommand{graph: g, Source: source}
}

// Validate checks the command arguments
func (c *NodesCommand) Validate() error {
	return application.ValidateSourcePath("source", c.Source)
}

// Execute runs the nodes command
func (c *NodesCommand) Execute(ctx context.Context) ([]application.NodeInfo, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	nodes, err := c.graph.NodesOf(domain.NewNodeSource(c.Source))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("source %s: %w", c.Source, application.ErrNotFound)
	}
	out := make([]application.NodeInfo, len(nodes))
	for i, n := range nodes {
		out[i] = application.Describe(n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
