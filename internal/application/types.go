package application

import (
	"fmt"

	"depgraph/internal/domain"
	"depgraph/internal/golang"
)

// Re-export domain types for use by adapters
type (
	NodeSource  = domain.NodeSource
	ReferenceID = domain.ReferenceID
	BuildStats  = domain.BuildStats
	RoundStats  = domain.RoundStats
)

// NodeInfo is a display-oriented view of a graph node.
type NodeInfo struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Signature string   `json:"signature,omitempty"`
	Exported  bool     `json:"exported"`
	Generated bool     `json:"generated,omitempty"`
	Uses      []string `json:"uses,omitempty"`
}

// Describe returns the NodeInfo of n.
func Describe(n domain.Node) NodeInfo {
	info := NodeInfo{ID: n.ReferenceID().String(), Kind: fmt.Sprintf("%T", n)}
	if d, ok := n.(*golang.DeclNode); ok {
		info.Kind = d.Kind().String()
		info.Signature = d.Signature()
		info.Exported = d.IsExported()
		info.Generated = d.IsGenerated()
	}
	for _, owner := range domain.UsageOwners(n) {
		info.Uses = append(info.Uses, owner.String())
	}
	return info
}

// SourcePaths returns the paths of sources.
func SourcePaths(sources []domain.NodeSource) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path()
	}
	return out
}

// IDStrings returns the string forms of ids.
func IDStrings(ids []domain.ReferenceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
