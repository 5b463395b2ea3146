package graph

import "depgraph/internal/domain"

// SourceFilter selects sources.
type SourceFilter func(src domain.NodeSource) bool

// DifferentiateParameters control one differentiate call.
type DifferentiateParameters struct {
	SessionName string
	// CompiledWithErrors marks the round as partially failed: base sources
	// that produced no output keep their previous nodes.
	CompiledWithErrors bool
	// CalculateAffected enables propagation. When false only deleted nodes are computed.
	CalculateAffected bool
	// AffectionFilter limits which sources may be reported as affected. nil accepts all.
	AffectionFilter SourceFilter
	// BelongsToCurrentCompilationChunk limits the sources followed transitively
	// and checked for multi-source consistency. nil accepts all.
	BelongsToCurrentCompilationChunk SourceFilter
}

// DefaultParameters returns parameters that calculate affected sources with no filtering.
func DefaultParameters(session string) DifferentiateParameters {
	return DifferentiateParameters{SessionName: session, CalculateAffected: true}
}

func (p DifferentiateParameters) affectable(src domain.NodeSource) bool {
	return p.AffectionFilter == nil || p.AffectionFilter(src)
}

func (p DifferentiateParameters) inChunk(src domain.NodeSource) bool {
	return p.BelongsToCurrentCompilationChunk == nil || p.BelongsToCurrentCompilationChunk(src)
}

// DifferentiateResult is the outcome of Differentiate, consumed by Integrate.
type DifferentiateResult struct {
	sessionName     string
	params          DifferentiateParameters
	delta           *Delta
	deletedNodes    []domain.Node
	affectedSources []domain.NodeSource
	incremental     bool
}

func (r *DifferentiateResult) SessionName() string { return r.sessionName }
func (r *DifferentiateResult) Parameters() DifferentiateParameters { return r.params }
func (r *DifferentiateResult) Delta() *Delta { return r.delta }

// DeletedNodes returns the nodes that existed before the round and no longer do.
func (r *DifferentiateResult) DeletedNodes() []domain.Node {
	return append([]domain.Node(nil), r.deletedNodes...)
}

// AffectedSources returns the sources that must be recompiled in a further round.
func (r *DifferentiateResult) AffectedSources() []domain.NodeSource {
	return append([]domain.NodeSource(nil), r.affectedSources...)
}

// IsIncremental is false when the change cannot be handled locally and a
// full rebuild is required.
func (r *DifferentiateResult) IsIncremental() bool { return r.incremental }
