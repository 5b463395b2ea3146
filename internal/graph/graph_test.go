package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depgraph/internal/adapters/memory"
	"depgraph/internal/domain"
	"depgraph/internal/serial"
)

type testUsage struct{ owner domain.ReferenceID }

func (u testUsage) ElementOwner() domain.ReferenceID { return u.owner }
func (u testUsage) Encode(w *serial.Writer) { u.owner.Encode(w) }

type testNode struct {
	id        domain.ReferenceID
	body      string
	generated bool
	usages    []domain.Usage
}

func (n *testNode) ReferenceID() domain.ReferenceID { return n.id }
func (n *testNode) Usages() []domain.Usage { return n.usages }

func (n *testNode) Encode(w *serial.Writer) {
	n.id.Encode(w)
	w.WriteString(n.body)
	w.WriteBool(n.generated)
	serial.WriteCollection(w, n.usages)
}

func testRegistry() *serial.Registry {
	reg := serial.NewRegistry()
	domain.Register(reg)
	reg.Register(testUsage{}, func(r *serial.Reader) (serial.Element, error) {
		return testUsage{owner: domain.NewReferenceID(r.ReadString())}, nil
	})
	reg.Register(&testNode{}, func(r *serial.Reader) (serial.Element, error) {
		n := &testNode{id: domain.NewReferenceID(r.ReadString()), body: r.ReadString(), generated: r.ReadBool()}
		n.usages = serial.ReadCollection[domain.Usage](r)
		return n, nil
	})
	return reg
}

func node(id, body string, uses ...string) *testNode {
	n := &testNode{id: domain.NewReferenceID(id), body: body}
	for _, u := range uses {
		n.usages = append(n.usages, testUsage{owner: domain.NewReferenceID(u)})
	}
	return n
}

func src(p string) domain.NodeSource { return domain.NewNodeSource(p) }

func ref(id string) domain.ReferenceID { return domain.NewReferenceID(id) }

func newTestGraph(t *testing.T, opts ...Option) *DependencyGraph {
	t.Helper()
	g, err := New(memory.NewStorage(testRegistry()), testRegistry(), opts...)
	require.NoError(t, err)
	return g
}

// round builds a delta compiling the given sources, differentiates and integrates it.
func round(t *testing.T, g *DependencyGraph, params DifferentiateParameters, compiled map[string][]*testNode, deleted ...string) *DifferentiateResult {
	t.Helper()
	delta := newDelta(t, g, compiled, deleted...)
	result, err := g.Differentiate(delta, params)
	require.NoError(t, err)
	require.NoError(t, g.Integrate(result))
	return result
}

func newDelta(t *testing.T, g *DependencyGraph, compiled map[string][]*testNode, deleted ...string) *Delta {
	t.Helper()
	var base, gone []domain.NodeSource
	for p := range compiled {
		base = append(base, src(p))
	}
	for _, p := range deleted {
		gone = append(gone, src(p))
	}
	delta, err := g.CreateDelta(base, gone, false)
	require.NoError(t, err)
	for p, nodes := range compiled {
		for _, n := range nodes {
			require.NoError(t, delta.Associate(n, src(p)))
		}
	}
	return delta
}

func paths(sources []domain.NodeSource) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path()
	}
	return out
}

func ids(nodes []domain.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ReferenceID().String()
	}
	return out
}

func TestChangedNodeAffectsUsers(t *testing.T) {
	g := newTestGraph(t)
	p := DefaultParameters("initial")
	round(t, g, p, map[string][]*testNode{
		"s1.src": {node("X", "v1")},
		"s2.src": {node("Y", "", "X")},
	})

	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v2")}})
	result, err := g.Differentiate(delta, DefaultParameters("change"))
	require.NoError(t, err)

	assert.True(t, result.IsIncremental())
	assert.Empty(t, result.DeletedNodes())
	assert.Equal(t, []string{"s2.src"}, paths(result.AffectedSources()))

	require.NoError(t, g.Integrate(result))
	deps, err := g.DependingNodes(ref("X"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ReferenceID{ref("Y")}, deps)
	sources, err := g.SourcesOf(ref("X"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1.src"}, paths(sources))
}

func TestUnchangedNodeAffectsNothing(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "v1")},
		"s2.src": {node("Y", "", "X")},
	})

	result := round(t, g, DefaultParameters("noop"), map[string][]*testNode{"s1.src": {node("X", "v1")}})
	assert.Empty(t, result.AffectedSources())
	assert.Empty(t, result.DeletedNodes())
}

func TestDeletedSource(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "v1")},
		"s2.src": {node("Y", "", "X")},
	})

	delta, err := g.CreateDelta(nil, []domain.NodeSource{src("s1.src")}, true)
	require.NoError(t, err)
	result, err := g.Differentiate(delta, DefaultParameters("delete"))
	require.NoError(t, err)

	assert.True(t, result.IsIncremental())
	assert.Equal(t, []string{"X"}, ids(result.DeletedNodes()))
	assert.Equal(t, []string{"s2.src"}, paths(result.AffectedSources()))

	require.NoError(t, g.Integrate(result))
	deps, err := g.Index(DependencyIndexName).Dependencies(ref("X"))
	require.NoError(t, err)
	assert.Empty(t, deps)
	all, err := g.AllSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"s2.src"}, paths(all))
	registered, err := g.RegisteredNodes()
	require.NoError(t, err)
	assert.Equal(t, []domain.ReferenceID{ref("Y")}, registered)
}

func TestTransitiveClosure(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"a.src": {node("A", "v1")},
		"b.src": {node("B", "", "A")},
		"c.src": {node("C", "", "B")},
		"d.src": {node("D", "")},
	})

	delta := newDelta(t, g, map[string][]*testNode{"a.src": {node("A", "v2")}})
	result, err := g.Differentiate(delta, DefaultParameters("change"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.src", "c.src"}, paths(result.AffectedSources()))
}

func TestTransitiveClosureRespectsChunk(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"a.src":       {node("A", "v1")},
		"other/b.src": {node("B", "", "A")},
		"c.src":       {node("C", "", "B")},
	})

	params := DefaultParameters("change")
	params.BelongsToCurrentCompilationChunk = func(s domain.NodeSource) bool { return s.Path() != "other/b.src" }
	delta := newDelta(t, g, map[string][]*testNode{"a.src": {node("A", "v2")}})
	result, err := g.Differentiate(delta, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"other/b.src"}, paths(result.AffectedSources()))
}

func TestAffectionFilter(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src":     {node("X", "v1")},
		"vendor.src": {node("Y", "", "X")},
	})

	params := DefaultParameters("change")
	params.AffectionFilter = func(s domain.NodeSource) bool { return s.Path() != "vendor.src" }
	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v2")}})
	result, err := g.Differentiate(delta, params)
	require.NoError(t, err)
	assert.Empty(t, result.AffectedSources())
}

func TestCalculateAffectedDisabled(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "v1"), node("Gone", "")},
		"s2.src": {node("Y", "", "X")},
	})

	params := DefaultParameters("fast")
	params.CalculateAffected = false
	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v2")}})
	result, err := g.Differentiate(delta, params)
	require.NoError(t, err)
	assert.True(t, result.IsIncremental())
	assert.Equal(t, []string{"Gone"}, ids(result.DeletedNodes()))
	assert.Empty(t, result.AffectedSources())
}

func TestCompiledWithErrorsKeepsFailedSources(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"ok.src":     {node("X", "v1")},
		"broken.src": {node("W", "")},
	})

	delta, err := g.CreateDelta([]domain.NodeSource{src("ok.src"), src("broken.src")}, nil, false)
	require.NoError(t, err)
	require.NoError(t, delta.Associate(node("X", "v2"), src("ok.src")))

	params := DefaultParameters("errors")
	params.CompiledWithErrors = true
	result, err := g.Differentiate(delta, params)
	require.NoError(t, err)
	assert.Empty(t, result.DeletedNodes())

	require.NoError(t, g.Integrate(result))
	nodes, err := g.NodesOf(src("broken.src"))
	require.NoError(t, err)
	assert.Equal(t, []string{"W"}, ids(nodes))
	sources, err := g.SourcesOf(ref("W"))
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.src"}, paths(sources))
}

func TestFailedSourceWithoutErrorFlagIsDeleted(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"ok.src":     {node("X", "v1")},
		"broken.src": {node("W", "")},
	})

	delta, err := g.CreateDelta([]domain.NodeSource{src("ok.src"), src("broken.src")}, nil, false)
	require.NoError(t, err)
	require.NoError(t, delta.Associate(node("X", "v1"), src("ok.src")))
	result, err := g.Differentiate(delta, DefaultParameters("no-errors"))
	require.NoError(t, err)
	assert.Equal(t, []string{"W"}, ids(result.DeletedNodes()))
}

type refusingStrategy struct{ onNode bool }

func (s refusingStrategy) Differentiate(*DifferentiateContext, []domain.Node, []domain.Node, []domain.Node) (bool, error) {
	return s.onNode, nil
}

func (s refusingStrategy) IsIncremental(_ *DifferentiateContext, n domain.Node) bool {
	return !n.(*testNode).generated
}

func TestStrategyCanForceFullRebuild(t *testing.T) {
	g := newTestGraph(t, WithStrategies(AnyUsageStrategy{}, refusingStrategy{onNode: false}))
	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v1")}})
	result, err := g.Differentiate(delta, DefaultParameters("refuse"))
	require.NoError(t, err)
	assert.False(t, result.IsIncremental())
	assert.Empty(t, result.AffectedSources())
}

func TestAffectedNodeCanForceFullRebuild(t *testing.T) {
	g := newTestGraph(t, WithStrategies(AnyUsageStrategy{}, refusingStrategy{onNode: true}))
	user := node("Y", "", "X")
	user.generated = true
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "v1")},
		"s2.src": {user},
	})

	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v2")}})
	result, err := g.Differentiate(delta, DefaultParameters("change"))
	require.NoError(t, err)
	assert.False(t, result.IsIncremental())
}

func TestMultiSourceConsistency(t *testing.T) {
	g := newTestGraph(t)
	delta, err := g.CreateDelta([]domain.NodeSource{src("part1.src"), src("part2.src")}, nil, false)
	require.NoError(t, err)
	require.NoError(t, delta.Associate(node("N", ""), src("part1.src"), src("part2.src")))
	result, err := g.Differentiate(delta, DefaultParameters("initial"))
	require.NoError(t, err)
	require.NoError(t, g.Integrate(result))

	deletion, err := g.CreateDelta(nil, []domain.NodeSource{src("part1.src")}, true)
	require.NoError(t, err)
	result, err = g.Differentiate(deletion, DefaultParameters("delete"))
	require.NoError(t, err)
	assert.Equal(t, []string{"part2.src"}, paths(result.AffectedSources()))
}

func TestMultiSourceConsistencyIgnoresCleanSplits(t *testing.T) {
	g := newTestGraph(t)
	delta, err := g.CreateDelta([]domain.NodeSource{src("part1.src"), src("part2.src"), src("ext/part3.src")}, nil, false)
	require.NoError(t, err)
	require.NoError(t, delta.Associate(node("N", ""), src("part1.src"), src("part2.src"), src("ext/part3.src")))
	result, err := g.Differentiate(delta, DefaultParameters("initial"))
	require.NoError(t, err)
	require.NoError(t, g.Integrate(result))

	params := DefaultParameters("delete")
	params.BelongsToCurrentCompilationChunk = func(s domain.NodeSource) bool { return s.Path() != "ext/part3.src" }
	deletion, err := g.CreateDelta(nil, []domain.NodeSource{src("ext/part3.src")}, true)
	require.NoError(t, err)
	result, err = g.Differentiate(deletion, params)
	require.NoError(t, err)
	assert.Empty(t, result.AffectedSources())
}

func TestDuplicateDefinitionRecompilesBothSources(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"first.src": {node("X", "v1")},
	})

	delta := newDelta(t, g, map[string][]*testNode{"second.src": {node("X", "v1")}})
	result, err := g.Differentiate(delta, DefaultParameters("duplicate"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first.src", "second.src"}, paths(result.AffectedSources()))
}

func TestIntegrateIsConvergent(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "v1"), node("Old", "")},
		"s2.src": {node("Y", "", "X", "Old")},
	})

	delta := newDelta(t, g, map[string][]*testNode{"s1.src": {node("X", "v2"), node("New", "", "X")}})
	result, err := g.Differentiate(delta, DefaultParameters("change"))
	require.NoError(t, err)

	require.NoError(t, g.Integrate(result))
	once := snapshot(t, g)
	require.NoError(t, g.Integrate(result))
	assert.Equal(t, once, snapshot(t, g))

	assert.Equal(t, map[string][]string{"Old": nil, "X": {"Y", "New"}, "New": nil, "Y": nil}, once.dependents)
	assert.Equal(t, []string{"New", "X"}, sortedCopy(once.nodes["s1.src"]))
}

type graphState struct {
	nodes      map[string][]string
	sources    map[string][]string
	dependents map[string][]string
}

func snapshot(t *testing.T, g *DependencyGraph) graphState {
	t.Helper()
	st := graphState{nodes: map[string][]string{}, sources: map[string][]string{}, dependents: map[string][]string{}}
	all, err := g.AllSources()
	require.NoError(t, err)
	for _, s := range all {
		nodes, err := g.NodesOf(s)
		require.NoError(t, err)
		st.nodes[s.Path()] = ids(nodes)
	}
	for _, id := range []string{"X", "Y", "Old", "New"} {
		sources, err := g.SourcesOf(ref(id))
		require.NoError(t, err)
		if len(sources) > 0 {
			st.sources[id] = paths(sources)
		}
		deps, err := g.DependingNodes(ref(id))
		require.NoError(t, err)
		var names []string
		for _, d := range deps {
			names = append(names, d.String())
		}
		st.dependents[id] = names
	}
	return st
}

func sortedCopy(s []string) []string {
	return sorted(s)
}

func TestConfigurationMismatch(t *testing.T) {
	extra := IndexSpec{Name: "extra", Dependencies: func(domain.Node) []domain.ReferenceID { return nil }}
	g := newTestGraph(t, WithIndex(extra))

	_, err := NewDelta(g, memory.NewStorage(testRegistry()), []IndexSpec{NodeDependencyIndex()}, nil, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMismatch))
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{DependencyIndexName, "extra"}, cfgErr.GraphIndices)

	delta, err := g.CreateDelta(nil, nil, false)
	require.NoError(t, err)
	assert.NotNil(t, delta.Index("extra"))
}

func assertUnsupported(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	}()
	fn()
}

func TestSourceOnlyDeltaRejectsNodes(t *testing.T) {
	g := newTestGraph(t)
	delta, err := g.CreateDelta(nil, []domain.NodeSource{src("a.src")}, true)
	require.NoError(t, err)

	assertUnsupported(t, func() { _ = delta.Associate(node("X", ""), src("a.src")) })

	nodes, err := delta.NodesOf(src("a.src"))
	require.NoError(t, err)
	assert.Empty(t, nodes)
	compiled, err := delta.CompiledSources()
	require.NoError(t, err)
	assert.Empty(t, compiled)
}

func TestIndexKeysUnsupported(t *testing.T) {
	g := newTestGraph(t)
	assertUnsupported(t, func() { g.Index(DependencyIndexName).Keys() })
}

func TestIndexIgnoresSelfReferences(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("X", "", "X", "Y", "Y")},
	})

	deps, err := g.DependingNodes(ref("X"))
	require.NoError(t, err)
	assert.Empty(t, deps)
	deps, err = g.DependingNodes(ref("Y"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ReferenceID{ref("X")}, deps)
}

func TestIndexDropsSupersededEdges(t *testing.T) {
	g := newTestGraph(t)
	round(t, g, DefaultParameters("initial"), map[string][]*testNode{
		"s1.src": {node("A", ""), node("B", "")},
		"s2.src": {node("Y", "", "A")},
	})
	round(t, g, DefaultParameters("switch"), map[string][]*testNode{
		"s2.src": {node("Y", "", "B")},
	})

	deps, err := g.DependingNodes(ref("A"))
	require.NoError(t, err)
	assert.Empty(t, deps)
	deps, err = g.DependingNodes(ref("B"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ReferenceID{ref("Y")}, deps)
}

// scriptStrategy registers impact through fn on the top-level pass only.
type scriptStrategy struct {
	fn func(ctx *DifferentiateContext)
}

func (s scriptStrategy) Differentiate(ctx *DifferentiateContext, _, _, _ []domain.Node) (bool, error) {
	if !ctx.Delta().IsSourceOnly() {
		s.fn(ctx)
	}
	return true, nil
}

func (scriptStrategy) IsIncremental(*DifferentiateContext, domain.Node) bool { return true }

func bodyIs(body string) UsageConstraint {
	return func(n domain.Node) bool { return n.(*testNode).body == body }
}

func ownedBy(id string) UsageQuery {
	return func(u domain.Usage) bool { return u.ElementOwner() == ref(id) }
}

func TestAffectUsageTieBreaks(t *testing.T) {
	usesX := testUsage{owner: ref("X")}
	tests := []struct {
		name     string
		register func(ctx *DifferentiateContext)
		want     []string
	}{
		{
			name: "constraint selects matching users",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsageIf(usesX, bodyIs("a"))
			},
			want: []string{"u1.src"},
		},
		{
			name: "repeated constraints are OR-ed",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsageIf(usesX, bodyIs("a"))
				ctx.AffectUsageIf(usesX, bodyIs("b"))
			},
			want: []string{"u1.src", "u2.src"},
		},
		{
			name: "any constraint absorbs later ones",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsage(usesX)
				ctx.AffectUsageIf(usesX, bodyIs("a"))
			},
			want: []string{"u1.src", "u2.src", "u3.src"},
		},
		{
			name: "any constraint absorbs earlier ones",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsageIf(usesX, bodyIs("a"))
				ctx.AffectUsage(usesX)
			},
			want: []string{"u1.src", "u2.src", "u3.src"},
		},
		{
			name: "query alone matches every user",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsages([]domain.ReferenceID{ref("X")}, ownedBy("X"))
			},
			want: []string{"u1.src", "u2.src", "u3.src"},
		},
		{
			name: "rejecting constraint hides the usage from queries",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsageIf(usesX, bodyIs("a"))
				ctx.AffectUsages([]domain.ReferenceID{ref("X")}, ownedBy("X"))
			},
			want: []string{"u1.src"},
		},
		{
			name: "query matches another usage of a rejected node",
			register: func(ctx *DifferentiateContext) {
				ctx.AffectUsageIf(usesX, bodyIs("a"))
				ctx.AffectUsages([]domain.ReferenceID{ref("Z")}, ownedBy("Z"))
			},
			want: []string{"u1.src", "u3.src"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t, WithStrategies(scriptStrategy{fn: tt.register}))
			round(t, g, DefaultParameters("initial"), map[string][]*testNode{
				"x.src":  {node("X", "v1")},
				"u1.src": {node("U1", "a", "X")},
				"u2.src": {node("U2", "b", "X")},
				"u3.src": {node("U3", "c", "X", "Z")},
			})

			delta := newDelta(t, g, map[string][]*testNode{"x.src": {node("X", "v1")}})
			result, err := g.Differentiate(delta, DefaultParameters("register"))
			require.NoError(t, err)
			require.True(t, result.IsIncremental())
			assert.ElementsMatch(t, tt.want, paths(result.AffectedSources()))
		})
	}
}
