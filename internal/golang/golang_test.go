package golang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depgraph/internal/adapters/memory"
	"depgraph/internal/domain"
	"depgraph/internal/graph"
	"depgraph/internal/serial"
)

var declOpts = cmp.Options{
	cmp.AllowUnexported(DeclNode{}, DeclUsage{}, MemberUsage{}, ImportUsage{}, EmbedUsage{}, domain.ReferenceID{}),
	cmpopts.EquateEmpty(),
}

func TestDeclRoundTrip(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name string
		decl *DeclNode
	}{
		{
			name: "func with selectors",
			decl: NewDecl(DeclOptions{
				Kind: KindFunc, Package: "internal/app", Name: "Run",
				Signature: "func(ctx context.Context) error", BodyDigest: "abc",
				Flags: FlagExported,
				Usages: []Usage{
					NewMemberUsage(PackageID("fmt"), "Errorf"),
					NewMemberUsage(PackageID("fmt"), "Sprintf"),
					NewImportUsage(PackageID("fmt")),
					NewDeclUsage(DeclID("internal/app", "config")),
				},
			}),
		},
		{
			name: "struct with embeds",
			decl: NewDecl(DeclOptions{
				Kind: KindType, Package: "store", Name: "cache",
				Signature: "struct", Flags: FlagGenerated,
				Embeds: []domain.ReferenceID{DeclID("store", "base"), DeclID("store", "base")},
				Usages: []Usage{NewEmbedUsage(DeclID("store", "base"))},
			}),
		},
		{
			name: "method",
			decl: NewDecl(DeclOptions{Kind: KindMethod, Package: "", Name: "Close", Receiver: "Server", Signature: "() error"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := serial.Marshal(reg, tt.decl)
			require.NoError(t, err)
			got, err := serial.UnmarshalAs[*DeclNode](reg, data)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.decl, got, declOpts); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Usage shortens usage literals in tests.
type Usage = domain.Usage

func TestDeclIDs(t *testing.T) {
	m := NewDecl(DeclOptions{Kind: KindMethod, Package: "a/b", Name: "Do", Receiver: "T"})
	assert.Equal(t, "a/b#T.Do", m.ReferenceID().String())
	recv, ok := m.ReceiverID()
	require.True(t, ok)
	assert.Equal(t, "a/b#T", recv.String())

	f := NewDecl(DeclOptions{Kind: KindFunc, Name: "main"})
	assert.Equal(t, ".#main", f.ReferenceID().String())
	_, ok = f.ReceiverID()
	assert.False(t, ok)

	assert.Equal(t, "a/b#T", NewMemberUsage(PackageID("a/b"), "T").Target().String())
}

func TestCanonicalUsageOrder(t *testing.T) {
	a := NewDecl(DeclOptions{Kind: KindFunc, Name: "f", Usages: []Usage{
		NewMemberUsage(PackageID("os"), "Exit"), NewDeclUsage(DeclID("", "g")), NewDeclUsage(DeclID("", "g")),
	}})
	b := NewDecl(DeclOptions{Kind: KindFunc, Name: "f", Usages: []Usage{
		NewDeclUsage(DeclID("", "g")), NewMemberUsage(PackageID("os"), "Exit"),
	}})
	reg := NewRegistry()
	assert.Equal(t, domain.ContentKey[domain.Node](reg)(a), domain.ContentKey[domain.Node](reg)(b))
	assert.Len(t, a.Usages(), 2)
}

func TestDeclDiff(t *testing.T) {
	base := DeclOptions{Kind: KindType, Package: "p", Name: "T", Signature: "struct{a int}", BodyDigest: "1", Flags: FlagExported}
	tests := []struct {
		name   string
		change func(*DeclOptions)
		shape  bool
	}{
		{name: "body only", change: func(o *DeclOptions) { o.BodyDigest = "2" }},
		{name: "signature", change: func(o *DeclOptions) { o.Signature = "struct{a string}" }, shape: true},
		{name: "unexported", change: func(o *DeclOptions) { o.Flags = 0 }, shape: true},
		{name: "kind", change: func(o *DeclOptions) { o.Kind = KindVar }, shape: true},
		{name: "embed added", change: func(o *DeclOptions) { o.Embeds = []domain.ReferenceID{DeclID("p", "U")} }, shape: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := base
			tt.change(&now)
			d := NewDecl(now).Diff(NewDecl(base))
			assert.Equal(t, tt.shape, d.ShapeChanged())
		})
	}
}

// fixture builds a graph of Go declarations backed by memory storage.
type fixture struct {
	t *testing.T
	g *graph.DependencyGraph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := NewRegistry()
	g, err := graph.New(memory.NewStorage(reg), reg, Options(AffectShape)...)
	require.NoError(t, err)
	return &fixture{t: t, g: g}
}

func (f *fixture) differentiate(compiled map[string][]*DeclNode) *graph.DifferentiateResult {
	f.t.Helper()
	var base []domain.NodeSource
	for p := range compiled {
		base = append(base, domain.NewNodeSource(p))
	}
	delta, err := f.g.CreateDelta(base, nil, false)
	require.NoError(f.t, err)
	for p, nodes := range compiled {
		for _, n := range nodes {
			require.NoError(f.t, delta.Associate(n, domain.NewNodeSource(p)))
		}
	}
	result, err := f.g.Differentiate(delta, graph.DefaultParameters("test"))
	require.NoError(f.t, err)
	return result
}

func (f *fixture) round(compiled map[string][]*DeclNode) *graph.DifferentiateResult {
	f.t.Helper()
	result := f.differentiate(compiled)
	require.NoError(f.t, f.g.Integrate(result))
	return result
}

func affectedPaths(r *graph.DifferentiateResult) []string {
	var out []string
	for _, s := range r.AffectedSources() {
		out = append(out, s.Path())
	}
	return out
}

func funcF(sig, body string) *DeclNode {
	return NewDecl(DeclOptions{Kind: KindFunc, Package: "a", Name: "F", Signature: sig, BodyDigest: body, Flags: FlagExported})
}

func callers(flags Flags) map[string][]*DeclNode {
	return map[string][]*DeclNode{
		"a/c.go": {NewDecl(DeclOptions{Kind: KindFunc, Package: "a", Name: "h", Flags: flags,
			Usages: []Usage{NewDeclUsage(DeclID("a", "F"))}})},
		"b/b.go": {NewDecl(DeclOptions{Kind: KindFunc, Package: "b", Name: "G", Flags: FlagExported,
			Usages: []Usage{NewMemberUsage(PackageID("a"), "F"), NewImportUsage(PackageID("a"))}})},
	}
}

func TestStrategySignatureChangeAffectsCallers(t *testing.T) {
	f := newFixture(t)
	f.round(map[string][]*DeclNode{"a/a.go": {funcF("func()", "1")}})
	f.round(callers(0))

	result := f.differentiate(map[string][]*DeclNode{"a/a.go": {funcF("func(int)", "1")}})
	assert.True(t, result.IsIncremental())
	assert.ElementsMatch(t, []string{"a/c.go", "b/b.go"}, affectedPaths(result))
}

func TestStrategyBodyChangeAffectsNothing(t *testing.T) {
	f := newFixture(t)
	f.round(map[string][]*DeclNode{"a/a.go": {funcF("func()", "1")}})
	f.round(callers(0))

	result := f.differentiate(map[string][]*DeclNode{"a/a.go": {funcF("func()", "2")}})
	assert.True(t, result.IsIncremental())
	assert.Empty(t, result.AffectedSources())
}

func TestStrategyGeneratedUserForcesFullRebuild(t *testing.T) {
	f := newFixture(t)
	f.round(map[string][]*DeclNode{"a/a.go": {funcF("func()", "1")}})
	f.round(callers(FlagGenerated))

	result := f.differentiate(map[string][]*DeclNode{"a/a.go": {funcF("func(int)", "1")}})
	assert.False(t, result.IsIncremental())
}

func embedding(methods ...string) map[string][]*DeclNode {
	decls := []*DeclNode{NewDecl(DeclOptions{Kind: KindType, Package: "a", Name: "T", Signature: "struct{}", Flags: FlagExported})}
	for _, m := range methods {
		decls = append(decls, NewDecl(DeclOptions{Kind: KindMethod, Package: "a", Name: m, Receiver: "T", Signature: "()", Flags: FlagExported}))
	}
	return map[string][]*DeclNode{"a/a.go": decls}
}

func embedders() map[string][]*DeclNode {
	return map[string][]*DeclNode{
		"a/s.go": {NewDecl(DeclOptions{Kind: KindType, Package: "a", Name: "S", Signature: "struct", Flags: FlagExported,
			Embeds: []domain.ReferenceID{DeclID("a", "T")},
			Usages: []Usage{NewEmbedUsage(DeclID("a", "T"))}})},
		"b/u.go": {NewDecl(DeclOptions{Kind: KindFunc, Package: "b", Name: "U",
			Usages: []Usage{NewMemberUsage(PackageID("a"), "S"), NewImportUsage(PackageID("a"))}})},
	}
}

func TestStrategyRemovedMethodAffectsEmbedderUsers(t *testing.T) {
	f := newFixture(t)
	f.round(embedding("M"))
	f.round(embedders())

	result := f.differentiate(embedding())
	assert.True(t, result.IsIncremental())
	assert.Equal(t, []string{"b/u.go"}, affectedPaths(result))
}

func TestStrategyAddedMethodAffectsEmbedderUsers(t *testing.T) {
	f := newFixture(t)
	f.round(embedding("M"))
	f.round(embedders())

	result := f.differentiate(embedding("M", "N"))
	assert.Equal(t, []string{"b/u.go"}, affectedPaths(result))
}

func TestEmbeddersIndex(t *testing.T) {
	f := newFixture(t)
	f.round(embedding())
	f.round(embedders())

	idx := f.g.Index(EmbeddersIndexName)
	require.NotNil(t, idx)
	deps, err := idx.Dependencies(DeclID("a", "T"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ReferenceID{DeclID("a", "S")}, deps)
}
