package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depgraph/internal/domain"
	"depgraph/internal/golang"
)

const cacheSource = `package store

import (
	"fmt"
	stdlog "log"

	"example.com/app/internal/model"
)

type Cache struct {
	*base
	model.Entity
	items map[string]int
}

func (c *Cache) Get(key string) (int, error) {
	v, ok := c.items[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	stdlog.Println(limit)
	return v, nil
}

const limit = 10

var defaultCache = New()

func New() *Cache { return &Cache{} }
`

func extract(t *testing.T, path, content string) map[string]*golang.DeclNode {
	t.Helper()
	nodes, err := NewExtractor("example.com/app", nil).Extract(domain.NewNodeSource(path), []byte(content))
	require.NoError(t, err)
	out := make(map[string]*golang.DeclNode, len(nodes))
	for _, n := range nodes {
		d, ok := n.(*golang.DeclNode)
		require.True(t, ok, "unexpected node type %T", n)
		out[d.ReferenceID().String()] = d
	}
	return out
}

func TestExtractDeclarations(t *testing.T) {
	decls := extract(t, "internal/store/cache.go", cacheSource)
	var ids []string
	for id := range decls {
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{
		"internal/store#Cache",
		"internal/store#Cache.Get",
		"internal/store#limit",
		"internal/store#defaultCache",
		"internal/store#New",
	}, ids)

	cache := decls["internal/store#Cache"]
	assert.Equal(t, golang.KindType, cache.Kind())
	assert.True(t, cache.IsExported())
	assert.Equal(t, []domain.ReferenceID{
		golang.DeclID("internal/model", "Entity"),
		golang.DeclID("internal/store", "base"),
	}, cache.Embeds())
	assert.Contains(t, cache.Usages(), domain.Usage(golang.NewEmbedUsage(golang.DeclID("internal/store", "base"))))

	get := decls["internal/store#Cache.Get"]
	assert.Equal(t, golang.KindMethod, get.Kind())
	assert.Equal(t, "Cache", get.Receiver())
	usages := get.Usages()
	assert.Contains(t, usages, domain.Usage(golang.NewMemberUsage(golang.PackageID("fmt"), "Errorf")))
	assert.Contains(t, usages, domain.Usage(golang.NewMemberUsage(golang.PackageID("log"), "Println")))
	assert.Contains(t, usages, domain.Usage(golang.NewImportUsage(golang.PackageID("fmt"))))
	assert.Contains(t, usages, domain.Usage(golang.NewDeclUsage(golang.DeclID("internal/store", "limit"))))
	assert.Contains(t, usages, domain.Usage(golang.NewDeclUsage(golang.DeclID("internal/store", "Cache"))))
	for _, local := range []string{"c", "key", "v", "ok", "error", "nil"} {
		assert.NotContains(t, usages, domain.Usage(golang.NewDeclUsage(golang.DeclID("internal/store", local))), local)
	}

	assert.False(t, decls["internal/store#limit"].IsExported())
	assert.Contains(t, decls["internal/store#defaultCache"].Usages(),
		domain.Usage(golang.NewDeclUsage(golang.DeclID("internal/store", "New"))))
	assert.NotContains(t, decls["internal/store#New"].Usages(),
		domain.Usage(golang.NewDeclUsage(golang.DeclID("internal/store", "New"))))
}

func TestExtractBodyChangeKeepsShape(t *testing.T) {
	before := extract(t, "a.go", "package a\n\nfunc F(n int) int { return n }\n")
	after := extract(t, "a.go", "package a\n\nfunc F(n int) int {\n\treturn n + 1\n}\n")
	resized := extract(t, "a.go", "package a\n\nfunc F(n int64) int { return 0 }\n")

	diff := after[".#F"].Diff(before[".#F"])
	assert.True(t, diff.BodyChanged())
	assert.False(t, diff.ShapeChanged())
	assert.True(t, resized[".#F"].Diff(before[".#F"]).SignatureChanged())
}

func TestExtractGeneratedFile(t *testing.T) {
	decls := extract(t, "gen/x.go", "// Code generated by stringer; DO NOT EDIT.\n\npackage gen\n\nfunc F() {}\n")
	assert.True(t, decls["gen#F"].IsGenerated())

	decls = extract(t, "gen/y.go", "package gen\n\n// Code generated by hand; DO NOT EDIT.\nfunc G() {}\n")
	assert.False(t, decls["gen#G"].IsGenerated())
}

func TestExtractExternalTestPackage(t *testing.T) {
	decls := extract(t, "pkg/x_test.go", "package pkg_test\n\nfunc helper() {}\n")
	assert.Contains(t, decls, "pkg_test#helper")
}

func TestExtractGroupedValues(t *testing.T) {
	decls := extract(t, "a/v.go", "package a\n\nconst (\n\tA = iota\n\tB\n)\n\nvar x, y int\n")
	for _, id := range []string{"a#A", "a#B", "a#x", "a#y"} {
		assert.Contains(t, decls, id)
	}
	assert.Equal(t, golang.KindConst, decls["a#A"].Kind())
	assert.Equal(t, golang.KindVar, decls["a#y"].Kind())
}

func TestExtractSyntaxError(t *testing.T) {
	_, err := NewExtractor("", nil).Extract(domain.NewNodeSource("bad.go"), []byte("package bad\n\nfunc {\n"))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestDefaultAlias(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"fmt", "fmt"},
		{"net/http", "http"},
		{"github.com/bmatcuk/doublestar/v4", "doublestar"},
		{"gopkg.in/yaml.v3", "yaml"},
	}
	for _, tt := range tests {
		if got := defaultAlias(tt.path); got != tt.want {
			t.Errorf("defaultAlias(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
