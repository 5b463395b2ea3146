// Package porttest holds a behavioural suite shared by every ports.Storage
// implementation.
package porttest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
	"depgraph/internal/serial"
)

// Node is a minimal graph node for storage tests.
type Node struct {
	ID   string
	Body string
}

func (n *Node) ReferenceID() domain.ReferenceID { return domain.NewReferenceID(n.ID) }
func (n *Node) Usages() []domain.Usage { return nil }

func (n *Node) Encode(w *serial.Writer) {
	w.WriteString(n.ID)
	w.WriteString(n.Body)
}

func decodeNode(r *serial.Reader) (serial.Element, error) {
	return &Node{ID: r.ReadString(), Body: r.ReadString()}, nil
}

// Registry returns a registry with the domain types and Node registered.
func Registry() *serial.Registry {
	reg := serial.NewRegistry()
	domain.Register(reg)
	reg.Register(&Node{}, decodeNode)
	return reg
}

func id(s string) domain.ReferenceID { return domain.NewReferenceID(s) }

func src(s string) domain.NodeSource { return domain.NewNodeSource(s) }

// RunStorageSuite exercises open against the ports.Storage contract. open
// must return an empty store built on Registry().
func RunStorageSuite(t *testing.T, open func(t *testing.T) ports.Storage) {
	t.Run("missing key reads empty", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)

		ok, err := m.ContainsKey(id("absent"))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := m.Get(id("absent"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("append de-duplicates and keeps order", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)

		require.NoError(t, m.AppendValue(id("X"), src("b.go")))
		require.NoError(t, m.AppendValues(id("X"), []domain.NodeSource{src("a.go"), src("b.go")}))

		got, err := m.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.NodeSource{src("b.go"), src("a.go")}, got)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)
		require.NoError(t, m.Put(id("X"), []domain.NodeSource{src("a.go")}))

		got, err := m.Get(id("X"))
		require.NoError(t, err)
		got[0] = src("mutated.go")

		again, err := m.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.NodeSource{src("a.go")}, again)
	})

	t.Run("put replaces and empty put removes", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)

		require.NoError(t, m.Put(id("X"), []domain.NodeSource{src("a.go"), src("b.go")}))
		require.NoError(t, m.Put(id("X"), []domain.NodeSource{src("c.go")}))
		got, err := m.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.NodeSource{src("c.go")}, got)

		require.NoError(t, m.Put(id("X"), nil))
		ok, err := m.ContainsKey(id("X"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove values drops empty keys", func(t *testing.T) {
		s := open(t)
		m, err := s.BackDependencies("node-backward-dependencies")
		require.NoError(t, err)

		require.NoError(t, m.AppendValues(id("X"), []domain.ReferenceID{id("Y"), id("Z")}))
		require.NoError(t, m.RemoveValue(id("X"), id("Y")))
		got, err := m.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.ReferenceID{id("Z")}, got)

		require.NoError(t, m.RemoveValues(id("X"), []domain.ReferenceID{id("Z")}))
		ok, err := m.ContainsKey(id("X"))
		require.NoError(t, err)
		assert.False(t, ok)

		keys, err := m.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("node values compare by content", func(t *testing.T) {
		s := open(t)
		m, err := s.SourceNodes()
		require.NoError(t, err)

		v1 := &Node{ID: "X", Body: "v1"}
		require.NoError(t, m.AppendValue(src("a.go"), v1))
		require.NoError(t, m.AppendValue(src("a.go"), &Node{ID: "X", Body: "v1"}))
		require.NoError(t, m.AppendValue(src("a.go"), &Node{ID: "X", Body: "v2"}))

		got, err := m.Get(src("a.go"))
		require.NoError(t, err)
		require.Len(t, got, 2)

		require.NoError(t, m.RemoveValue(src("a.go"), &Node{ID: "X", Body: "v1"}))
		got, err = m.Get(src("a.go"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "v2", got[0].(*Node).Body)
	})

	t.Run("keys and remove", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)

		require.NoError(t, m.AppendValue(id("X"), src("a.go")))
		require.NoError(t, m.AppendValue(id("Y"), src("b.go")))
		keys, err := m.Keys()
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.ReferenceID{id("X"), id("Y")}, keys)

		require.NoError(t, m.Remove(id("X")))
		keys, err = m.Keys()
		require.NoError(t, err)
		assert.Equal(t, []domain.ReferenceID{id("Y")}, keys)
	})

	t.Run("indices are independent", func(t *testing.T) {
		s := open(t)
		a, err := s.BackDependencies("first")
		require.NoError(t, err)
		b, err := s.BackDependencies("second")
		require.NoError(t, err)

		require.NoError(t, a.AppendValue(id("X"), id("Y")))
		ok, err := b.ContainsKey(id("X"))
		require.NoError(t, err)
		assert.False(t, ok)

		again, err := s.BackDependencies("first")
		require.NoError(t, err)
		got, err := again.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.ReferenceID{id("Y")}, got)
	})

	t.Run("clear empties all maplets", func(t *testing.T) {
		s := open(t)
		ns, err := s.NodeSources()
		require.NoError(t, err)
		idx, err := s.BackDependencies("first")
		require.NoError(t, err)
		require.NoError(t, ns.AppendValue(id("X"), src("a.go")))
		require.NoError(t, idx.AppendValue(id("X"), id("Y")))

		require.NoError(t, s.Clear())

		keys, err := ns.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
		keys, err = idx.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("flush keeps data readable", func(t *testing.T) {
		s := open(t)
		m, err := s.NodeSources()
		require.NoError(t, err)
		require.NoError(t, m.AppendValue(id("X"), src("a.go")))
		require.NoError(t, s.Flush())

		got, err := m.Get(id("X"))
		require.NoError(t, err)
		assert.Equal(t, []domain.NodeSource{src("a.go")}, got)
	})

	if _, ok := open(t).(ports.SourceStates); ok {
		t.Run("source states", func(t *testing.T) {
			states := open(t).(ports.SourceStates)
			require.NoError(t, states.SetState(src("a.go"), "d1"))
			require.NoError(t, states.SetState(src("b.go"), "d2"))
			require.NoError(t, states.SetState(src("a.go"), "d3"))
			require.NoError(t, states.RemoveState(src("b.go")))

			got, err := states.States()
			require.NoError(t, err)
			assert.Equal(t, map[domain.NodeSource]string{src("a.go"): "d3"}, got)
		})
	}
}
