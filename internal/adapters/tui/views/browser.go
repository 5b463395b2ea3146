package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"depgraph/internal/adapters/tui/styles"
	"depgraph/internal/application"
	"depgraph/internal/application/commands"
	"depgraph/internal/domain"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// BrowserKeyMap defines key bindings for the browser view
type BrowserKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Left     key.Binding
	Right    key.Binding
	Enter    key.Binding
	Edit     key.Binding
	Copy     key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var BrowserKeys = BrowserKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("ctrl+u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("ctrl+d", "page down"),
	),
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "collapse"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "expand"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "toggle"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy ID"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// chromeHeight is the number of rows taken by everything but the tree
const chromeHeight = 9

// BrowserModel browses sources, the nodes they produce and who depends on them
type BrowserModel struct {
	ViewState

	graph     graph.Graph
	tree      ports.SourceTree
	roots     []*Entry
	flat      []*Entry
	paginator *Paginator
	loaded    bool

	// writeClipboard is replaced in tests
	writeClipboard func(string) error
}

// NewBrowserModel creates a new browser model
func NewBrowserModel(g graph.Graph, tree ports.SourceTree) *BrowserModel {
	return &BrowserModel{
		graph:          g,
		tree:           tree,
		paginator:      NewPaginator(20),
		writeClipboard: clipboard.WriteAll,
	}
}

// Init initializes the browser
func (m *BrowserModel) Init() tea.Cmd {
	return m.loadSources
}

func (m *BrowserModel) loadSources() tea.Msg {
	sources, err := commands.NewSourcesCommand(m.graph, "").Execute(context.Background())
	if err != nil {
		return errMsg{err}
	}
	roots := make([]*Entry, len(sources))
	for i, src := range sources {
		roots[i] = &Entry{Type: EntrySource, ID: src.Path()}
	}
	return sourcesLoadedMsg{roots}
}

type sourcesLoadedMsg struct {
	roots []*Entry
}

type childrenLoadedMsg struct {
	entry    *Entry
	children []*Entry
}

// Update handles messages for the browser
func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case sourcesLoadedMsg:
		m.roots = msg.roots
		m.loaded = true
		m.refresh()
		return m, nil

	case childrenLoadedMsg:
		msg.entry.SetChildren(msg.children)
		for _, c := range msg.children {
			if msg.entry.onPath(c.ID) {
				// Cycle: shown, but never expanded.
				c.loaded = true
			}
		}
		m.refresh()
		return m, nil

	case errMsg:
		m.SetMessage(msg.err.Error(), true)
		return m, nil

	case tea.KeyMsg:
		m.ClearMessage()

		switch {
		case key.Matches(msg, BrowserKeys.Quit):
			return m, tea.Quit

		case key.Matches(msg, BrowserKeys.Up):
			m.paginator.CursorUp()
			return m, nil

		case key.Matches(msg, BrowserKeys.Down):
			m.paginator.CursorDown()
			return m, nil

		case key.Matches(msg, BrowserKeys.PageUp):
			m.paginator.PageUp()
			return m, nil

		case key.Matches(msg, BrowserKeys.PageDown):
			m.paginator.PageDown()
			return m, nil

		case key.Matches(msg, BrowserKeys.Left):
			if e := m.Selected(); e != nil {
				if e.IsExpanded {
					e.Collapse()
					m.refresh()
				} else if e.Parent != nil {
					m.selectEntry(e.Parent)
				}
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Right), key.Matches(msg, BrowserKeys.Enter):
			e := m.Selected()
			if e == nil || isLeaf(e) {
				return m, nil
			}
			if !e.IsExpanded {
				e.Expand()
				if !e.loaded {
					return m, m.loadChildren(e)
				}
				m.refresh()
			} else if key.Matches(msg, BrowserKeys.Enter) {
				e.Collapse()
				m.refresh()
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Edit):
			if e := m.Selected(); e != nil {
				return m, m.openSource(e)
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Copy):
			if e := m.Selected(); e != nil {
				if err := m.writeClipboard(e.ID); err != nil {
					m.SetMessage(fmt.Sprintf("Copy failed: %v", err), true)
				} else {
					m.SetMessage(fmt.Sprintf("Copied %s", e.ID), false)
				}
			}
			return m, nil

		case key.Matches(msg, BrowserKeys.Reload):
			return m, m.Reload()

		case key.Matches(msg, BrowserKeys.Help):
			return m, func() tea.Msg {
				return SwitchToHelpMsg{}
			}
		}
	}

	return m, nil
}

func (m *BrowserModel) loadChildren(e *Entry) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var children []*Entry

		if e.Type == EntrySource {
			nodes, err := commands.NewNodesCommand(m.graph, e.ID).Execute(ctx)
			if err != nil && !errors.Is(err, application.ErrNotFound) {
				return errMsg{err}
			}
			for _, n := range nodes {
				children = append(children, &Entry{Type: EntryNode, ID: n.ID, Info: n})
			}
			return childrenLoadedMsg{entry: e, children: children}
		}

		ids, err := commands.NewDependentsCommand(m.graph, e.ID, false).Execute(ctx)
		if err != nil {
			return errMsg{err}
		}
		for _, id := range ids {
			children = append(children, &Entry{Type: EntryDependent, ID: id.String()})
		}
		return childrenLoadedMsg{entry: e, children: children}
	}
}

// openSource resolves the file behind e and asks the app to edit it
func (m *BrowserModel) openSource(e *Entry) tea.Cmd {
	return func() tea.Msg {
		var path string
		switch {
		case e.Type == EntrySource:
			path = e.ID
		case e.Type == EntryNode && e.Parent != nil:
			path = e.Parent.ID
		default:
			sources, err := commands.NewSourcesCommand(m.graph, e.ID).Execute(context.Background())
			if err != nil {
				return errMsg{err}
			}
			path = sources[0].Path()
		}
		return OpenEditorMsg{Path: m.tree.AbsPath(domain.NewNodeSource(path))}
	}
}

func isLeaf(e *Entry) bool {
	return e.loaded && len(e.Children) == 0
}

// Selected returns the entry under the cursor
func (m *BrowserModel) Selected() *Entry {
	if c := m.paginator.Cursor(); c >= 0 && c < len(m.flat) {
		return m.flat[c]
	}
	return nil
}

// Visible returns the entries currently shown in the tree
func (m *BrowserModel) Visible() []*Entry {
	return m.flat
}

func (m *BrowserModel) selectEntry(target *Entry) {
	for i, e := range m.flat {
		if e == target {
			m.paginator.SetCursor(i)
			return
		}
	}
}

func (m *BrowserModel) refresh() {
	m.flat = Flatten(m.roots)
	m.paginator.SetTotal(len(m.flat))
}

// View renders the browser
func (m *BrowserModel) View() string {
	if !m.loaded {
		return "Loading..."
	}

	v := NewViewBuilder().
		Title("depgraph").
		Subtitle(fmt.Sprintf("%d sources", len(m.roots)))

	if len(m.flat) == 0 {
		v.Line(styles.MutedText.Render("The graph is empty. Run depgraph build first."))
	}
	start, end := m.paginator.VisibleRange()
	for i := start; i < end; i++ {
		v.Line(m.renderEntry(m.flat[i], i == m.paginator.Cursor()))
	}

	return v.Message(m.Message, m.MessageErr).
		Help(BrowserKeys.Right, BrowserKeys.Left, BrowserKeys.Edit, BrowserKeys.Copy, BrowserKeys.Reload, BrowserKeys.Help, BrowserKeys.Quit).
		String()
}

func (m *BrowserModel) renderEntry(e *Entry, selected bool) string {
	indent := strings.Repeat("  ", e.Depth())

	var prefix string
	switch {
	case isLeaf(e):
		prefix = styles.TreeLeaf
	case e.IsExpanded:
		prefix = styles.TreeExpanded
	default:
		prefix = styles.TreeCollapsed
	}

	var text string
	switch e.Type {
	case EntrySource:
		text = styles.EntrySource.Render(e.ID)
	case EntryNode:
		text = fmt.Sprintf("%s %s", styles.Kind(e.Info.Kind).Render(e.Info.Kind), e.ID)
		if e.Info.Signature != "" {
			text += " " + styles.MutedText.Render(e.Info.Signature)
		}
		if e.Info.Generated {
			text += " " + styles.Generated.Render("(generated)")
		}
	case EntryDependent:
		text = styles.EntryDependent.Render(e.ID)
	}

	if selected {
		text = styles.EntrySelected.Render(e.ID)
	}

	return fmt.Sprintf("%s%s%s", indent, styles.TreeBranch.Render(prefix), text)
}

// SetSize updates the view dimensions
func (m *BrowserModel) SetSize(width, height int) {
	m.ViewState.SetSize(width, height)
	m.paginator.SetPageSize(height - chromeHeight)
}

// Reload reloads the tree from the graph
func (m *BrowserModel) Reload() tea.Cmd {
	m.roots = nil
	m.flat = nil
	m.loaded = false
	m.paginator.SetTotal(0)
	return m.loadSources
}
