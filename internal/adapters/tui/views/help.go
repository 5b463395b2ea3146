package views

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"depgraph/internal/adapters/tui/styles"
)

type HelpKeyMap struct {
	Close key.Binding
}

var HelpKeys = HelpKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc", "q", "?"),
		key.WithHelp("esc/q/?", "close"),
	),
}

// HelpModel is the model for the help view
type HelpModel struct {
	ViewState
}

// NewHelpModel creates a new help view model
func NewHelpModel() *HelpModel {
	return &HelpModel{}
}

func (m *HelpModel) Init() tea.Cmd {
	return nil
}

func (m *HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, HelpKeys.Close) {
			return m, func() tea.Msg {
				return SwitchToBrowserMsg{}
			}
		}
	}

	return m, nil
}

// View renders the help view
func (m *HelpModel) View() string {
	v := NewViewBuilder().
		Title("depgraph help").
		Subtitle("Dependency graph browser")

	v.Section("Navigation")
	v.Keys(BrowserKeys.Up, BrowserKeys.Down, BrowserKeys.PageUp, BrowserKeys.PageDown, BrowserKeys.Left, BrowserKeys.Right, BrowserKeys.Enter)
	v.BlankLine()

	v.Section("Actions")
	v.Keys(BrowserKeys.Edit, BrowserKeys.Copy, BrowserKeys.Reload)
	v.BlankLine()

	v.Section("Tree")
	v.Line(styles.MutedText.Render("  source     the nodes a file produces"))
	v.Line(styles.MutedText.Render("  node       the declarations that use it"))
	v.Line(styles.MutedText.Render("  dependent  its own dependents, one level per expand"))
	v.BlankLine()

	return v.Help(HelpKeys.Close).String()
}
