// Package tui is the interactive dependency browser behind "depgraph browse".
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"depgraph/internal/adapters/tui/views"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// Screen identifies the view that receives input.
type Screen int

const (
	ScreenBrowser Screen = iota
	ScreenHelp
)

// App routes messages between the browser and the help screen and runs the
// editor on behalf of the browser.
type App struct {
	editor ports.EditorOpener

	screen  Screen
	browser *views.BrowserModel
	help    *views.HelpModel
}

// NewApp creates the browser over g. A nil editor disables editing.
func NewApp(g graph.Graph, tree ports.SourceTree, ed ports.EditorOpener) *App {
	return &App{
		editor:  ed,
		screen:  ScreenBrowser,
		browser: views.NewBrowserModel(g, tree),
		help:    views.NewHelpModel(),
	}
}

func (a *App) Init() tea.Cmd {
	return a.browser.Init()
}

// Screen reports the active view.
func (a *App) Screen() Screen { return a.screen }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.browser.SetSize(msg.Width, msg.Height)
		a.help.SetSize(msg.Width, msg.Height)
		return a, nil

	case views.SwitchToHelpMsg:
		a.screen = ScreenHelp
		return a, nil

	case views.SwitchToBrowserMsg:
		a.screen = ScreenBrowser
		return a, nil

	case views.OpenEditorMsg:
		a.screen = ScreenBrowser
		return a, a.openEditor(msg.Path)

	case editorFinishedMsg:
		if msg.err != nil {
			a.browser.SetMessage(fmt.Sprintf("Editor: %v", msg.err), true)
		}
		return a, nil
	}

	var cmd tea.Cmd
	if a.screen == ScreenHelp {
		_, cmd = a.help.Update(msg)
	} else {
		_, cmd = a.browser.Update(msg)
	}
	return a, cmd
}

type editorFinishedMsg struct{ err error }

func (a *App) openEditor(path string) tea.Cmd {
	if a.editor == nil {
		a.browser.SetMessage("Editing is disabled", true)
		return nil
	}

	cmd, err := a.editor.Command(path)
	if err != nil {
		return func() tea.Msg {
			return editorFinishedMsg{err: err}
		}
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{err: err}
	})
}

func (a *App) View() string {
	if a.screen == ScreenHelp {
		return a.help.View()
	}
	return a.browser.View()
}
