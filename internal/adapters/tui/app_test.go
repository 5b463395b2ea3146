package tui

import (
	"errors"
	"os/exec"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"depgraph/internal/adapters/memory"
	"depgraph/internal/adapters/tui/views"
	"depgraph/internal/domain"
	"depgraph/internal/golang"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

type emptyTree struct{}

func (emptyTree) Scan() ([]ports.SourceFile, error) { return nil, nil }
func (emptyTree) Read(domain.NodeSource) ([]byte, error) { return nil, errors.New("empty") }
func (emptyTree) AbsPath(src domain.NodeSource) string { return "/" + src.Path() }
func (emptyTree) InScope(domain.NodeSource) bool { return true }

type failingEditor struct{}

func (failingEditor) Command(string) (*exec.Cmd, error) { return nil, errors.New("boom") }

func newApp(t *testing.T, ed ports.EditorOpener) *App {
	t.Helper()
	reg := golang.NewRegistry()
	g, err := graph.New(memory.NewStorage(reg), reg, golang.Options(golang.AffectShape)...)
	if err != nil {
		t.Fatalf("graph.New failed: %v", err)
	}
	a := NewApp(g, emptyTree{}, ed)
	a.Update(a.Init()())
	return a
}

// send delivers msg and feeds back the message of the returned command.
func send(a *App, msg tea.Msg) {
	_, cmd := a.Update(msg)
	if cmd != nil {
		a.Update(cmd())
	}
}

func TestApp_HelpRoundTrip(t *testing.T) {
	a := newApp(t, nil)

	send(a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if a.Screen() != ScreenHelp {
		t.Fatalf("expected help screen, got %d", a.Screen())
	}

	send(a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.Screen() != ScreenBrowser {
		t.Fatalf("expected browser screen, got %d", a.Screen())
	}
}

func TestApp_OpenEditor(t *testing.T) {
	tests := []struct {
		name   string
		editor ports.EditorOpener
		want   string
	}{
		{name: "disabled", want: "Editing is disabled"},
		{name: "command fails", editor: failingEditor{}, want: "Editor: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t, tt.editor)
			send(a, views.OpenEditorMsg{Path: "/a.go"})
			if a.browser.Message != tt.want || !a.browser.MessageErr {
				t.Errorf("expected error message %q, got %q (err=%v)", tt.want, a.browser.Message, a.browser.MessageErr)
			}
		})
	}
}
