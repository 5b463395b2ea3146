package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"depgraph/internal/adapters/tui/styles"
)

// keyColumn is the width of the key column in the help table.
const keyColumn = 12

// ViewBuilder accumulates the lines of a screen.
type ViewBuilder struct {
	b strings.Builder
}

func NewViewBuilder() *ViewBuilder {
	return &ViewBuilder{}
}

func (v *ViewBuilder) Title(title string) *ViewBuilder {
	return v.Line(styles.Title.Render(title))
}

// Subtitle writes a muted line followed by a blank line.
func (v *ViewBuilder) Subtitle(subtitle string) *ViewBuilder {
	return v.Line(styles.Subtitle.Render(subtitle)).BlankLine()
}

func (v *ViewBuilder) Section(label string) *ViewBuilder {
	return v.Line(styles.Label.Render(label))
}

func (v *ViewBuilder) Line(text string) *ViewBuilder {
	v.b.WriteString(text)
	v.b.WriteString("\n")
	return v
}

func (v *ViewBuilder) BlankLine() *ViewBuilder {
	return v.Line("")
}

// Message writes the status line, if any, styled by isError.
func (v *ViewBuilder) Message(message string, isError bool) *ViewBuilder {
	if message == "" {
		return v
	}
	style := styles.Success
	if isError {
		style = styles.ErrorMsg
	}
	return v.BlankLine().Line(style.Render(message))
}

// Keys writes one aligned "key  description" row per binding.
func (v *ViewBuilder) Keys(bindings ...key.Binding) *ViewBuilder {
	for _, b := range bindings {
		h := b.Help()
		v.Line(fmt.Sprintf("  %s%s", styles.HelpKey.Render(fmt.Sprintf("%-*s", keyColumn, h.Key)), styles.HelpDesc.Render(h.Desc)))
	}
	return v
}

// Help writes the footer: bindings on one line, separated by bullets.
func (v *ViewBuilder) Help(bindings ...key.Binding) *ViewBuilder {
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		h := b.Help()
		parts[i] = styles.HelpKey.Render(h.Key) + " " + styles.HelpDesc.Render(h.Desc)
	}
	v.b.WriteString("\n")
	v.b.WriteString(strings.Join(parts, styles.HelpSeparator.String()))
	return v
}

// String returns the screen wrapped in the app style.
func (v *ViewBuilder) String() string {
	return styles.App.Render(v.b.String())
}
