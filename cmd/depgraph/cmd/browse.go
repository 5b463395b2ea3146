package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"depgraph/internal/adapters/editor"
	"depgraph/internal/adapters/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse sources, their declarations and dependents interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := tui.NewApp(proj.Graph, proj.Tree, editor.NewOpener(cfg.Editor))
		_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
