package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"depgraph/internal/adapters/tui/styles"
	"depgraph/internal/application"
	"depgraph/internal/application/commands"
)

var impactCmd = &cobra.Command{
	Use:   "impact <source>...",
	Short: "Show what recompiling sources in their current state would affect",
	Long: `Differentiate the given sources against the graph without storing the
result. Sources missing on disk count as deleted.

Examples:
  depgraph impact internal/store/cache.go
  depgraph impact $(git diff --name-only -- '*.go')`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := commands.NewImpactCommand(proj.Graph, proj.Tree, proj.Frontend, args).Execute(commandContext())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !result.Incremental {
			fmt.Fprintln(out, styles.WarningMsg.Render("not incremental: a build would rebuild everything"))
			return nil
		}
		for _, id := range application.IDStrings(result.DeletedNodes) {
			fmt.Fprintf(out, "%s %s\n", styles.WarningMsg.Render("deleted"), id)
		}
		for _, p := range application.SourcePaths(result.WithErrors) {
			fmt.Fprintf(out, "%s %s\n", styles.ErrorMsg.Render("failed"), p)
		}
		for _, p := range application.SourcePaths(result.Affected) {
			fmt.Fprintf(out, "%s %s\n", styles.Label.Render("affected"), p)
		}
		fmt.Fprintln(out, styles.Success.Render(fmt.Sprintf("%d sources affected", len(result.Affected))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
}
