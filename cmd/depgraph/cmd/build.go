package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"depgraph/internal/adapters/tui/styles"
	"depgraph/internal/application"
)

var buildFull bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bring the graph up to date with the source tree",
	Long: `Recompile changed sources and everything their changes affect.

Each round compiles a set of files and schedules the files whose
declarations depend on a changed shape. A build that cannot stay
incremental, or needs more than --max-rounds rounds, rebuilds everything.

Examples:
  depgraph build
  depgraph build --full
  depgraph build --propagation any --affect 'internal/**'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := proj.BuildCommand(buildFull).Execute(commandContext())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, r := range stats.Rounds {
			fmt.Fprintf(out, "%s %s\n", styles.Label.Render(fmt.Sprintf("round %d", i+1)), joinPaths(r.Compiled))
			if len(r.Deleted) > 0 {
				fmt.Fprintf(out, "  %s %s\n", styles.WarningMsg.Render("deleted"), joinPaths(r.Deleted))
			}
			if len(r.WithErrors) > 0 {
				fmt.Fprintf(out, "  %s %s\n", styles.ErrorMsg.Render("failed"), joinPaths(r.WithErrors))
			}
		}

		summary := fmt.Sprintf("%d files scanned, %d compiled in %d rounds (%s)",
			stats.FilesScanned, len(stats.Compiled()), len(stats.Rounds), stats.Duration.Round(time.Millisecond))
		if stats.FullRebuild {
			summary += ", full rebuild"
		}
		fmt.Fprintln(out, styles.Success.Render(summary))
		return nil
	},
}

func joinPaths(sources []application.NodeSource) string {
	return strings.Join(application.SourcePaths(sources), " ")
}

func init() {
	buildCmd.Flags().BoolVar(&buildFull, "full", false, "discard the graph and rebuild everything")
	rootCmd.AddCommand(buildCmd)
}
