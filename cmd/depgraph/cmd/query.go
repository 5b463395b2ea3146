package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"depgraph/internal/adapters/tui/styles"
	"depgraph/internal/application"
	"depgraph/internal/application/commands"
)

var (
	transitive bool
	copyOutput bool
	jsonOutput bool
)

var dependentsCmd = &cobra.Command{
	Use:   "dependents <node-id>",
	Short: "List the declarations that depend on a node",
	Long: `List the declarations whose usages point at a node.

Declarations are named <package-dir>#<Name>, methods <package-dir>#<Recv>.<Name>
and the package at the project root is ".". A package directory on its own
names the package and lists every declaration using one of its members.

Examples:
  depgraph dependents internal/store#Cache
  depgraph dependents internal/store#Cache.Get --transitive
  depgraph dependents internal/store --copy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := commands.NewDependentsCommand(proj.Graph, args[0], transitive).Execute(commandContext())
		if err != nil {
			return err
		}
		return printLines(cmd.OutOrStdout(), application.IDStrings(ids))
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [node-id]",
	Short: "List the sources of a node, or every source in the graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nodeID string
		if len(args) == 1 {
			nodeID = args[0]
		}
		sources, err := commands.NewSourcesCommand(proj.Graph, nodeID).Execute(commandContext())
		if err != nil {
			return err
		}
		return printLines(cmd.OutOrStdout(), application.SourcePaths(sources))
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes <source>",
	Short: "List the declarations a source produces",
	Long: `List the declarations a source file produces with their kind,
signature and the nodes they use.

Examples:
  depgraph nodes internal/store/cache.go
  depgraph nodes main.go --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := commands.NewNodesCommand(proj.Graph, args[0]).Execute(commandContext())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}
		for _, n := range nodes {
			line := fmt.Sprintf("%s %s", styles.Kind(n.Kind).Render(n.Kind), n.ID)
			if n.Signature != "" {
				line += " " + styles.MutedText.Render(n.Signature)
			}
			if n.Generated {
				line += " " + styles.Generated.Render("(generated)")
			}
			fmt.Fprintln(out, line)
			for _, u := range n.Uses {
				fmt.Fprintf(out, "  %s %s\n", styles.MutedText.Render("uses"), u)
			}
		}
		return nil
	},
}

// printLines writes lines to out and, with --copy, to the clipboard
func printLines(out io.Writer, lines []string) error {
	if len(lines) == 0 {
		fmt.Fprintln(out, styles.MutedText.Render("No results"))
		return nil
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	if copyOutput {
		if err := clipboard.WriteAll(strings.Join(lines, "\n")); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
	}
	return nil
}

func init() {
	dependentsCmd.Flags().BoolVarP(&transitive, "transitive", "t", false, "follow dependents of dependents")
	for _, c := range []*cobra.Command{dependentsCmd, sourcesCmd} {
		c.Flags().BoolVar(&copyOutput, "copy", false, "also copy the result to the clipboard")
	}
	nodesCmd.Flags().BoolVar(&jsonOutput, "json", false, "print nodes as JSON")

	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(nodesCmd)
}
