package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"depgraph/internal/config"
	"depgraph/internal/ctxlog"
	"depgraph/internal/logging"
	"depgraph/internal/project"
)

var (
	v      = viper.New()
	cfg    *config.Config
	logger *slog.Logger
	proj   *project.Project
)

var rootCmd = &cobra.Command{
	Use:   "depgraph",
	Short: "Incremental dependency graph for Go projects",
	Long: `depgraph keeps a persistent graph of the declarations in a Go project
and who uses them.

A build recompiles only the files that changed, then the files whose
declarations depend on something whose shape changed, round after round
until nothing is left. The graph then answers which declarations depend on
a node and which files a change would affect.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		proj, err = project.Open(cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if proj == nil {
			return nil
		}
		return proj.Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("root", "r", config.DefaultRoot, "project root")
	flags.String("db", "", "graph database path (default: per project under $XDG_DATA_HOME/depgraph)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.StringSlice("include", nil, "globs of sources to compile (default **/*.go)")
	flags.StringSlice("exclude", nil, "globs of sources to skip (default vendor/**, **/testdata/**)")
	flags.StringSlice("affect", nil, "globs limiting which sources a build may recompile as affected")
	flags.String("propagation", "shape", "what a change propagates: shape (signatures and kinds) or any")
	flags.Int("max-rounds", config.DefaultMaxRounds, "incremental rounds before falling back to a full rebuild")
	flags.String("editor", "", "editor command for browse (default $EDITOR)")

	for _, name := range []string{"root", "db", "log-level", "log-format", "include", "exclude", "affect", "propagation", "max-rounds", "editor"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// commandContext returns a context carrying the process logger
func commandContext() context.Context {
	return ctxlog.WithLogger(context.Background(), logger)
}
