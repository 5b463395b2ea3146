package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"depgraph/internal/application"
	"depgraph/internal/ctxlog"
	"depgraph/internal/domain"
	"depgraph/internal/graph"
	"depgraph/internal/ports"
)

// DefaultMaxRounds bounds incremental rounds before falling back to a full rebuild.
const DefaultMaxRounds = 10

// BuildCommand brings the graph up to date with the source tree. Dirty
// sources are recompiled and their affected dependents follow in further
// rounds until nothing is left.
type BuildCommand struct {
	graph    *graph.DependencyGraph
	states   ports.SourceStates
	tree     ports.SourceTree
	frontend ports.Frontend

	Full      bool
	MaxRounds int
	// AffectionFilter limits which sources may be scheduled as affected. nil accepts all.
	AffectionFilter graph.SourceFilter
}

// NewBuildCommand creates a new BuildCommand
func NewBuildCommand(g *graph.DependencyGraph, states ports.SourceStates, tree ports.SourceTree, frontend ports.Frontend) *BuildCommand {
	return &BuildCommand{
		graph:     g,
		states:    states,
		tree:      tree,
		frontend:  frontend,
		MaxRounds: DefaultMaxRounds,
	}
}

// Validate checks the command options
func (c *BuildCommand) Validate() error {
	return application.ValidatePositive("maxRounds", c.MaxRounds)
}

// Execute runs the build
func (c *BuildCommand) Execute(ctx context.Context) (*domain.BuildStats, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)
	start := time.Now()

	files, err := c.tree.Scan()
	if err != nil {
		return nil, err
	}
	digests := make(map[domain.NodeSource]string, len(files))
	for _, f := range files {
		digests[f.Source] = f.Digest
	}
	stats := &domain.BuildStats{FilesScanned: len(files)}

	if c.Full {
		err = c.fullBuild(ctx, stats, digests)
	} else {
		err = c.incrementalBuild(ctx, stats, digests)
	}
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	log.Info("build finished",
		"rounds", len(stats.Rounds),
		"compiled", len(stats.Compiled()),
		"full", stats.FullRebuild,
		"duration", stats.Duration)
	return stats, nil
}

func (c *BuildCommand) incrementalBuild(ctx context.Context, stats *domain.BuildStats, digests map[domain.NodeSource]string) error {
	log := ctxlog.FromContext(ctx)
	known, err := c.states.States()
	if err != nil {
		return err
	}

	var dirty, deleted []domain.NodeSource
	for src, digest := range digests {
		if known[src] != digest {
			dirty = append(dirty, src)
		}
	}
	for src := range known {
		if _, ok := digests[src]; !ok {
			deleted = append(deleted, src)
		}
	}
	sortSources(dirty)
	sortSources(deleted)
	log.Debug("change detection", "dirty", len(dirty), "deleted", len(deleted))

	for round := 1; len(dirty) > 0 || len(deleted) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if round > c.MaxRounds {
			log.Warn("round limit reached, rebuilding everything", "max_rounds", c.MaxRounds)
			return c.fullBuild(ctx, stats, digests)
		}

		rs, result, err := c.round(ctx, round, dirty, deleted, digests, true)
		if err != nil {
			return &application.BuildError{Round: round, Err: err}
		}
		if !result.IsIncremental() {
			log.Info("incremental build not possible, rebuilding everything", "round", round)
			return c.fullBuild(ctx, stats, digests)
		}
		if err := c.commit(result, rs, digests); err != nil {
			return &application.BuildError{Round: round, Err: err}
		}
		stats.Rounds = append(stats.Rounds, rs)
		dirty, deleted = rs.Affected, nil
	}
	return nil
}

// fullBuild discards the graph and compiles every source in one round.
func (c *BuildCommand) fullBuild(ctx context.Context, stats *domain.BuildStats, digests map[domain.NodeSource]string) error {
	if err := c.graph.Reset(); err != nil {
		return err
	}
	all := make([]domain.NodeSource, 0, len(digests))
	for src := range digests {
		all = append(all, src)
	}
	sortSources(all)

	stats.FullRebuild = true
	stats.Rounds = nil
	rs, result, err := c.round(ctx, 1, all, nil, digests, false)
	if err != nil {
		return &application.BuildError{Round: 1, Err: err}
	}
	if err := c.commit(result, rs, digests); err != nil {
		return &application.BuildError{Round: 1, Err: err}
	}
	stats.Rounds = append(stats.Rounds, rs)
	return nil
}

// round extracts nodes for compile and differentiates them against the graph.
func (c *BuildCommand) round(ctx context.Context, n int, compile, deleted []domain.NodeSource, digests map[domain.NodeSource]string, incremental bool) (domain.RoundStats, *graph.DifferentiateResult, error) {
	log := ctxlog.FromContext(ctx).With("round", n)
	rs := domain.RoundStats{Compiled: compile, Deleted: deleted}

	delta, err := c.graph.CreateDelta(compile, deleted, false)
	if err != nil {
		return rs, nil, err
	}
	for _, src := range compile {
		content, err := c.tree.Read(src)
		if err != nil {
			return rs, nil, err
		}
		nodes, err := c.frontend.Extract(src, content)
		if err != nil {
			log.Warn("source failed to compile", "source", src.Path(), "error", err)
			rs.WithErrors = append(rs.WithErrors, src)
			continue
		}
		delta.MarkCompiled(src)
		for _, node := range nodes {
			if err := delta.Associate(node, src); err != nil {
				return rs, nil, err
			}
		}
	}

	params := graph.DefaultParameters(fmt.Sprintf("build-%d", n))
	params.CompiledWithErrors = len(rs.WithErrors) > 0
	params.CalculateAffected = incremental
	params.AffectionFilter = c.AffectionFilter
	params.BelongsToCurrentCompilationChunk = c.tree.InScope

	result, err := c.graph.Differentiate(delta, params)
	if err != nil {
		return rs, nil, err
	}
	for _, node := range result.DeletedNodes() {
		rs.DeletedNodes = append(rs.DeletedNodes, node.ReferenceID())
	}
	rs.Affected = result.AffectedSources()
	log.Debug("round differentiated",
		"compiled", len(compile),
		"deleted", len(deleted),
		"with_errors", len(rs.WithErrors),
		"affected", len(rs.Affected))
	return rs, result, nil
}

// commit integrates result and records the digests of the sources it covered.
// Sources that failed keep their old digest so the next build retries them.
func (c *BuildCommand) commit(result *graph.DifferentiateResult, rs domain.RoundStats, digests map[domain.NodeSource]string) error {
	if err := c.graph.Integrate(result); err != nil {
		return err
	}
	failed := domain.NewSources(rs.WithErrors...)
	for _, src := range rs.Compiled {
		if failed.Contains(src) {
			continue
		}
		if err := c.states.SetState(src, digests[src]); err != nil {
			return err
		}
	}
	for _, src := range rs.Deleted {
		if err := c.states.RemoveState(src); err != nil {
			return err
		}
	}
	return c.graph.Flush()
}

func sortSources(s []domain.NodeSource) {
	sort.Slice(s, func(i, j int) bool { return s[i].Path() < s[j].Path() })
}
