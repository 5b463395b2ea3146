package domain

import "time"

// RoundStats holds the outcome of one differentiate/integrate round.
type RoundStats struct {
	Compiled     []NodeSource // Sources recompiled in this round
	Deleted      []NodeSource // Sources removed in this round
	Affected     []NodeSource // Sources scheduled for the next round
	DeletedNodes []ReferenceID
	WithErrors   []NodeSource // Sources that failed to compile
}

// BuildStats holds statistics from a build
type BuildStats struct {
	Rounds       []RoundStats
	FullRebuild  bool
	FilesScanned int
	Duration     time.Duration
}

// Compiled returns the distinct sources compiled across all rounds.
func (s *BuildStats) Compiled() []NodeSource {
	set := NewSources()
	for _, r := range s.Rounds {
		set.Add(r.Compiled...)
	}
	return set.Items()
}
