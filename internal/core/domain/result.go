package domain

import "time"

// Stage names where in the pipeline a record stopped.
type Stage string

// Pipeline stages.
const (
	StageSource          Stage = "source"
	StageDecode          Stage = "decode"
	StageStructureFilter Stage = "structure-filter"
	StageChainFilter     Stage = "chain-filter"
	StageDerive          Stage = "derive"
)

// ManifestEntry records one input that failed and was skipped.
type ManifestEntry struct {
	ID      string
	Kind    ErrorKind
	Stage   Stage
	Message string
}

// Exclusion records an input or chain that a filter rejected.
// Exclusions are not failures.
type Exclusion struct {
	ID       string
	ChainKey string
	Stage    Stage
}

// RunStats summarises a pipeline run.
type RunStats struct {
	Inputs             int
	Decoded            int
	Failed             int
	ExcludedStructures int
	ExcludedChains     int
	Records            int
	Partitions         int
	Abandoned          int
	Duration           time.Duration
}

// Result is everything a run produced: the derived records, the failure
// manifest and the filter exclusions.
type Result struct {
	RunID     string
	StartedAt time.Time
	Records   []ChainRecord
	Manifest  []ManifestEntry
	Excluded  []Exclusion
	Stats     RunStats
	Cancelled bool
}

// RunSummary is the persisted view of a run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Stats     RunStats
	Cancelled bool
}

// Summary returns the persisted view of the result.
func (r *Result) Summary() RunSummary {
	return RunSummary{RunID: r.RunID, StartedAt: r.StartedAt, Stats: r.Stats, Cancelled: r.Cancelled}
}

// RunStatus is a live snapshot of a running pipeline.
type RunStatus struct {
	Running   bool
	Processed int64
	Failed    int64
	Excluded  int64
	Records   int64
}
