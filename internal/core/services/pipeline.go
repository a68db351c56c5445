package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driving"
	"github.com/custodia-labs/mmtf-derive/internal/filter"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// DefaultStatusInterval is how often Watch reports its live counters.
const DefaultStatusInterval = 30 * time.Second

// StatusFunc receives the live counters while the pipeline watches a
// source. It is called on the watching goroutine.
type StatusFunc func(domain.RunStatus)

// Ensure Pipeline implements the interface.
var _ driving.PipelineRunner = (*Pipeline)(nil)

// Pipeline runs decode, structure filters, chain extraction, chain
// filters and derivers over partitions of a record collection.
// The configuration is fixed at construction and shared read-only by
// every partition.
type Pipeline struct {
	decoder      driven.StructureDecoder
	deriver      driven.Deriver
	cfg          domain.PipelineConfig
	structureFns []domain.Predicate
	chainFns     []domain.Predicate
	manifests    driven.ManifestStore

	statusInterval time.Duration
	statusFn       StatusFunc

	// Status tracking
	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
	excluded  atomic.Int64
	records   atomic.Int64
}

// NewPipeline creates a pipeline. Derivers named in cfg are built with
// factory; a nil factory or an empty deriver list passes records through
// unchanged.
func NewPipeline(
	decoder driven.StructureDecoder,
	factory driven.DeriverFactory,
	cfg domain.PipelineConfig,
) (*Pipeline, error) {
	if decoder == nil {
		return nil, fmt.Errorf("%w: pipeline needs a decoder", domain.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, p := range cfg.Filters {
		if err := filter.Validate(p); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
	}

	var deriver driven.Deriver = passThrough{}
	if factory != nil && len(cfg.Derivers) > 0 {
		d, err := factory.Build(cfg.Derivers)
		if err != nil {
			return nil, fmt.Errorf("build derivers: %w", err)
		}
		deriver = d
	}

	structures, chains := filter.Split(cfg.Filters)
	return &Pipeline{
		decoder:        decoder,
		deriver:        deriver,
		cfg:            cfg,
		structureFns:   structures,
		chainFns:       chains,
		statusInterval: DefaultStatusInterval,
		statusFn:       logStatus,
	}, nil
}

// SetStatusReporter sets how often and to whom Watch reports progress.
// The default logs the counters every DefaultStatusInterval.
func (p *Pipeline) SetStatusReporter(interval time.Duration, fn StatusFunc) {
	if interval > 0 {
		p.statusInterval = interval
	}
	if fn != nil {
		p.statusFn = fn
	}
}

func logStatus(st domain.RunStatus) {
	logger.Info("Watch status: %d processed, %d failed, %d excluded, %d records",
		st.Processed, st.Failed, st.Excluded, st.Records)
}

// SetManifestStore configures where run summaries and manifests are saved.
func (p *Pipeline) SetManifestStore(store driven.ManifestStore) {
	p.manifests = store
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() domain.PipelineConfig {
	return p.cfg
}

// Status returns a live snapshot of the current run.
func (p *Pipeline) Status() domain.RunStatus {
	return domain.RunStatus{
		Running:   p.running.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Excluded:  p.excluded.Load(),
		Records:   p.records.Load(),
	}
}

// Run processes every record of src and returns the gathered result.
func (p *Pipeline) Run(ctx context.Context, src driven.RecordSource) (*domain.Result, error) {
	return p.run(ctx, src)
}

// RunTo runs the pipeline and writes every derived record to sink.
// A cancelled run still writes the records it completed.
func (p *Pipeline) RunTo(ctx context.Context, src driven.RecordSource, sink driven.RecordSink) (*domain.Result, error) {
	res, runErr := p.run(ctx, src)
	if res == nil {
		return nil, runErr
	}
	writeCtx := context.WithoutCancel(ctx)
	for _, rec := range res.Records {
		if err := sink.Write(writeCtx, rec); err != nil {
			return res, fmt.Errorf("write %s: %w", rec.Key, err)
		}
	}
	return res, runErr
}

func (p *Pipeline) resetStatus() {
	p.processed.Store(0)
	p.failed.Store(0)
	p.excluded.Store(0)
	p.records.Store(0)
}

// partitionResult is the output slot owned by one partition.
type partitionResult struct {
	records   []domain.ChainRecord
	manifest  []domain.ManifestEntry
	excluded  []domain.Exclusion
	decoded   int
	failed    int
	processed int
}

func (p *Pipeline) run(ctx context.Context, src driven.RecordSource) (*domain.Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: pipeline is already running", domain.ErrInvalidInput)
	}
	defer p.running.Store(false)
	p.resetStatus()

	res := &domain.Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger.Section("Pipeline run " + res.RunID)

	inputs, sourceErrs, err := collect(ctx, src)
	res.Manifest = append(res.Manifest, sourceErrs...)
	res.Stats.Failed = len(sourceErrs)
	res.Stats.Inputs = len(inputs)
	p.failed.Add(int64(len(sourceErrs)))
	if err != nil {
		res.Cancelled = true
		res.Stats.Abandoned = len(inputs)
		res.Stats.Duration = time.Since(res.StartedAt)
		return res, err
	}

	parts := partition(inputs, p.cfg.PartitionCount)
	res.Stats.Partitions = len(parts)
	slots := make([]partitionResult, len(parts))
	logger.Info("Processing %d records in %d partitions (%d workers)", len(inputs), len(parts), p.cfg.EffectiveWorkers())

	var g errgroup.Group
	g.SetLimit(p.cfg.EffectiveWorkers())
	for i, part := range parts {
		// Stop dispatching once cancelled; in-flight partitions stop at
		// their next record boundary.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			slots[i] = p.processPartition(ctx, part)
			return nil
		})
	}
	_ = g.Wait()

	processed := 0
	for _, slot := range slots {
		res.Records = append(res.Records, slot.records...)
		res.Manifest = append(res.Manifest, slot.manifest...)
		res.Excluded = append(res.Excluded, slot.excluded...)
		res.Stats.Decoded += slot.decoded
		res.Stats.Failed += slot.failed
		processed += slot.processed
	}
	for _, ex := range res.Excluded {
		if ex.Stage == domain.StageStructureFilter {
			res.Stats.ExcludedStructures++
		} else {
			res.Stats.ExcludedChains++
		}
	}
	res.Stats.Records = len(res.Records)
	res.Stats.Abandoned = len(inputs) - processed
	res.Stats.Duration = time.Since(res.StartedAt)

	err = ctx.Err()
	res.Cancelled = err != nil
	logger.Info("Run complete: %d records, %d failed, %d excluded, %d abandoned",
		res.Stats.Records, res.Stats.Failed, len(res.Excluded), res.Stats.Abandoned)

	if p.manifests != nil {
		if saveErr := p.manifests.SaveRun(context.WithoutCancel(ctx), res.Summary(), res.Manifest); saveErr != nil {
			return res, errors.Join(err, fmt.Errorf("save run: %w", saveErr))
		}
	}
	return res, err
}

// collect drains the source. Source errors become manifest entries.
func collect(ctx context.Context, src driven.RecordSource) ([]domain.RawRecord, []domain.ManifestEntry, error) {
	recordsCh, errsCh := src.Records(ctx)
	var (
		records  []domain.RawRecord
		manifest []domain.ManifestEntry
	)
	for recordsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return records, manifest, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			id := src.Type()
			var re *driven.RecordError
			if errors.As(err, &re) {
				id = re.ID
			}
			logger.Debug("Source error for %s: %v", id, err)
			manifest = append(manifest, domain.ManifestEntry{
				ID: id, Kind: domain.KindSource, Stage: domain.StageSource, Message: err.Error(),
			})

		case raw, ok := <-recordsCh:
			if !ok {
				recordsCh = nil
				continue
			}
			records = append(records, raw)
		}
	}
	return records, manifest, nil
}

// partition splits records into at most n contiguous, non-empty chunks
// whose sizes differ by at most one.
func partition(records []domain.RawRecord, n int) [][]domain.RawRecord {
	if len(records) == 0 {
		return nil
	}
	n = max(1, min(n, len(records)))
	out := make([][]domain.RawRecord, 0, n)
	size, extra := len(records)/n, len(records)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		out = append(out, records[start:end])
		start = end
	}
	return out
}

func (p *Pipeline) processPartition(ctx context.Context, part []domain.RawRecord) partitionResult {
	var res partitionResult
	for _, raw := range part {
		if ctx.Err() != nil {
			break
		}
		p.processRecord(ctx, raw, &res)
		res.processed++
		p.processed.Add(1)
	}
	return res
}

// processRecord runs one raw record through the pipeline. Its outputs
// are added to res only if every chain derived successfully.
func (p *Pipeline) processRecord(ctx context.Context, raw domain.RawRecord, res *partitionResult) {
	s, err := p.decoder.Decode(raw.Content)
	if err != nil {
		logger.Debug("Failed to decode %s: %v", raw.ID, err)
		res.failed++
		p.failed.Add(1)
		res.manifest = append(res.manifest, domain.ManifestEntry{
			ID: raw.ID, Kind: domain.KindOf(err), Stage: domain.StageDecode, Message: err.Error(),
		})
		return
	}
	res.decoded++

	if !filter.EvalAll(p.structureFns, s, filter.EvalStructure) {
		logger.Debug("Excluded %s by structure filter", raw.ID)
		p.excluded.Add(1)
		res.excluded = append(res.excluded, domain.Exclusion{ID: raw.ID, Stage: domain.StageStructureFilter})
		return
	}

	var (
		out      []domain.ChainRecord
		excluded []domain.Exclusion
	)
	for rec := range ExtractPolymerChains(s, p.cfg.Extract) {
		if !filter.EvalAll(p.chainFns, rec, filter.EvalChain) {
			excluded = append(excluded, domain.Exclusion{ID: raw.ID, ChainKey: rec.Key, Stage: domain.StageChainFilter})
			continue
		}
		derived, err := p.deriver.Derive(ctx, rec)
		if err != nil {
			logger.Debug("Failed to derive %s: %v", rec.Key, err)
			res.failed++
			p.failed.Add(1)
			res.manifest = append(res.manifest, domain.ManifestEntry{
				ID:      raw.ID,
				Kind:    domain.KindDerive,
				Stage:   domain.StageDerive,
				Message: fmt.Sprintf("%s (%s): %v", rec.Key, p.deriver.Name(), err),
			})
			return
		}
		out = append(out, derived)
	}

	p.excluded.Add(int64(len(excluded)))
	p.records.Add(int64(len(out)))
	res.excluded = append(res.excluded, excluded...)
	res.records = append(res.records, out...)
}

// passThrough is the deriver used when none is configured.
type passThrough struct{}

func (passThrough) Name() string { return "none" }

func (passThrough) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	return rec, nil
}
