package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// Watch processes records as src reports them and writes the derived
// records to sink until ctx is done or src ends the watch. Failures are
// logged and counted, never fatal. The live counters go to the status
// reporter at a fixed interval. It returns the manifest of the records
// that failed.
func (p *Pipeline) Watch(ctx context.Context, src driven.WatchSource, sink driven.RecordSink) ([]domain.ManifestEntry, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: pipeline is already running", domain.ErrInvalidInput)
	}
	defer p.running.Store(false)
	p.resetStatus()

	ticker := time.NewTicker(p.statusInterval)
	defer ticker.Stop()

	changesCh, errsCh := src.Watch(ctx)
	var manifest []domain.ManifestEntry
	for changesCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return manifest, nil

		case <-ticker.C:
			p.statusFn(p.Status())

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			logger.Warn("Watch error: %v", err)
			p.failed.Add(1)
			manifest = append(manifest, domain.ManifestEntry{
				ID: src.Type(), Kind: domain.KindSource, Stage: domain.StageSource, Message: err.Error(),
			})

		case change, ok := <-changesCh:
			if !ok {
				changesCh = nil
				continue
			}
			logger.Debug("Processing %s: %s", change.Type, change.Record.ID)

			var res partitionResult
			p.processRecord(ctx, change.Record, &res)
			p.processed.Add(1)
			manifest = append(manifest, res.manifest...)
			for _, rec := range res.records {
				if err := sink.Write(ctx, rec); err != nil {
					return manifest, fmt.Errorf("write %s: %w", rec.Key, err)
				}
			}
		}
	}
	return manifest, nil
}
