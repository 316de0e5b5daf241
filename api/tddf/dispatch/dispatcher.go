package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"MerchantMMS/api/tddf/metrics"
	"MerchantMMS/api/tddf/processors"
	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/internal/config"
)

// TypeCounts is the per-record-type slice of a dispatch result.
type TypeCounts struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// DispatchResult summarizes one dispatch run. Duplicates count as processed;
// skipped covers unknown record types, errors covers lines that failed and
// were skip-marked with an error reason.
type DispatchResult struct {
	TotalProcessed   int                    `json:"total_processed"`
	TotalSkipped     int                    `json:"total_skipped"`
	TotalErrors      int                    `json:"total_errors"`
	Breakdown        map[string]*TypeCounts `json:"breakdown"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// Dispatcher routes pending raw lines to their record-type processors, one
// database transaction per line.
type Dispatcher struct {
	pool     *pgxpool.Pool
	store    *rawimport.Store
	registry *processors.Registry
	tracker  *processors.Tracker
	metrics  *metrics.Store
}

func NewDispatcher(pool *pgxpool.Pool, store *rawimport.Store, reg *processors.Registry, ms *metrics.Store) *Dispatcher {
	return &Dispatcher{
		pool:     pool,
		store:    store,
		registry: reg,
		tracker:  processors.NewTracker(),
		metrics:  ms,
	}
}

// ProcessPending fetches up to batchSize pending lines (all files when fileID
// is uuid.Nil) and dispatches them. A crashed previous run needs no special
// handling here: whatever is still pending is simply picked up again.
func (d *Dispatcher) ProcessPending(ctx context.Context, fileID uuid.UUID, batchSize int) (*DispatchResult, error) {
	if batchSize <= 0 {
		batchSize = config.DefaultDispatchBatchSize
	}
	lines, err := d.store.PendingLines(ctx, fileID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending TDDF lines: %w", err)
	}
	for _, fid := range sourceFiles(lines) {
		if err := d.store.SetFileStatus(ctx, fid, rawimport.FileStatusProcessing, nil); err != nil {
			log.Printf("ERROR: Failed to mark file %s processing: %v", fid, err)
		}
	}
	result := d.DispatchLines(ctx, lines)

	for _, fid := range sourceFiles(lines) {
		remaining, err := d.store.PendingCount(ctx, fid)
		if err != nil {
			log.Printf("ERROR: Failed to count remaining pending lines for file %s: %v", fid, err)
			continue
		}
		if remaining == 0 {
			if err := d.store.SetFileStatus(ctx, fid, rawimport.FileStatusCompleted, nil); err != nil {
				log.Printf("ERROR: Failed to mark file %s completed: %v", fid, err)
			}
		}
	}
	return result, nil
}

// sourceFiles returns the distinct source file IDs of the batch in first-seen
// order. The cron sweep dispatches across files, so completion has to be
// checked per file, not per call.
func sourceFiles(lines []rawimport.RawImportLine) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(lines))
	var out []uuid.UUID
	for _, ln := range lines {
		if ln.SourceFileID == uuid.Nil || seen[ln.SourceFileID] {
			continue
		}
		seen[ln.SourceFileID] = true
		out = append(out, ln.SourceFileID)
	}
	return out
}

// DispatchLines processes an explicit line set. The recovery controller uses
// this to re-dispatch exactly the lines it reset to pending.
func (d *Dispatcher) DispatchLines(ctx context.Context, lines []rawimport.RawImportLine) *DispatchResult {
	start := time.Now()
	result := &DispatchResult{Breakdown: make(map[string]*TypeCounts)}
	if len(lines) == 0 {
		return result
	}

	groups := groupByType(lines)
	for _, recordType := range orderedTypes(groups) {
		group := groups[recordType]
		counts := &TypeCounts{}
		result.Breakdown[recordType] = counts

		proc := d.registry.Lookup(recordType)
		if proc == nil {
			d.skipUnknownGroup(ctx, group, counts)
			continue
		}

		batchSize := OptimalBatchSize(recordType)
		chunks := subBatches(group, batchSize)
		log.Printf("[AUDIT] Dispatching %d %s lines in %d sub-batches of up to %d",
			len(group), recordType, len(chunks), batchSize)

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, chunk := range chunks {
			wg.Add(1)
			go func(chunk []rawimport.RawImportLine) {
				defer wg.Done()
				var processed, errored int
				for _, line := range chunk {
					if err := d.processLine(ctx, proc, line); err != nil {
						errored++
					} else {
						processed++
					}
				}
				mu.Lock()
				counts.Processed += processed
				counts.Errors += errored
				mu.Unlock()
			}(chunk)
		}
		wg.Wait()
	}

	var samples []metrics.Sample
	now := time.Now()
	for recordType, counts := range result.Breakdown {
		result.TotalProcessed += counts.Processed
		result.TotalSkipped += counts.Skipped
		result.TotalErrors += counts.Errors
		samples = append(samples, metrics.Sample{
			RecordType: recordType,
			Processed:  counts.Processed,
			Skipped:    counts.Skipped,
			Errors:     counts.Errors,
			SampledAt:  now,
		})
	}
	if d.metrics != nil {
		d.metrics.Append(ctx, samples)
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Printf("PERFORMANCE: TDDF dispatch processed=%d skipped=%d errors=%d in %dms",
		result.TotalProcessed, result.TotalSkipped, result.TotalErrors, result.ProcessingTimeMs)
	return result
}

// processLine runs one line inside its own transaction. The status update
// rides in the same transaction as the structured insert, so a crash leaves
// the line pending rather than half-done. Failures roll back and then mark
// the line skipped on a fresh pool connection.
func (d *Dispatcher) processLine(ctx context.Context, proc processors.RecordProcessor, line rawimport.RawImportLine) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		d.markSkippedWithReason(ctx, line, fmt.Sprintf("%s: begin failed: %v", processors.SkipTransactionalError, err))
		return err
	}

	outcome, err := proc.Process(ctx, tx, line)
	if err != nil {
		_ = tx.Rollback(ctx)
		d.markSkippedWithReason(ctx, line, skipReasonFor(err))
		log.Printf("ERROR: Processing %s line %d of file %s failed: %v",
			line.RecordType, line.LineNumber, line.SourceFileID, err)
		return err
	}

	skipReason := ""
	if outcome.SkipReason != "" {
		skipReason = outcome.SkipReason
	}
	if err := d.tracker.MarkProcessed(ctx, tx, line.ID, outcome.Table, outcome.RecordID, skipReason); err != nil {
		_ = tx.Rollback(ctx)
		d.markSkippedWithReason(ctx, line, fmt.Sprintf("%s: status update failed: %v", processors.SkipTransactionalError, err))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		d.markSkippedWithReason(ctx, line, fmt.Sprintf("%s: commit failed: %v", processors.SkipTransactionalError, err))
		return err
	}
	return nil
}

func (d *Dispatcher) skipUnknownGroup(ctx context.Context, group []rawimport.RawImportLine, counts *TypeCounts) {
	for _, line := range group {
		if err := d.tracker.MarkSkipped(ctx, d.pool, line.ID, processors.SkipUnknownRecordType); err != nil {
			log.Printf("ERROR: Failed to skip-mark unknown line %d of file %s: %v",
				line.LineNumber, line.SourceFileID, err)
			counts.Errors++
			continue
		}
		counts.Skipped++
	}
	if counts.Skipped > 0 {
		log.Printf("[AUDIT] Skipped %d lines with unknown record type", counts.Skipped)
	}
}

func (d *Dispatcher) markSkippedWithReason(ctx context.Context, line rawimport.RawImportLine, reason string) {
	if err := d.tracker.MarkSkipped(ctx, d.pool, line.ID, reason); err != nil {
		log.Printf("ERROR: Failed to skip-mark line %d of file %s: %v",
			line.LineNumber, line.SourceFileID, err)
	}
}

// skipReasonFor maps a processor error to a persisted skip reason prefix so
// the recovery surface can group and selectively reprocess by category.
func skipReasonFor(err error) string {
	switch {
	case errors.Is(err, processors.ErrIdentifierMismatch):
		return fmt.Sprintf("%s: %v", processors.SkipIdentifierMismatch, err)
	case errors.Is(err, processors.ErrMissingRequired):
		return fmt.Sprintf("%s: %v", processors.SkipParseError, err)
	default:
		return fmt.Sprintf("%s: %v", processors.SkipTransactionalError, err)
	}
}
