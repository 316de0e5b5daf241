package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sample is one append-only counters row: processed/skipped/error counts for
// one record type at one point in time. Samples are never mutated; throughput
// is derived by differencing over a window.
type Sample struct {
	RecordType string    `json:"record_type"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	SampledAt  time.Time `json:"sampled_at"`
}

// Throughput is the derived rate view for monitoring.
type Throughput struct {
	WindowMinutes  int     `json:"window_minutes"`
	TotalProcessed int     `json:"total_processed"`
	TotalSkipped   int     `json:"total_skipped"`
	TotalErrors    int     `json:"total_errors"`
	RecordsPerSec  float64 `json:"records_per_sec"`
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append writes one sample row per record type. Failures are logged, never
// propagated: metrics must not fail the pipeline they observe.
func (s *Store) Append(ctx context.Context, samples []Sample) {
	if len(samples) == 0 {
		return
	}
	batch := &pgx.Batch{}
	for _, smp := range samples {
		batch.Queue(`
			INSERT INTO mms.tddf_processing_metrics
				(record_type, processed_count, skipped_count, error_count, sampled_at)
			VALUES ($1, $2, $3, $4, $5)`,
			smp.RecordType, smp.Processed, smp.Skipped, smp.Errors, smp.SampledAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range samples {
		if _, err := br.Exec(); err != nil {
			log.Printf("ERROR: Failed to append processing metrics sample: %v", err)
		}
	}
}

// SnapshotPipeline logs the current raw-import status counts per record type.
// The cron sampler calls this periodically; it only logs, it does not append
// sample rows, since the stored samples are per-dispatch deltas and mixing in
// cumulative snapshots would double-count window aggregates.
func (s *Store) SnapshotPipeline(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT record_type,
		       COUNT(*) FILTER (WHERE processing_status = 'processed'),
		       COUNT(*) FILTER (WHERE processing_status = 'skipped' AND skip_reason NOT LIKE 'transactional_error%'
		                                                            AND skip_reason NOT LIKE 'parse_error%'
		                                                            AND skip_reason NOT LIKE 'record_identifier_mismatch%'),
		       COUNT(*) FILTER (WHERE processing_status = 'skipped' AND (skip_reason LIKE 'transactional_error%'
		                                                             OR skip_reason LIKE 'parse_error%'
		                                                             OR skip_reason LIKE 'record_identifier_mismatch%'))
		FROM mms.tddf_raw_imports
		GROUP BY record_type`)
	if err != nil {
		return fmt.Errorf("failed to snapshot pipeline counters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var smp Sample
		if err := rows.Scan(&smp.RecordType, &smp.Processed, &smp.Skipped, &smp.Errors); err != nil {
			return fmt.Errorf("failed to scan metrics snapshot row: %w", err)
		}
		log.Printf("PERFORMANCE: TDDF pipeline snapshot type=%s processed=%d skipped=%d errors=%d",
			smp.RecordType, smp.Processed, smp.Skipped, smp.Errors)
	}
	return rows.Err()
}

// ThroughputOverWindow derives the processing rate from samples appended
// inside the window.
func (s *Store) ThroughputOverWindow(ctx context.Context, window time.Duration) (*Throughput, error) {
	since := time.Now().Add(-window)
	var t Throughput
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(processed_count), 0),
		       COALESCE(SUM(skipped_count), 0),
		       COALESCE(SUM(error_count), 0)
		FROM mms.tddf_processing_metrics
		WHERE sampled_at >= $1`, since,
	).Scan(&t.TotalProcessed, &t.TotalSkipped, &t.TotalErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate throughput window: %w", err)
	}
	t.WindowMinutes = int(window.Minutes())
	if secs := window.Seconds(); secs > 0 {
		t.RecordsPerSec = float64(t.TotalProcessed) / secs
	}
	return &t, nil
}
