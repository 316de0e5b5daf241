package recovery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"MerchantMMS/api/tddf/dispatch"
	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/internal/config"
)

// SkippedGroup is one row of the skipped-summary view: a reason category and
// record type with its line count and the span of affected files.
type SkippedGroup struct {
	ReasonCategory string     `json:"reason_category"`
	RecordType     string     `json:"record_type"`
	LineCount      int        `json:"line_count"`
	FileCount      int        `json:"file_count"`
	OldestSkipped  *time.Time `json:"oldest_skipped,omitempty"`
	NewestSkipped  *time.Time `json:"newest_skipped,omitempty"`
}

// SkippedLine is the detail view behind the summary, used by the operator
// report export.
type SkippedLine struct {
	ID           uuid.UUID  `json:"id"`
	SourceFileID uuid.UUID  `json:"source_file_id"`
	Filename     string     `json:"filename"`
	LineNumber   int        `json:"line_number"`
	RecordType   string     `json:"record_type"`
	SkipReason   string     `json:"skip_reason"`
	LineLength   int        `json:"line_length"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// StuckLine flags a raw line the pipeline appears to have abandoned.
type StuckLine struct {
	ID           uuid.UUID `json:"id"`
	SourceFileID uuid.UUID `json:"source_file_id"`
	LineNumber   int       `json:"line_number"`
	RecordType   string    `json:"record_type"`
	FileStatus   string    `json:"file_status"`
	PendingSince time.Time `json:"pending_since"`
}

// Controller owns the error-recovery surface: summarizing skipped lines,
// resetting them to pending, and retrying whole failed files.
type Controller struct {
	pool       *pgxpool.Pool
	store      *rawimport.Store
	dispatcher *dispatch.Dispatcher
}

func NewController(pool *pgxpool.Pool, store *rawimport.Store, d *dispatch.Dispatcher) *Controller {
	return &Controller{pool: pool, store: store, dispatcher: d}
}

// SkippedSummary groups skipped lines by reason category and record type.
// Reasons carry trailing detail after a colon, so grouping splits on the
// first colon to collapse per-line specifics into one category.
func (c *Controller) SkippedSummary(ctx context.Context) ([]SkippedGroup, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT split_part(skip_reason, ':', 1) AS reason_category,
		       record_type,
		       COUNT(*),
		       COUNT(DISTINCT source_file_id),
		       MIN(processed_at),
		       MAX(processed_at)
		FROM mms.tddf_raw_imports
		WHERE processing_status = 'skipped'
		GROUP BY reason_category, record_type
		ORDER BY COUNT(*) DESC, reason_category, record_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize skipped lines: %w", err)
	}
	defer rows.Close()

	var groups []SkippedGroup
	for rows.Next() {
		var g SkippedGroup
		if err := rows.Scan(&g.ReasonCategory, &g.RecordType, &g.LineCount, &g.FileCount,
			&g.OldestSkipped, &g.NewestSkipped); err != nil {
			return nil, fmt.Errorf("failed to scan skipped summary row: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// SkippedLines lists skipped line detail, optionally filtered to one reason
// category, newest first.
func (c *Controller) SkippedLines(ctx context.Context, reasonCategory string, limit int) ([]SkippedLine, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := c.pool.Query(ctx, `
		SELECT r.raw_import_id, r.source_file_id, COALESCE(f.filename, ''), r.line_number,
		       r.record_type, COALESCE(r.skip_reason, ''), r.line_length, r.processed_at
		FROM mms.tddf_raw_imports r
		LEFT JOIN mms.tddf_files f ON f.file_id = r.source_file_id
		WHERE r.processing_status = 'skipped'
		  AND ($1 = '' OR split_part(r.skip_reason, ':', 1) = $1)
		ORDER BY r.processed_at DESC NULLS LAST
		LIMIT $2`, reasonCategory, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list skipped lines: %w", err)
	}
	defer rows.Close()

	var lines []SkippedLine
	for rows.Next() {
		var l SkippedLine
		if err := rows.Scan(&l.ID, &l.SourceFileID, &l.Filename, &l.LineNumber,
			&l.RecordType, &l.SkipReason, &l.LineLength, &l.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skipped line row: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ReprocessByReason resets skipped lines in the given reason category back to
// pending and dispatches exactly that set, so one category can be retried
// without disturbing the rest of the backlog. recordType narrows to one type
// when non-empty; maxRecords caps the reset when positive.
func (c *Controller) ReprocessByReason(ctx context.Context, reasonCategory, recordType string, maxRecords int) (*dispatch.DispatchResult, int, error) {
	if reasonCategory == "" {
		return nil, 0, fmt.Errorf("reason category is required")
	}
	if maxRecords < 0 {
		maxRecords = 0
	}
	rows, err := c.pool.Query(ctx, `
		UPDATE mms.tddf_raw_imports
		SET processing_status = 'pending',
		    skip_reason = NULL,
		    processed_into_table = NULL,
		    processed_record_id = NULL,
		    processed_at = NULL
		WHERE raw_import_id IN (
			SELECT raw_import_id
			FROM mms.tddf_raw_imports
			WHERE processing_status = 'skipped'
			  AND split_part(skip_reason, ':', 1) = $1
			  AND ($2 = '' OR record_type = $2)
			ORDER BY imported_at
			LIMIT NULLIF($3, 0)
		)
		RETURNING raw_import_id`, reasonCategory, recordType, maxRecords)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reset skipped lines for reprocessing: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan reset line id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return &dispatch.DispatchResult{Breakdown: map[string]*dispatch.TypeCounts{}}, 0, nil
	}
	log.Printf("[AUDIT] Reprocessing %d skipped lines with reason category %q", len(ids), reasonCategory)

	lines, err := c.store.LinesByID(ctx, ids)
	if err != nil {
		return nil, len(ids), fmt.Errorf("failed to reload reset lines: %w", err)
	}
	return c.dispatcher.DispatchLines(ctx, lines), len(ids), nil
}

// RetryFailedFile re-runs a whole file: derived structured rows for the file
// are removed, every raw line is reset to pending, and the file is queued
// again. Raw lines are the durable source so nothing is lost by the reset.
func (c *Controller) RetryFailedFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin file retry transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	derivedTables := []string{
		"mms.tddf_transactions",
		"mms.tddf_batch_headers",
		"mms.tddf_purchasing_ext1",
		"mms.tddf_purchasing_ext2",
		"mms.tddf_other_records",
	}
	for _, table := range derivedTables {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE source_file_id = $1", table), fileID); err != nil {
			return 0, fmt.Errorf("failed to clear %s for file retry: %w", table, err)
		}
	}

	// too-short lines are skipped at store time; a retry never changes their
	// bytes, so their skip state stays
	tag, err := tx.Exec(ctx, `
		UPDATE mms.tddf_raw_imports
		SET processing_status = 'pending',
		    skip_reason = NULL,
		    processed_into_table = NULL,
		    processed_record_id = NULL,
		    processed_at = NULL
		WHERE source_file_id = $1 AND record_type <> 'BAD'`, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset raw lines for file retry: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE mms.tddf_files
		SET status = 'queued', error_message = NULL, updated_at = NOW()
		WHERE file_id = $1`, fileID); err != nil {
		return 0, fmt.Errorf("failed to queue file for retry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit file retry: %w", err)
	}
	reset := int(tag.RowsAffected())
	log.Printf("[AUDIT] File %s queued for retry, %d raw lines reset to pending", fileID, reset)
	return reset, nil
}

// StuckLines reports lines that look abandoned: pending longer than the
// threshold, or pending inside a file already marked completed.
func (c *Controller) StuckLines(ctx context.Context) ([]StuckLine, error) {
	cutoff := time.Now().Add(-config.StuckLineThreshold)
	rows, err := c.pool.Query(ctx, `
		SELECT r.raw_import_id, r.source_file_id, r.line_number, r.record_type,
		       COALESCE(f.status, ''), r.imported_at
		FROM mms.tddf_raw_imports r
		LEFT JOIN mms.tddf_files f ON f.file_id = r.source_file_id
		WHERE r.processing_status = 'pending'
		  AND (r.imported_at < $1 OR f.status = 'completed')
		ORDER BY r.imported_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck lines: %w", err)
	}
	defer rows.Close()

	var stuck []StuckLine
	for rows.Next() {
		var s StuckLine
		if err := rows.Scan(&s.ID, &s.SourceFileID, &s.LineNumber, &s.RecordType,
			&s.FileStatus, &s.PendingSince); err != nil {
			return nil, fmt.Errorf("failed to scan stuck line row: %w", err)
		}
		stuck = append(stuck, s)
	}
	return stuck, rows.Err()
}
