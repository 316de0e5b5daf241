package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by pgx.Tx and *pgxpool.Pool. MarkProcessed runs inside
// the same transaction as the record insert; MarkSkipped runs on a fresh pool
// connection after rollback so the skip mark cannot be lost with it.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Tracker updates the raw-import lifecycle state. Each line is mutated
// exactly once: either processed with a pointer to the record it became, or
// skipped with a reason.
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

// MarkProcessed records success. skipReason is empty except for the duplicate
// outcome, where it carries the duplicate_reference_logged pointer.
func (t *Tracker) MarkProcessed(ctx context.Context, q execer, lineID uuid.UUID, table, recordID, skipReason string) error {
	var reason *string
	if skipReason != "" {
		reason = &skipReason
	}
	tag, err := q.Exec(ctx, `
		UPDATE mms.tddf_raw_imports
		SET processing_status = 'processed',
		    processed_into_table = $2,
		    processed_record_id = $3,
		    skip_reason = $4,
		    processed_at = $5
		WHERE raw_import_id = $1`,
		lineID, table, recordID, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark line %s processed: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark processed touched no rows for line %s", lineID)
	}
	return nil
}

// MarkSkipped records failure with a reason string the recovery controller
// can triage by prefix.
func (t *Tracker) MarkSkipped(ctx context.Context, q execer, lineID uuid.UUID, reason string) error {
	_, err := q.Exec(ctx, `
		UPDATE mms.tddf_raw_imports
		SET processing_status = 'skipped',
		    skip_reason = $2,
		    processed_at = $3
		WHERE raw_import_id = $1`,
		lineID, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark line %s skipped: %w", lineID, err)
	}
	return nil
}
