package rawimport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"MerchantMMS/api/tddf/wire"
	"MerchantMMS/internal/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the slice of pgxpool.Pool the store needs. Tests substitute a
// recording fake.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store persists uploaded TDDF files line-for-line before any semantic
// interpretation happens. Everything downstream (dispatch, processors,
// recovery) resumes from these rows.
type Store struct {
	db querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// PrepareLines splits decoded file content into non-empty lines and
// classifies each by its record-type byte range. Pure; the returned slice
// preserves original order with 1-based line numbers. Lines below the minimum
// record size are born skipped so every stored line ends in a terminal state
// without a dispatch pass.
func PrepareLines(fileID uuid.UUID, content string) []RawImportLine {
	var lines []RawImportLine
	lineNo := 0
	for _, raw := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lineNo++
		code := wire.ClassifyLine(raw)
		status := StatusPending
		var skipReason *string
		if code == wire.RecordTypeBad {
			status = StatusSkipped
			reason := fmt.Sprintf("%s: %d bytes, minimum %d",
				SkipReasonLineTooShort, len(raw), wire.MinRecordLength)
			skipReason = &reason
		}
		lines = append(lines, RawImportLine{
			ID:                uuid.New(),
			SourceFileID:      fileID,
			LineNumber:        lineNo,
			RawLine:           raw,
			RecordType:        code,
			RecordDescription: wire.RecordDescription(code),
			LineLength:        len(raw),
			ProcessingStatus:  status,
			SkipReason:        skipReason,
		})
	}
	return lines
}

// RegisterFile inserts the file registry row in queued state. The SHA-256 of
// the content is kept so a byte-identical resubmission is visible to
// operators. Raw line rows reference this row, so it must exist before any
// line insert.
func (s *Store) RegisterFile(ctx context.Context, fileID uuid.UUID, filename, content string) error {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])
	_, err := s.db.Exec(ctx, `
		INSERT INTO mms.tddf_files (file_id, filename, status, file_hash, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		fileID, filename, FileStatusQueued, hash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to register file %s: %w", filename, err)
	}
	return nil
}

// StoreFileAsRawLines registers the file and persists one row per non-empty
// input line, preserving order. Inserts run through pgx.Batch in small
// sub-batches so very large files (10,000+ lines) keep memory bounded.
// Storage is all-or-nothing per line: an insert failure is counted and the
// remaining lines continue. A registry failure is fatal because no line can
// be stored without the parent row.
func (s *Store) StoreFileAsRawLines(ctx context.Context, fileID uuid.UUID, filename, content string) (*StoreResult, error) {
	startTime := time.Now()

	if err := s.RegisterFile(ctx, fileID, filename, content); err != nil {
		return nil, err
	}
	lines := PrepareLines(fileID, content)

	result := &StoreResult{
		FileID:           fileID,
		RecordTypeCounts: make(map[string]int),
	}
	if len(lines) == 0 {
		log.Printf("[AUDIT] %s: no non-empty lines to store", filename)
		if err := s.SetFileStatus(ctx, fileID, FileStatusCompleted, nil); err != nil {
			log.Printf("ERROR: Failed to complete empty file %s: %v", fileID, err)
		}
		return result, nil
	}

	insertSQL := `
		INSERT INTO mms.tddf_raw_imports
			(raw_import_id, source_file_id, line_number, raw_line, record_type,
			 record_description, line_length, processing_status, skip_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for offset := 0; offset < len(lines); offset += config.RawInsertBatchSize {
		end := offset + config.RawInsertBatchSize
		if end > len(lines) {
			end = len(lines)
		}
		chunk := lines[offset:end]

		batch := &pgx.Batch{}
		for _, ln := range chunk {
			batch.Queue(insertSQL,
				ln.ID, ln.SourceFileID, ln.LineNumber, ln.RawLine, ln.RecordType,
				ln.RecordDescription, ln.LineLength, ln.ProcessingStatus, ln.SkipReason)
		}

		br := s.db.SendBatch(ctx, batch)
		for i := range chunk {
			if _, err := br.Exec(); err != nil {
				errorMsg := fmt.Sprintf("Line %d: %v", chunk[i].LineNumber, err)
				result.Errors = append(result.Errors, errorMsg)
				log.Printf("ERROR: Failed to store raw line: %s", errorMsg)
				continue
			}
			result.RowsStored++
			result.RecordTypeCounts[chunk[i].RecordType]++
		}
		br.Close()
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE mms.tddf_files SET line_count = $2 WHERE file_id = $1`,
		fileID, result.RowsStored); err != nil {
		log.Printf("ERROR: Failed to update line count for file %s: %v", fileID, err)
	}

	// a file whose every line was born skipped never sees a dispatch pass, so
	// completion has to happen here
	pendingStored := 0
	for _, ln := range lines {
		if ln.ProcessingStatus == StatusPending {
			pendingStored++
		}
	}
	if pendingStored == 0 {
		if err := s.SetFileStatus(ctx, fileID, FileStatusCompleted, nil); err != nil {
			log.Printf("ERROR: Failed to complete file %s with no dispatchable lines: %v", fileID, err)
		}
	}

	log.Printf("PERFORMANCE: Stored %d/%d raw lines for %s in %v (%d insert errors)",
		result.RowsStored, len(lines), filename, time.Since(startTime), len(result.Errors))
	return result, nil
}

// PendingLines pulls up to limit pending rows, ordered by file then line
// number so per-file processing order is stable. BAD lines never appear here
// because they are stored already skipped. A zero fileID selects across all
// files.
func (s *Store) PendingLines(ctx context.Context, fileID uuid.UUID, limit int) ([]RawImportLine, error) {
	query := `
		SELECT raw_import_id, source_file_id, line_number, raw_line, record_type,
		       record_description, line_length, processing_status,
		       processed_into_table, processed_record_id, skip_reason, processed_at
		FROM mms.tddf_raw_imports
		WHERE processing_status = 'pending'`
	args := []interface{}{}
	if fileID != uuid.Nil {
		query += ` AND source_file_id = $1`
		args = append(args, fileID)
	}
	query += fmt.Sprintf(` ORDER BY source_file_id, line_number LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending raw lines: %w", err)
	}
	defer rows.Close()

	return scanRawLines(rows)
}

// LinesByID fetches an explicit set of raw line rows; the recovery controller
// uses this to dispatch exactly the set it has reset.
func (s *Store) LinesByID(ctx context.Context, ids []uuid.UUID) ([]RawImportLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT raw_import_id, source_file_id, line_number, raw_line, record_type,
		       record_description, line_length, processing_status,
		       processed_into_table, processed_record_id, skip_reason, processed_at
		FROM mms.tddf_raw_imports
		WHERE raw_import_id = ANY($1)
		ORDER BY source_file_id, line_number`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw lines by id: %w", err)
	}
	defer rows.Close()

	return scanRawLines(rows)
}

func scanRawLines(rows pgx.Rows) ([]RawImportLine, error) {
	var out []RawImportLine
	for rows.Next() {
		var ln RawImportLine
		if err := rows.Scan(&ln.ID, &ln.SourceFileID, &ln.LineNumber, &ln.RawLine,
			&ln.RecordType, &ln.RecordDescription, &ln.LineLength, &ln.ProcessingStatus,
			&ln.ProcessedIntoTable, &ln.ProcessedRecordID, &ln.SkipReason, &ln.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw line: %w", err)
		}
		out = append(out, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetFileStatus moves the file registry row through its lifecycle.
func (s *Store) SetFileStatus(ctx context.Context, fileID uuid.UUID, status string, errorMessage *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE mms.tddf_files SET status = $2, error_message = $3, updated_at = NOW()
		WHERE file_id = $1`,
		fileID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to set file %s status to %s: %w", fileID, status, err)
	}
	return nil
}

// SetArchiveURL records where the original upload was archived.
func (s *Store) SetArchiveURL(ctx context.Context, fileID uuid.UUID, url string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE mms.tddf_files SET archive_url = $2, updated_at = NOW() WHERE file_id = $1`,
		fileID, url)
	if err != nil {
		return fmt.Errorf("failed to set archive URL for file %s: %w", fileID, err)
	}
	return nil
}

// GetFile loads one registry row. Returns (nil, nil) when the file is
// unknown.
func (s *Store) GetFile(ctx context.Context, fileID uuid.UUID) (*ImportFile, error) {
	var f ImportFile
	err := s.db.QueryRow(ctx, `
		SELECT file_id, filename, status, line_count, file_hash, archive_url,
		       uploaded_at, error_message
		FROM mms.tddf_files WHERE file_id = $1`, fileID,
	).Scan(&f.ID, &f.Filename, &f.Status, &f.LineCount, &f.FileHash, &f.ArchiveURL,
		&f.UploadedAt, &f.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", fileID, err)
	}
	return &f, nil
}

// PendingCount reports how many dispatchable lines remain for a file (or all
// files when fileID is zero).
func (s *Store) PendingCount(ctx context.Context, fileID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM mms.tddf_raw_imports WHERE processing_status = 'pending'`
	args := []interface{}{}
	if fileID != uuid.Nil {
		query += ` AND source_file_id = $1`
		args = append(args, fileID)
	}
	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FileStatusCounts aggregates the registry by lifecycle state for the
// batch-status endpoint consumed by the uploader client.
func (s *Store) FileStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM mms.tddf_files GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
