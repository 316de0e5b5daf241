package rawimport

import (
	"time"

	"github.com/google/uuid"
)

// Processing lifecycle states for a raw import line. Every stored line ends in
// processed or skipped after a full dispatch sweep; pending is the durable
// "received, not yet interpreted" checkpoint.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
)

// SkipReasonLineTooShort prefixes the skip reason stamped at store time on
// lines below the minimum record size. These lines never reach the
// dispatcher; the prefix keeps them grouped in the skipped-summary report.
const SkipReasonLineTooShort = "line_too_short"

// Upload file lifecycle states.
const (
	FileStatusQueued     = "queued"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// RawImportLine is one physical line of an uploaded TDDF file, captured
// verbatim before any semantic processing. LineNumber is 1-based and unique
// within the file; it defines the order used by positional parent/child
// lookups (a P1 extends the DT on the immediately preceding line).
type RawImportLine struct {
	ID                 uuid.UUID  `json:"id" db:"raw_import_id"`
	SourceFileID       uuid.UUID  `json:"source_file_id" db:"source_file_id"`
	LineNumber         int        `json:"line_number" db:"line_number"`
	RawLine            string     `json:"raw_line" db:"raw_line"`
	RecordType         string     `json:"record_type" db:"record_type"`
	RecordDescription  string     `json:"record_description" db:"record_description"`
	LineLength         int        `json:"line_length" db:"line_length"`
	ProcessingStatus   string     `json:"processing_status" db:"processing_status"`
	ProcessedIntoTable *string    `json:"processed_into_table" db:"processed_into_table"`
	ProcessedRecordID  *string    `json:"processed_record_id" db:"processed_record_id"`
	SkipReason         *string    `json:"skip_reason" db:"skip_reason"`
	ProcessedAt        *time.Time `json:"processed_at" db:"processed_at"`
}

// ImportFile is the registry row for one uploaded TDDF file.
type ImportFile struct {
	ID           uuid.UUID `json:"file_id" db:"file_id"`
	Filename     string    `json:"filename" db:"filename"`
	Status       string    `json:"status" db:"status"`
	LineCount    int       `json:"line_count" db:"line_count"`
	FileHash     *string   `json:"file_hash" db:"file_hash"`
	ArchiveURL   *string   `json:"archive_url" db:"archive_url"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
	ErrorMessage *string   `json:"error_message" db:"error_message"`
}

// StoreResult summarizes one raw-import run. Errors holds per-line insert
// failures; a failed line never aborts the remaining lines.
type StoreResult struct {
	FileID           uuid.UUID      `json:"file_id"`
	RowsStored       int            `json:"rows_stored"`
	RecordTypeCounts map[string]int `json:"record_type_counts"`
	Errors           []string       `json:"errors"`
}
