package rawimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func paddedLine(code string, length int) string {
	buf := []byte(strings.Repeat(" ", length))
	copy(buf[17:], code)
	return string(buf)
}

func TestPrepareLines(t *testing.T) {
	fileID := uuid.New()
	content := strings.Join([]string{
		paddedLine("BH", 150),
		paddedLine("DT", 200),
		"", // blank lines are dropped entirely
		paddedLine("P1", 178),
		"SHORT",
		paddedLine("DT", 149), // one byte under the minimum
	}, "\n")

	lines := PrepareLines(fileID, content)
	if len(lines) != 5 {
		t.Fatalf("PrepareLines returned %d lines, want 5", len(lines))
	}

	wantTypes := []string{"BH", "DT", "P1", "UNK", "BAD"}
	for i, want := range wantTypes {
		if lines[i].RecordType != want {
			t.Errorf("line %d record type = %s, want %s", i+1, lines[i].RecordType, want)
		}
	}

	for i, line := range lines {
		if line.LineNumber != i+1 {
			t.Errorf("line %d has number %d, numbering must be dense and 1-based", i, line.LineNumber)
		}
		if line.SourceFileID != fileID {
			t.Errorf("line %d has wrong file id", i)
		}
		if line.LineLength != len(line.RawLine) {
			t.Errorf("line %d length = %d, want %d", i, line.LineLength, len(line.RawLine))
		}
		if line.ID == uuid.Nil {
			t.Errorf("line %d has no id", i)
		}
	}

	// dispatchable lines stay pending; the too-short line is born skipped so
	// no stored line is ever left without a terminal path
	for i := 0; i < 4; i++ {
		if lines[i].ProcessingStatus != StatusPending {
			t.Errorf("line %d status = %s, want pending", i+1, lines[i].ProcessingStatus)
		}
		if lines[i].SkipReason != nil {
			t.Errorf("line %d skip reason = %q, want none", i+1, *lines[i].SkipReason)
		}
	}
	bad := lines[4]
	if bad.ProcessingStatus != StatusSkipped {
		t.Errorf("BAD line status = %s, want skipped", bad.ProcessingStatus)
	}
	if bad.SkipReason == nil || !strings.HasPrefix(*bad.SkipReason, SkipReasonLineTooShort+":") {
		t.Errorf("BAD line skip reason = %v, want %s prefix", bad.SkipReason, SkipReasonLineTooShort)
	}
}

func TestPrepareLinesCRLF(t *testing.T) {
	fileID := uuid.New()
	content := paddedLine("BH", 150) + "\r\n" + paddedLine("DT", 200) + "\r\n"

	lines := PrepareLines(fileID, content)
	if len(lines) != 2 {
		t.Fatalf("PrepareLines returned %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		if strings.ContainsAny(line.RawLine, "\r\n") {
			t.Errorf("line %d still carries newline bytes", i)
		}
	}
	if lines[0].RecordType != "BH" || lines[1].RecordType != "DT" {
		t.Errorf("record types = %s, %s", lines[0].RecordType, lines[1].RecordType)
	}
}

func TestPrepareLinesEmptyContent(t *testing.T) {
	if lines := PrepareLines(uuid.New(), ""); lines != nil {
		t.Errorf("PrepareLines(\"\") = %v, want nil", lines)
	}
	if lines := PrepareLines(uuid.New(), "\n\n\n"); lines != nil {
		t.Errorf("PrepareLines(blank) = %v, want nil", lines)
	}
}

// fakeDB records the SQL issued against the store in call order. SendBatch
// succeeds every queued insert unless failExec is set.
type fakeDB struct {
	calls    []string
	execSQL  []string
	execArgs [][]any
	batches  []*pgx.Batch
	failExec error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, "exec")
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	if f.failExec != nil {
		return pgconn.CommandTag{}, f.failExec
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, "query")
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	f.calls = append(f.calls, "queryrow")
	return nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.calls = append(f.calls, "sendbatch")
	f.batches = append(f.batches, b)
	return &fakeBatchResults{remaining: b.Len()}
}

type fakeBatchResults struct {
	remaining int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.remaining--
	return pgconn.CommandTag{}, nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

func TestStoreFileAsRawLinesRegistersFileFirst(t *testing.T) {
	db := &fakeDB{}
	store := &Store{db: db}
	fileID := uuid.New()
	content := paddedLine("BH", 150) + "\n" + paddedLine("DT", 200) + "\n"

	result, err := store.StoreFileAsRawLines(context.Background(), fileID, "daily.txt", content)
	if err != nil {
		t.Fatalf("StoreFileAsRawLines failed: %v", err)
	}
	if result.RowsStored != 2 {
		t.Errorf("RowsStored = %d, want 2", result.RowsStored)
	}
	if result.RecordTypeCounts["BH"] != 1 || result.RecordTypeCounts["DT"] != 1 {
		t.Errorf("RecordTypeCounts = %v", result.RecordTypeCounts)
	}

	// the registry row must exist before any line insert or every line fails
	// its foreign key
	if len(db.calls) == 0 || db.calls[0] != "exec" {
		t.Fatalf("first call = %v, want the file registry insert", db.calls)
	}
	if !strings.Contains(db.execSQL[0], "INSERT INTO mms.tddf_files") {
		t.Errorf("first exec SQL = %q, want tddf_files insert", db.execSQL[0])
	}
	if db.execArgs[0][0] != fileID {
		t.Errorf("registry insert file_id = %v, want %v", db.execArgs[0][0], fileID)
	}
	if db.execArgs[0][2] != FileStatusQueued {
		t.Errorf("registry insert status = %v, want %s", db.execArgs[0][2], FileStatusQueued)
	}
	for _, call := range db.calls {
		if call == "sendbatch" {
			return
		}
	}
	t.Error("no line insert batch was sent")
}

func TestStoreFileAsRawLinesRegistryFailureAborts(t *testing.T) {
	db := &fakeDB{failExec: errors.New("duplicate key value violates unique constraint")}
	store := &Store{db: db}

	_, err := store.StoreFileAsRawLines(context.Background(), uuid.New(), "daily.txt", paddedLine("DT", 200))
	if err == nil {
		t.Fatal("expected registry insert failure to surface")
	}
	if len(db.batches) != 0 {
		t.Errorf("sent %d line batches after registry failure, want 0", len(db.batches))
	}
}

func TestStoreFileAsRawLinesStoresBadLinePreSkipped(t *testing.T) {
	db := &fakeDB{}
	store := &Store{db: db}
	content := paddedLine("DT", 200) + "\n" + paddedLine("DT", 149)

	result, err := store.StoreFileAsRawLines(context.Background(), uuid.New(), "daily.txt", content)
	if err != nil {
		t.Fatalf("StoreFileAsRawLines failed: %v", err)
	}
	if result.RowsStored != 2 {
		t.Fatalf("RowsStored = %d, want 2 (BAD lines are stored too)", result.RowsStored)
	}
	if len(db.batches) != 1 {
		t.Fatalf("sent %d batches, want 1", len(db.batches))
	}

	queued := db.batches[0].QueuedQueries
	if len(queued) != 2 {
		t.Fatalf("batch has %d inserts, want 2", len(queued))
	}
	// insert args follow column order: ... record_type($5=idx 4),
	// processing_status($8=idx 7), skip_reason($9=idx 8)
	if queued[0].Arguments[7] != StatusPending {
		t.Errorf("DT line status = %v, want pending", queued[0].Arguments[7])
	}
	if queued[1].Arguments[4] != "BAD" {
		t.Errorf("short line record type = %v, want BAD", queued[1].Arguments[4])
	}
	if queued[1].Arguments[7] != StatusSkipped {
		t.Errorf("short line status = %v, want skipped", queued[1].Arguments[7])
	}
	reason, ok := queued[1].Arguments[8].(*string)
	if !ok || reason == nil || !strings.HasPrefix(*reason, SkipReasonLineTooShort+":") {
		t.Errorf("short line skip reason = %v, want %s prefix", queued[1].Arguments[8], SkipReasonLineTooShort)
	}
}
