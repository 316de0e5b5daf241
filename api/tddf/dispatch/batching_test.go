package dispatch

import (
	"testing"

	"github.com/google/uuid"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/internal/config"
)

func TestOptimalBatchSize(t *testing.T) {
	tests := []struct {
		recordType string
		want       int
	}{
		{"DT", config.SubBatchTargetMillis / 8},
		{"P1", config.SubBatchTargetMillis / 5},
		{"P2", config.SubBatchTargetMillis / 5},
		{"BH", config.SubBatchTargetMillis / 3},
		{"CK", config.SubBatchTargetMillis / 2},
		{"ZZ", config.SubBatchTargetMillis / 2},
	}
	for _, tt := range tests {
		t.Run(tt.recordType, func(t *testing.T) {
			got := OptimalBatchSize(tt.recordType)
			if got != tt.want {
				t.Errorf("OptimalBatchSize(%s) = %d, want %d", tt.recordType, got, tt.want)
			}
			if got < config.SubBatchFloor {
				t.Errorf("OptimalBatchSize(%s) = %d, below floor %d", tt.recordType, got, config.SubBatchFloor)
			}
		})
	}
}

func linesOfTypes(types ...string) []rawimport.RawImportLine {
	fileID := uuid.New()
	lines := make([]rawimport.RawImportLine, 0, len(types))
	for i, rt := range types {
		lines = append(lines, rawimport.RawImportLine{
			ID:           uuid.New(),
			SourceFileID: fileID,
			LineNumber:   i + 1,
			RecordType:   rt,
		})
	}
	return lines
}

func TestSourceFilesDeduplicates(t *testing.T) {
	fileA := uuid.New()
	fileB := uuid.New()
	lines := []rawimport.RawImportLine{
		{ID: uuid.New(), SourceFileID: fileA, LineNumber: 1, RecordType: "DT"},
		{ID: uuid.New(), SourceFileID: fileB, LineNumber: 1, RecordType: "BH"},
		{ID: uuid.New(), SourceFileID: fileA, LineNumber: 2, RecordType: "DT"},
		{ID: uuid.New(), SourceFileID: uuid.Nil, LineNumber: 3, RecordType: "DT"},
	}

	got := sourceFiles(lines)
	if len(got) != 2 {
		t.Fatalf("sourceFiles returned %d IDs, want 2: %v", len(got), got)
	}
	if got[0] != fileA || got[1] != fileB {
		t.Errorf("sourceFiles order = %v, want [%s %s]", got, fileA, fileB)
	}

	if got := sourceFiles(nil); got != nil {
		t.Errorf("sourceFiles(nil) = %v, want nil", got)
	}
}

func TestGroupByTypePreservesOrder(t *testing.T) {
	lines := linesOfTypes("DT", "P1", "DT", "BH", "DT", "P1")
	groups := groupByType(lines)

	if len(groups["DT"]) != 3 || len(groups["P1"]) != 2 || len(groups["BH"]) != 1 {
		t.Fatalf("unexpected group sizes: DT=%d P1=%d BH=%d",
			len(groups["DT"]), len(groups["P1"]), len(groups["BH"]))
	}
	prev := 0
	for _, line := range groups["DT"] {
		if line.LineNumber <= prev {
			t.Errorf("DT group out of order: %d after %d", line.LineNumber, prev)
		}
		prev = line.LineNumber
	}
}

func TestOrderedTypesPriority(t *testing.T) {
	lines := linesOfTypes("LG", "ZZ", "P2", "BH", "DT", "G2", "E1", "AD", "P1", "CK", "DR")
	groups := groupByType(lines)

	got := orderedTypes(groups)
	want := []string{"DT", "BH", "P1", "P2", "G2", "E1", "AD", "DR", "CK", "LG", "ZZ"}
	if len(got) != len(want) {
		t.Fatalf("orderedTypes returned %d types, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("orderedTypes[%d] = %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestSubBatches(t *testing.T) {
	lines := linesOfTypes("DT", "DT", "DT", "DT", "DT", "DT", "DT")

	chunks := subBatches(lines, 3)
	if len(chunks) != 3 {
		t.Fatalf("subBatches split into %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 3 || len(chunks[1]) != 3 || len(chunks[2]) != 1 {
		t.Errorf("chunk sizes = %d,%d,%d want 3,3,1", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != len(lines) {
		t.Errorf("sub-batches cover %d lines, want %d", total, len(lines))
	}

	if got := subBatches(nil, 3); got != nil {
		t.Errorf("subBatches(nil) = %v, want nil", got)
	}

	// size <= 0 falls back to the floor rather than looping forever
	chunks = subBatches(lines, 0)
	if len(chunks) != 1 || len(chunks[0]) != len(lines) {
		t.Errorf("subBatches with zero size should fall back to floor chunks, got %d chunks", len(chunks))
	}
}
