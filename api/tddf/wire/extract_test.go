package wire

import (
	"strings"
	"testing"
)

// buildLine places segments at fixed offsets over a space-padded line of the
// given total length.
func buildLine(length int, segments map[int]string) string {
	buf := []byte(strings.Repeat(" ", length))
	for start, seg := range segments {
		copy(buf[start:], seg)
	}
	return string(buf)
}

func TestExtractField(t *testing.T) {
	line := "ABCDE  FG"
	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"full field", 0, 5, "ABCDE"},
		{"trims padding", 3, 8, "DE  F"},
		{"trailing spaces trimmed", 4, 7, "E"},
		{"end past line", 7, 50, "FG"},
		{"start past line", 20, 25, ""},
		{"negative start", -1, 3, ""},
		{"end before start", 5, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractField(line, tt.start, tt.end); got != tt.want {
				t.Errorf("ExtractField(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"transaction detail", buildLine(200, map[int]string{17: "DT"}), RecordTypeTransaction},
		{"batch header", buildLine(150, map[int]string{17: "BH"}), RecordTypeBatchHeader},
		{"lowercase code uppercased", buildLine(150, map[int]string{17: "lg"}), RecordTypeLodging},
		{"exactly min length", buildLine(MinRecordLength, map[int]string{17: "CK"}), RecordTypeCheck},
		{"one under min length", buildLine(MinRecordLength-1, map[int]string{17: "DT"}), RecordTypeBad},
		{"too short to classify", "ABC", RecordTypeUnknown},
		{"empty line", "", RecordTypeUnknown},
		{"blank type code", buildLine(150, nil), RecordTypeUnknown},
		{"unrecognized code kept", buildLine(150, map[int]string{17: "ZZ"}), "ZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLine(tt.line); got != tt.want {
				t.Errorf("ClassifyLine(...) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	line := buildLine(150, map[int]string{
		0:  "0000123",
		7:  "0042",
		11: "000007",
		17: "DT",
		19: "1001",
		23: "MERCH00000000001",
	})
	h := ParseHeader(line)
	if h.SequenceNumber != "0000123" {
		t.Errorf("SequenceNumber = %q", h.SequenceNumber)
	}
	if h.EntryRunNumber != "0042" {
		t.Errorf("EntryRunNumber = %q", h.EntryRunNumber)
	}
	if h.SequenceWithinRun != "000007" {
		t.Errorf("SequenceWithinRun = %q", h.SequenceWithinRun)
	}
	if h.RecordIdentifier != "DT" {
		t.Errorf("RecordIdentifier = %q", h.RecordIdentifier)
	}
	if h.BankNumber != "1001" {
		t.Errorf("BankNumber = %q", h.BankNumber)
	}
	if h.MerchantAccount != "MERCH00000000001" {
		t.Errorf("MerchantAccount = %q", h.MerchantAccount)
	}
}

func TestLayoutExtract(t *testing.T) {
	line := buildLine(200, map[int]string{
		17:  "DT",
		39:  "REF1234567890",
		62:  "12252024",
		70:  "00000012345",
		92:  "ACME COFFEE",
		117: "VI",
		119: "5814",
	})
	fields := TransactionLayout.Extract(line)
	if fields["reference_number"] != "REF1234567890" {
		t.Errorf("reference_number = %q", fields["reference_number"])
	}
	if fields["transaction_date"] != "12252024" {
		t.Errorf("transaction_date = %q", fields["transaction_date"])
	}
	if fields["transaction_amount"] != "00000012345" {
		t.Errorf("transaction_amount = %q", fields["transaction_amount"])
	}
	if fields["merchant_name"] != "ACME COFFEE" {
		t.Errorf("merchant_name = %q", fields["merchant_name"])
	}
	if fields["card_type"] != "VI" {
		t.Errorf("card_type = %q", fields["card_type"])
	}
	if fields["mcc_code"] != "5814" {
		t.Errorf("mcc_code = %q", fields["mcc_code"])
	}
	// line is 200 bytes but merchant_zip starts at 187
	if fields["merchant_zip"] != "" {
		t.Errorf("merchant_zip = %q, want empty", fields["merchant_zip"])
	}
}

func TestLayoutsCoverAllRecordTypes(t *testing.T) {
	for _, code := range []string{"BH", "DT", "P1", "P2", "E1", "G2", "AD", "DR", "CK", "LG"} {
		layout, ok := Layouts[code]
		if !ok {
			t.Fatalf("no layout registered for %s", code)
		}
		if layout.RecordType != code {
			t.Errorf("layout for %s reports record type %s", code, layout.RecordType)
		}
		// every layout carries the shared positional header
		for _, name := range []string{"sequence_number", "entry_run_number", "record_identifier", "merchant_account_number"} {
			if _, ok := layout.FieldByName(name); !ok {
				t.Errorf("layout %s is missing header field %s", code, name)
			}
		}
		// offsets must be sane and non-overlapping in declaration order
		prev := -1
		for _, f := range layout.Fields {
			if f.Start >= f.End {
				t.Errorf("layout %s field %s has invalid span [%d,%d)", code, f.Name, f.Start, f.End)
			}
			if f.Start < prev {
				t.Errorf("layout %s field %s overlaps the previous field", code, f.Name)
			}
			prev = f.End
		}
	}
}
