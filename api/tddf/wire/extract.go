package wire

import (
	"strings"
)

// Record type codes recognized in a TDDF file. The 2-character code lives at
// byte positions [17,19) of every record.
const (
	RecordTypeBatchHeader    = "BH"
	RecordTypeTransaction    = "DT"
	RecordTypePurchasingExt1 = "P1"
	RecordTypePurchasingExt2 = "P2"
	RecordTypeEMV            = "E1"
	RecordTypeGeneral        = "G2"
	RecordTypeAdjustment     = "AD"
	RecordTypeDirectMktg     = "DR"
	RecordTypeCheck          = "CK"
	RecordTypeLodging        = "LG"

	// RecordTypeUnknown tags lines too short to carry a type code.
	RecordTypeUnknown = "UNK"
	// RecordTypeBad tags lines below the minimum viable record size. They are
	// stored for audit but never dispatched.
	RecordTypeBad = "BAD"
)

const (
	recordTypeStart = 17
	recordTypeEnd   = 19

	// MinRecordLength is the smallest line that can carry meaningful TDDF
	// content. No valid record type has data below this size.
	MinRecordLength = 150
)

// ExtractField returns the trimmed substring [start,end) of line. Lines may be
// shorter than the full layout when trailing fields are blank-filled or
// omitted, so a line that ends before the field returns "" instead of failing.
func ExtractField(line string, start, end int) string {
	if start < 0 || start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	if end <= start {
		return ""
	}
	return strings.TrimSpace(line[start:end])
}

// ClassifyLine reads the record type code from its fixed offset and applies
// the minimum-length rule. Lines shorter than the type-code offset cannot be
// classified at all.
func ClassifyLine(line string) string {
	if len(line) < recordTypeEnd {
		return RecordTypeUnknown
	}
	if len(line) < MinRecordLength {
		return RecordTypeBad
	}
	code := strings.ToUpper(strings.TrimSpace(line[recordTypeStart:recordTypeEnd]))
	if code == "" {
		return RecordTypeUnknown
	}
	if _, ok := recordDescriptions[code]; !ok {
		return code // stored as-is; dispatcher routes unknown codes to the skip handler
	}
	return code
}

var recordDescriptions = map[string]string{
	RecordTypeBatchHeader:    "Batch Header",
	RecordTypeTransaction:    "Detail Transaction",
	RecordTypePurchasingExt1: "Purchasing Card Extension 1",
	RecordTypePurchasingExt2: "Purchasing Card Extension 2",
	RecordTypeEMV:            "EMV Chip Data Extension",
	RecordTypeGeneral:        "General Data Extension",
	RecordTypeAdjustment:     "Adjustment Record",
	RecordTypeDirectMktg:     "Direct Marketing Record",
	RecordTypeCheck:          "Check Record",
	RecordTypeLodging:        "Lodging Record",
}

// RecordDescription returns the human label for a record type code.
func RecordDescription(code string) string {
	if d, ok := recordDescriptions[code]; ok {
		return d
	}
	switch code {
	case RecordTypeBad:
		return "Below Minimum Record Length"
	case RecordTypeUnknown:
		return "Unclassifiable Line"
	}
	return "Unknown Record Type"
}

// KnownRecordType reports whether code names one of the ten structured record
// layouts.
func KnownRecordType(code string) bool {
	_, ok := recordDescriptions[code]
	return ok
}

// RecordHeader is the positional header shared by every TDDF record type.
type RecordHeader struct {
	SequenceNumber    string
	EntryRunNumber    string
	SequenceWithinRun string
	RecordIdentifier  string
	BankNumber        string
	MerchantAccount   string
}

// ParseHeader slices the common header fields from a raw line.
func ParseHeader(line string) RecordHeader {
	return RecordHeader{
		SequenceNumber:    ExtractField(line, 0, 7),
		EntryRunNumber:    ExtractField(line, 7, 11),
		SequenceWithinRun: ExtractField(line, 11, 17),
		RecordIdentifier:  ExtractField(line, recordTypeStart, recordTypeEnd),
		BankNumber:        ExtractField(line, 19, 23),
		MerchantAccount:   ExtractField(line, 23, 39),
	}
}
