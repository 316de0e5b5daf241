package processors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"
)

func buildLine(length int, segments map[int]string) string {
	buf := []byte(strings.Repeat(" ", length))
	for start, seg := range segments {
		copy(buf[start:], seg)
	}
	return string(buf)
}

func rawLine(fileID uuid.UUID, lineNumber int, raw string) rawimport.RawImportLine {
	return rawimport.RawImportLine{
		ID:           uuid.New(),
		SourceFileID: fileID,
		LineNumber:   lineNumber,
		RawLine:      raw,
		RecordType:   wire.ClassifyLine(raw),
		LineLength:   len(raw),
	}
}

func TestParseBatchHeader(t *testing.T) {
	fileID := uuid.New()
	line := buildLine(150, map[int]string{
		0:  "0000001",
		7:  "0042",
		17: "BH",
		19: "1001",
		23: "MERCH00000000001",
		39: "0699",
		43: "12252024",
		51: "360",
		54: "00000054321",
		65: "BATCH1",
	})

	bh, err := ParseBatchHeader(rawLine(fileID, 7, line))
	if err != nil {
		t.Fatalf("ParseBatchHeader failed: %v", err)
	}

	wantRecordNumber := fmt.Sprintf("BH_%s_7", fileID)
	if bh.RecordNumber != wantRecordNumber {
		t.Errorf("RecordNumber = %q, want %q", bh.RecordNumber, wantRecordNumber)
	}
	if bh.TransactionCode != "0699" {
		t.Errorf("TransactionCode = %q", bh.TransactionCode)
	}
	if bh.BatchDate == nil || bh.BatchDate.Format(time.DateOnly) != "2024-12-25" {
		t.Errorf("BatchDate = %v", bh.BatchDate)
	}
	if bh.NetDeposit == nil || bh.NetDeposit.String() != "543.21" {
		t.Errorf("NetDeposit = %v", bh.NetDeposit)
	}
	if bh.BatchID != "BATCH1" {
		t.Errorf("BatchID = %q", bh.BatchID)
	}
	if bh.MerchantAccount != "MERCH00000000001" {
		t.Errorf("MerchantAccount = %q", bh.MerchantAccount)
	}
	if bh.SourceRowNumber != 7 {
		t.Errorf("SourceRowNumber = %d", bh.SourceRowNumber)
	}
}

func TestParseBatchHeaderSameLineSameKey(t *testing.T) {
	fileID := uuid.New()
	line := buildLine(150, map[int]string{17: "BH"})

	first, err := ParseBatchHeader(rawLine(fileID, 3, line))
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseBatchHeader(rawLine(fileID, 3, line))
	if err != nil {
		t.Fatal(err)
	}
	if first.RecordNumber != second.RecordNumber {
		t.Errorf("re-parse of the same line changed the record number: %q vs %q",
			first.RecordNumber, second.RecordNumber)
	}
}

func TestParseTransaction(t *testing.T) {
	fileID := uuid.New()
	line := buildLine(200, map[int]string{
		0:   "0000002",
		7:   "0042",
		17:  "DT",
		19:  "1001",
		23:  "MERCH00000000001",
		39:  "REF00012345",
		62:  "01152025",
		70:  "00000010050",
		81:  "00000010000",
		92:  "ACME COFFEE",
		117: "VI",
		119: "5814",
		131: "D",
		135: "A12345",
		141: "01142025",
	})

	dt, err := ParseTransaction(rawLine(fileID, 12, line))
	if err != nil {
		t.Fatalf("ParseTransaction failed: %v", err)
	}

	if dt.ReferenceNumber != "REF00012345" {
		t.Errorf("ReferenceNumber = %q", dt.ReferenceNumber)
	}
	if dt.TransactionDate == nil || dt.TransactionDate.Format(time.DateOnly) != "2025-01-15" {
		t.Errorf("TransactionDate = %v", dt.TransactionDate)
	}
	if dt.TransactionAmount == nil || dt.TransactionAmount.String() != "100.5" {
		t.Errorf("TransactionAmount = %v", dt.TransactionAmount)
	}
	if dt.AuthAmount == nil || dt.AuthAmount.String() != "100" {
		t.Errorf("AuthAmount = %v", dt.AuthAmount)
	}
	if dt.MerchantName != "ACME COFFEE" {
		t.Errorf("MerchantName = %q", dt.MerchantName)
	}
	if dt.CardType != "VI" {
		t.Errorf("CardType = %q", dt.CardType)
	}
	if dt.MCCCode != "5814" {
		t.Errorf("MCCCode = %q", dt.MCCCode)
	}
	if dt.DebitCreditIndicator != "D" {
		t.Errorf("DebitCreditIndicator = %q", dt.DebitCreditIndicator)
	}
	if dt.AuthCode != "A12345" {
		t.Errorf("AuthCode = %q", dt.AuthCode)
	}
	if dt.AuthDate == nil || dt.AuthDate.Format(time.DateOnly) != "2025-01-14" {
		t.Errorf("AuthDate = %v", dt.AuthDate)
	}
}

func TestParseTransactionMalformedFieldsDegradeToNil(t *testing.T) {
	fileID := uuid.New()
	// garbage date, blank amounts
	line := buildLine(200, map[int]string{
		17: "DT",
		23: "MERCH00000000001",
		62: "99XX2025",
	})

	dt, err := ParseTransaction(rawLine(fileID, 1, line))
	if err != nil {
		t.Fatalf("ParseTransaction failed: %v", err)
	}
	if dt.TransactionDate != nil {
		t.Errorf("TransactionDate = %v, want nil for malformed field", dt.TransactionDate)
	}
	if dt.TransactionAmount != nil {
		t.Errorf("TransactionAmount = %v, want nil for blank field", dt.TransactionAmount)
	}
	if dt.ReferenceNumber != "" {
		t.Errorf("ReferenceNumber = %q, want empty", dt.ReferenceNumber)
	}
}

func TestParseTransactionMissingMerchantAccount(t *testing.T) {
	fileID := uuid.New()
	// valid DT identifier but the merchant account bytes are blank
	line := buildLine(200, map[int]string{
		17: "DT",
		39: "REF00099999",
	})

	_, err := ParseTransaction(rawLine(fileID, 4, line))
	if err == nil {
		t.Fatal("expected missing required field error")
	}
	if !errors.Is(err, ErrMissingRequired) {
		t.Errorf("error = %v, want ErrMissingRequired", err)
	}
}

func TestParseIdentifierMismatch(t *testing.T) {
	fileID := uuid.New()
	// classified as DT but the bytes say BH
	line := buildLine(150, map[int]string{17: "BH"})

	_, err := ParseTransaction(rawLine(fileID, 1, line))
	if err == nil {
		t.Fatal("expected identifier mismatch error")
	}
	if !errors.Is(err, ErrIdentifierMismatch) {
		t.Errorf("error = %v, want ErrIdentifierMismatch", err)
	}
}

func TestParsePurchasingExt1(t *testing.T) {
	fileID := uuid.New()
	line := buildLine(180, map[int]string{
		17:  "P1",
		23:  "MERCH00000000001",
		39:  "00000000825",
		50:  "PO-2025-000123",
		92:  "00000001250",
		149: "01102025",
	})

	p1, err := ParsePurchasingExt1(rawLine(fileID, 13, line))
	if err != nil {
		t.Fatalf("ParsePurchasingExt1 failed: %v", err)
	}
	if p1.TaxAmount == nil || p1.TaxAmount.String() != "8.25" {
		t.Errorf("TaxAmount = %v", p1.TaxAmount)
	}
	if p1.PurchaseIdentifier != "PO-2025-000123" {
		t.Errorf("PurchaseIdentifier = %q", p1.PurchaseIdentifier)
	}
	if p1.FreightAmount == nil || p1.FreightAmount.String() != "12.5" {
		t.Errorf("FreightAmount = %v", p1.FreightAmount)
	}
	if p1.OrderDate == nil || p1.OrderDate.Format(time.DateOnly) != "2025-01-10" {
		t.Errorf("OrderDate = %v", p1.OrderDate)
	}
}

func TestParsePurchasingExt2(t *testing.T) {
	fileID := uuid.New()
	line := buildLine(160, map[int]string{
		17:  "P2",
		39:  "00000000100",
		50:  "WIDGET ASSEMBLY KIT",
		97:  "00000002500",
		113: "00000005000",
	})

	p2, err := ParsePurchasingExt2(rawLine(fileID, 14, line))
	if err != nil {
		t.Fatalf("ParsePurchasingExt2 failed: %v", err)
	}
	if p2.DiscountAmount == nil || p2.DiscountAmount.String() != "1" {
		t.Errorf("DiscountAmount = %v", p2.DiscountAmount)
	}
	if p2.ItemDescription != "WIDGET ASSEMBLY KIT" {
		t.Errorf("ItemDescription = %q", p2.ItemDescription)
	}
	if p2.UnitCost == nil || p2.UnitCost.String() != "25" {
		t.Errorf("UnitCost = %v", p2.UnitCost)
	}
	if p2.LineItemTotal == nil || p2.LineItemTotal.String() != "50" {
		t.Errorf("LineItemTotal = %v", p2.LineItemTotal)
	}
}

func TestParseOtherRecordPromotions(t *testing.T) {
	fileID := uuid.New()
	tests := []struct {
		recordType string
		segments   map[int]string
		wantAmount string
		wantDate   string
		wantDesc   string
	}{
		{
			recordType: "AD",
			segments: map[int]string{
				17: "AD", 39: "REFADJ001", 62: "02012025",
				70: "00000001500", 85: "CHARGEBACK REVERSAL",
			},
			wantAmount: "15",
			wantDate:   "2025-02-01",
			wantDesc:   "CHARGEBACK REVERSAL",
		},
		{
			recordType: "CK",
			segments: map[int]string{
				17: "CK", 39: "REFCHK001", 62: "03052025",
				70: "00000007500", 107: "0000001234",
			},
			wantAmount: "75",
			wantDate:   "2025-03-05",
			wantDesc:   "0000001234",
		},
		{
			recordType: "LG",
			segments: map[int]string{
				17: "LG", 39: "REFLDG001", 62: "04102025",
				78: "FOLIO987", 92: "00000019999",
			},
			wantAmount: "199.99",
			wantDate:   "2025-04-10",
			wantDesc:   "FOLIO987",
		},
	}
	for _, tt := range tests {
		t.Run(tt.recordType, func(t *testing.T) {
			line := buildLine(160, tt.segments)
			rec, err := ParseOtherRecord(tt.recordType, rawLine(fileID, 1, line))
			if err != nil {
				t.Fatalf("ParseOtherRecord(%s) failed: %v", tt.recordType, err)
			}
			if rec.RecordType != tt.recordType {
				t.Errorf("RecordType = %q", rec.RecordType)
			}
			if rec.Amount == nil || rec.Amount.String() != tt.wantAmount {
				t.Errorf("Amount = %v, want %s", rec.Amount, tt.wantAmount)
			}
			if rec.TransactionDate == nil || rec.TransactionDate.Format(time.DateOnly) != tt.wantDate {
				t.Errorf("TransactionDate = %v, want %s", rec.TransactionDate, tt.wantDate)
			}
			if rec.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", rec.Description, tt.wantDesc)
			}
			if len(rec.Fields) == 0 {
				t.Error("Fields map is empty, full extraction should always be kept")
			}
		})
	}
}

func TestRegistryCoversAllRecordTypes(t *testing.T) {
	reg := NewRegistry()
	for _, code := range []string{"BH", "DT", "P1", "P2", "E1", "G2", "AD", "DR", "CK", "LG"} {
		proc := reg.Lookup(code)
		if proc == nil {
			t.Fatalf("no processor registered for %s", code)
		}
		if proc.RecordType() != code {
			t.Errorf("processor for %s reports type %s", code, proc.RecordType())
		}
	}
	if reg.Lookup("ZZ") != nil {
		t.Error("Lookup(ZZ) should be nil, unknown types go to the skip handler")
	}
	if reg.Lookup("UNK") != nil {
		t.Error("Lookup(UNK) should be nil")
	}
	if reg.Lookup("BAD") != nil {
		t.Error("Lookup(BAD) should be nil")
	}
}
