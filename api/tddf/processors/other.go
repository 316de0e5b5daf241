package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"

	"github.com/jackc/pgx/v5"
)

const otherRecordTable = "mms.tddf_other_records"

// OtherRecordProcessor is the generic engine behind the six extension record
// types (E1, G2, AD, DR, CK, LG). One instance per type, parameterized by the
// type's layout table: the full field set lands in a JSON column while a few
// promoted columns (reference number, date, amount, description) stay
// queryable.
type OtherRecordProcessor struct {
	recordType string
	layout     wire.Layout
}

func NewOtherRecordProcessor(recordType string) *OtherRecordProcessor {
	layout, ok := wire.Layouts[recordType]
	if !ok {
		panic(fmt.Sprintf("no layout registered for record type %q", recordType))
	}
	return &OtherRecordProcessor{recordType: recordType, layout: layout}
}

func (p *OtherRecordProcessor) RecordType() string  { return p.recordType }
func (p *OtherRecordProcessor) Description() string { return p.layout.Description }

// amountField names the field promoted into the amount column, per type.
var amountField = map[string]string{
	wire.RecordTypeEMV:        "cryptogram_amount",
	wire.RecordTypeAdjustment: "adjustment_amount",
	wire.RecordTypeDirectMktg: "total_order_amount",
	wire.RecordTypeCheck:      "check_amount",
	wire.RecordTypeLodging:    "room_rate",
}

// dateField names the field promoted into the transaction date column.
var dateField = map[string]string{
	wire.RecordTypeEMV:        "transaction_date",
	wire.RecordTypeGeneral:    "transaction_date",
	wire.RecordTypeAdjustment: "adjustment_date",
	wire.RecordTypeDirectMktg: "transaction_date",
	wire.RecordTypeCheck:      "check_date",
	wire.RecordTypeLodging:    "arrival_date",
}

// descriptionField names the field promoted into the description column.
var descriptionField = map[string]string{
	wire.RecordTypeGeneral:    "general_data",
	wire.RecordTypeAdjustment: "adjustment_description",
	wire.RecordTypeDirectMktg: "order_number",
	wire.RecordTypeCheck:      "check_number",
	wire.RecordTypeLodging:    "folio_number",
}

// ParseOtherRecord decodes one extension line against the type's layout.
// Pure.
func ParseOtherRecord(recordType string, line rawimport.RawImportLine) (*OtherRecord, error) {
	if err := validateIdentifier(line, recordType); err != nil {
		return nil, err
	}
	layout := wire.Layouts[recordType]
	f := layout.Extract(line.RawLine)

	rec := &OtherRecord{
		RecordHeader:    wire.ParseHeader(line.RawLine),
		RecordType:      recordType,
		ReferenceNumber: f["reference_number"],
		Description:     f[descriptionField[recordType]],
		Fields:          f,
		SourceFileID:    line.SourceFileID,
		SourceRowNumber: line.LineNumber,
		RawLine:         line.RawLine,
	}
	if name, ok := dateField[recordType]; ok {
		rec.TransactionDate = wire.ParseTDDFDate(f[name])
	}
	if name, ok := amountField[recordType]; ok {
		rec.Amount = wire.ParseAuthAmount(f[name])
	}
	return rec, nil
}

func (p *OtherRecordProcessor) Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error) {
	rec, err := ParseOtherRecord(p.recordType, line)
	if err != nil {
		return nil, err
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted fields for %s line %d: %w",
			p.recordType, line.LineNumber, err)
	}

	var recordID string
	err = tx.QueryRow(ctx, `
		INSERT INTO mms.tddf_other_records
			(record_type, sequence_number, entry_run_number, sequence_within_run,
			 bank_number, merchant_account_number, reference_number,
			 transaction_date, amount, description, fields,
			 source_file_id, source_row_number, raw_line)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING other_record_id`,
		rec.RecordType, rec.SequenceNumber, rec.EntryRunNumber, rec.SequenceWithinRun,
		rec.BankNumber, rec.MerchantAccount, rec.ReferenceNumber,
		rec.TransactionDate, rec.Amount, rec.Description, fieldsJSON,
		rec.SourceFileID, rec.SourceRowNumber, rec.RawLine,
	).Scan(&recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s record (file %s line %d): %w",
			p.recordType, rec.SourceFileID, rec.SourceRowNumber, err)
	}

	return &Outcome{Table: otherRecordTable, RecordID: recordID}, nil
}
