package processors

import (
	"context"
	"fmt"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"

	"github.com/jackc/pgx/v5"
)

const batchHeaderTable = "mms.tddf_batch_headers"

// BatchHeaderProcessor handles BH records. Batch headers key on a synthetic
// record number derived from (file, line), so re-processing the same line is
// an idempotent upsert rather than a duplicate row.
type BatchHeaderProcessor struct {
	layout wire.Layout
}

func NewBatchHeaderProcessor() *BatchHeaderProcessor {
	return &BatchHeaderProcessor{layout: wire.BatchHeaderLayout}
}

func (p *BatchHeaderProcessor) RecordType() string  { return wire.RecordTypeBatchHeader }
func (p *BatchHeaderProcessor) Description() string { return p.layout.Description }

// ParseBatchHeader decodes one BH line. Pure; malformed date/amount fields
// degrade to nil rather than failing the record.
func ParseBatchHeader(line rawimport.RawImportLine) (*BatchHeader, error) {
	if err := validateIdentifier(line, wire.RecordTypeBatchHeader); err != nil {
		return nil, err
	}
	f := wire.BatchHeaderLayout.Extract(line.RawLine)
	return &BatchHeader{
		RecordHeader:     wire.ParseHeader(line.RawLine),
		RecordNumber:     fmt.Sprintf("BH_%s_%d", line.SourceFileID, line.LineNumber),
		TransactionCode:  f["transaction_code"],
		BatchDate:        wire.ParseTDDFDate(f["batch_date"]),
		BatchJulianDate:  f["batch_julian_date"],
		NetDeposit:       wire.ParseAuthAmount(f["net_deposit"]),
		BatchID:          f["batch_id"],
		RejectReason:     f["reject_reason"],
		DepositIndicator: f["deposit_indicator"],
		BatchRecordCount: f["batch_record_count"],
		MerchantName:     f["merchant_name"],
		CurrencyCode:     f["currency_code"],
		SourceFileID:     line.SourceFileID,
		SourceRowNumber:  line.LineNumber,
		RawLine:          line.RawLine,
	}, nil
}

func (p *BatchHeaderProcessor) Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error) {
	bh, err := ParseBatchHeader(line)
	if err != nil {
		return nil, err
	}

	var recordID string
	err = tx.QueryRow(ctx, `
		INSERT INTO mms.tddf_batch_headers
			(record_number, sequence_number, entry_run_number, sequence_within_run,
			 bank_number, merchant_account_number, transaction_code, batch_date,
			 batch_julian_date, net_deposit, batch_id, reject_reason,
			 deposit_indicator, batch_record_count, merchant_name, currency_code,
			 source_file_id, source_row_number, raw_line)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (record_number) DO UPDATE SET
			transaction_code = EXCLUDED.transaction_code,
			batch_date = EXCLUDED.batch_date,
			batch_julian_date = EXCLUDED.batch_julian_date,
			net_deposit = EXCLUDED.net_deposit,
			batch_id = EXCLUDED.batch_id,
			reject_reason = EXCLUDED.reject_reason,
			deposit_indicator = EXCLUDED.deposit_indicator,
			batch_record_count = EXCLUDED.batch_record_count,
			merchant_name = EXCLUDED.merchant_name,
			currency_code = EXCLUDED.currency_code,
			raw_line = EXCLUDED.raw_line
		RETURNING batch_header_id`,
		bh.RecordNumber, bh.SequenceNumber, bh.EntryRunNumber, bh.SequenceWithinRun,
		bh.BankNumber, bh.MerchantAccount, bh.TransactionCode, bh.BatchDate,
		bh.BatchJulianDate, bh.NetDeposit, bh.BatchID, bh.RejectReason,
		bh.DepositIndicator, bh.BatchRecordCount, bh.MerchantName, bh.CurrencyCode,
		bh.SourceFileID, bh.SourceRowNumber, bh.RawLine,
	).Scan(&recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert batch header %s: %w", bh.RecordNumber, err)
	}

	return &Outcome{Table: batchHeaderTable, RecordID: recordID}, nil
}
