package processors

import (
	"context"
	"errors"
	"fmt"
	"log"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"

	"github.com/jackc/pgx/v5"
)

const transactionTable = "mms.tddf_transactions"

// TransactionProcessor handles DT records, the financially load-bearing
// record type. The reference number, when present, is the cross-file
// duplicate anchor: re-ingesting a file with an already-seen reference number
// must not produce a second transaction row.
type TransactionProcessor struct {
	layout wire.Layout
}

func NewTransactionProcessor() *TransactionProcessor {
	return &TransactionProcessor{layout: wire.TransactionLayout}
}

func (p *TransactionProcessor) RecordType() string  { return wire.RecordTypeTransaction }
func (p *TransactionProcessor) Description() string { return p.layout.Description }

// ParseTransaction decodes one DT line. Pure. The merchant account number is
// required: P1/P2 extensions join back to their DT through it, so a blank one
// makes the row unreachable.
func ParseTransaction(line rawimport.RawImportLine) (*TransactionRecord, error) {
	if err := validateIdentifier(line, wire.RecordTypeTransaction); err != nil {
		return nil, err
	}
	f := wire.TransactionLayout.Extract(line.RawLine)
	dt := &TransactionRecord{
		RecordHeader:              wire.ParseHeader(line.RawLine),
		ReferenceNumber:           f["reference_number"],
		TransactionDate:           wire.ParseTDDFDate(f["transaction_date"]),
		TransactionAmount:         wire.ParseAuthAmount(f["transaction_amount"]),
		AuthAmount:                wire.ParseAuthAmount(f["auth_amount"]),
		MerchantName:              f["merchant_name"],
		CardType:                  f["card_type"],
		MCCCode:                   f["mcc_code"],
		TerminalID:                f["terminal_id"],
		DebitCreditIndicator:      f["debit_credit_indicator"],
		TransactionTypeIdentifier: f["transaction_type_identifier"],
		AuthCode:                  f["auth_code"],
		AuthDate:                  wire.ParseTDDFDate(f["auth_date"]),
		AuthSourceCode:            f["auth_source_code"],
		POSEntryMode:              f["pos_entry_mode"],
		CardExpiration:            f["card_expiration"],
		SettlementCurrency:        f["settlement_currency"],
		InterchangeFee:            wire.ParseAuthAmount(f["interchange_fee"]),
		MerchantCity:              f["merchant_city"],
		MerchantState:             f["merchant_state"],
		MerchantZip:               f["merchant_zip"],
		SourceFileID:              line.SourceFileID,
		SourceRowNumber:           line.LineNumber,
		RawLine:                   line.RawLine,
	}
	if err := requireField(line, "merchant_account_number", dt.MerchantAccount); err != nil {
		return nil, err
	}
	return dt, nil
}

// Process inserts the transaction with the reference-number unique constraint
// as the duplicate backstop. Two concurrent DT lines carrying the same
// reference number both reach the insert; whichever loses the conflict takes
// the duplicate path. The application layer only composes the audit message
// from the conflict result.
func (p *TransactionProcessor) Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error) {
	dt, err := ParseTransaction(line)
	if err != nil {
		return nil, err
	}

	var recordID string
	err = tx.QueryRow(ctx, `
		INSERT INTO mms.tddf_transactions
			(sequence_number, entry_run_number, sequence_within_run, bank_number,
			 merchant_account_number, reference_number, transaction_date,
			 transaction_amount, auth_amount, merchant_name, card_type, mcc_code,
			 terminal_id, debit_credit_indicator, transaction_type_identifier,
			 auth_code, auth_date, auth_source_code, pos_entry_mode,
			 card_expiration, settlement_currency, interchange_fee,
			 merchant_city, merchant_state, merchant_zip,
			 source_file_id, source_row_number, raw_line)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
		        $19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		ON CONFLICT (reference_number) WHERE reference_number <> ''
		DO NOTHING
		RETURNING transaction_id`,
		dt.SequenceNumber, dt.EntryRunNumber, dt.SequenceWithinRun, dt.BankNumber,
		dt.MerchantAccount, dt.ReferenceNumber, dt.TransactionDate,
		dt.TransactionAmount, dt.AuthAmount, dt.MerchantName, dt.CardType, dt.MCCCode,
		dt.TerminalID, dt.DebitCreditIndicator, dt.TransactionTypeIdentifier,
		dt.AuthCode, dt.AuthDate, dt.AuthSourceCode, dt.POSEntryMode,
		dt.CardExpiration, dt.SettlementCurrency, dt.InterchangeFee,
		dt.MerchantCity, dt.MerchantState, dt.MerchantZip,
		dt.SourceFileID, dt.SourceRowNumber, dt.RawLine,
	).Scan(&recordID)

	if err == nil {
		return &Outcome{Table: transactionTable, RecordID: recordID}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert transaction ref %q: %w", dt.ReferenceNumber, err)
	}

	// Conflict: a transaction with this reference number already exists. Look
	// up the surviving row for the audit trail and report a duplicate outcome.
	var existingID string
	var origFileID string
	var origRow int
	err = tx.QueryRow(ctx, `
		SELECT transaction_id, source_file_id, source_row_number
		FROM mms.tddf_transactions
		WHERE reference_number = $1`, dt.ReferenceNumber,
	).Scan(&existingID, &origFileID, &origRow)
	if err != nil {
		return nil, fmt.Errorf("duplicate reference %q but lookup of existing record failed: %w",
			dt.ReferenceNumber, err)
	}

	log.Printf("[AUDIT] Duplicate DT reference %s: original file %s line %d, duplicate file %s line %d (kept %s)",
		dt.ReferenceNumber, origFileID, origRow, dt.SourceFileID, dt.SourceRowNumber, existingID)

	return &Outcome{
		Table:      transactionTable,
		RecordID:   existingID,
		Duplicate:  true,
		SkipReason: fmt.Sprintf("%s:%s", SkipDuplicateReference, existingID),
	}, nil
}
