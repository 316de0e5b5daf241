package processors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FindTransactionByReference loads a stored DT transaction by its reference
// number. Returns (nil, nil) when no transaction carries that reference.
func FindTransactionByReference(ctx context.Context, pool *pgxpool.Pool, reference string) (*TransactionRecord, error) {
	row := pool.QueryRow(ctx, `
		SELECT sequence_number, entry_run_number, sequence_within_run, bank_number,
		       merchant_account_number, reference_number, transaction_date,
		       transaction_amount, auth_amount, merchant_name, card_type, mcc_code,
		       terminal_id, debit_credit_indicator, transaction_type_identifier,
		       auth_code, auth_date, auth_source_code, pos_entry_mode,
		       card_expiration, settlement_currency, interchange_fee,
		       merchant_city, merchant_state, merchant_zip,
		       source_file_id, source_row_number, raw_line
		FROM mms.tddf_transactions
		WHERE reference_number = $1`, reference)

	var dt TransactionRecord
	err := row.Scan(&dt.SequenceNumber, &dt.EntryRunNumber, &dt.SequenceWithinRun, &dt.BankNumber,
		&dt.MerchantAccount, &dt.ReferenceNumber, &dt.TransactionDate,
		&dt.TransactionAmount, &dt.AuthAmount, &dt.MerchantName, &dt.CardType, &dt.MCCCode,
		&dt.TerminalID, &dt.DebitCreditIndicator, &dt.TransactionTypeIdentifier,
		&dt.AuthCode, &dt.AuthDate, &dt.AuthSourceCode, &dt.POSEntryMode,
		&dt.CardExpiration, &dt.SettlementCurrency, &dt.InterchangeFee,
		&dt.MerchantCity, &dt.MerchantState, &dt.MerchantZip,
		&dt.SourceFileID, &dt.SourceRowNumber, &dt.RawLine)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction with reference %q: %w", reference, err)
	}
	return &dt, nil
}

// FindPurchasingExt1 resolves the P1 extension of a DT transaction by the
// positional rule: same source file, the immediately following line, same
// merchant account, same entry-run number. The relationship is adjacency in
// the wire file, deliberately not a stored foreign key; the feed guarantees
// nothing stronger. Returns (nil, nil) when no such extension exists.
func FindPurchasingExt1(ctx context.Context, pool *pgxpool.Pool, dt *TransactionRecord) (*PurchasingExt1, error) {
	row := pool.QueryRow(ctx, `
		SELECT sequence_number, entry_run_number, sequence_within_run, bank_number,
		       merchant_account_number, tax_amount, purchase_identifier,
		       customer_code, freight_amount, duty_amount, merchant_tax_id,
		       vat_registration_number, order_date, destination_zip, ship_from_zip,
		       destination_country, source_file_id, source_row_number, raw_line
		FROM mms.tddf_purchasing_ext1
		WHERE source_file_id = $1
		  AND source_row_number = $2
		  AND merchant_account_number = $3
		  AND entry_run_number = $4`,
		dt.SourceFileID, dt.SourceRowNumber+1, dt.MerchantAccount, dt.EntryRunNumber)

	var p1 PurchasingExt1
	err := row.Scan(&p1.SequenceNumber, &p1.EntryRunNumber, &p1.SequenceWithinRun, &p1.BankNumber,
		&p1.MerchantAccount, &p1.TaxAmount, &p1.PurchaseIdentifier,
		&p1.CustomerCode, &p1.FreightAmount, &p1.DutyAmount, &p1.MerchantTaxID,
		&p1.VATRegistrationNumber, &p1.OrderDate, &p1.DestinationZip, &p1.ShipFromZip,
		&p1.DestinationCountry, &p1.SourceFileID, &p1.SourceRowNumber, &p1.RawLine)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up purchasing ext1 for transaction at file %s line %d: %w",
			dt.SourceFileID, dt.SourceRowNumber, err)
	}
	return &p1, nil
}

// FindPurchasingExt2 resolves the P2 item detail that positionally follows a
// P1 extension (line N+2 from the parent DT). Same adjacency contract as
// FindPurchasingExt1.
func FindPurchasingExt2(ctx context.Context, pool *pgxpool.Pool, dt *TransactionRecord) (*PurchasingExt2, error) {
	row := pool.QueryRow(ctx, `
		SELECT sequence_number, entry_run_number, sequence_within_run, bank_number,
		       merchant_account_number, discount_amount, item_description,
		       item_quantity, unit_cost, vat_rate_applied, line_item_total,
		       item_commodity_code, product_code, unit_of_measure,
		       source_file_id, source_row_number, raw_line
		FROM mms.tddf_purchasing_ext2
		WHERE source_file_id = $1
		  AND source_row_number = $2
		  AND merchant_account_number = $3
		  AND entry_run_number = $4`,
		dt.SourceFileID, dt.SourceRowNumber+2, dt.MerchantAccount, dt.EntryRunNumber)

	var p2 PurchasingExt2
	err := row.Scan(&p2.SequenceNumber, &p2.EntryRunNumber, &p2.SequenceWithinRun, &p2.BankNumber,
		&p2.MerchantAccount, &p2.DiscountAmount, &p2.ItemDescription,
		&p2.ItemQuantity, &p2.UnitCost, &p2.VATRateApplied, &p2.LineItemTotal,
		&p2.ItemCommodityCode, &p2.ProductCode, &p2.UnitOfMeasure,
		&p2.SourceFileID, &p2.SourceRowNumber, &p2.RawLine)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up purchasing ext2 for transaction at file %s line %d: %w",
			dt.SourceFileID, dt.SourceRowNumber, err)
	}
	return &p2, nil
}
