package processors

import (
	"context"
	"fmt"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"

	"github.com/jackc/pgx/v5"
)

const (
	purchasingExt1Table = "mms.tddf_purchasing_ext1"
	purchasingExt2Table = "mms.tddf_purchasing_ext2"
)

// PurchasingExt1Processor handles P1 records. A P1 extends the DT on the
// immediately preceding line; it parses and persists independently, and the
// parent association is resolved at read time (see FindPurchasingExt1).
type PurchasingExt1Processor struct {
	layout wire.Layout
}

func NewPurchasingExt1Processor() *PurchasingExt1Processor {
	return &PurchasingExt1Processor{layout: wire.PurchasingExt1Layout}
}

func (p *PurchasingExt1Processor) RecordType() string  { return wire.RecordTypePurchasingExt1 }
func (p *PurchasingExt1Processor) Description() string { return p.layout.Description }

// ParsePurchasingExt1 decodes one P1 line. Pure.
func ParsePurchasingExt1(line rawimport.RawImportLine) (*PurchasingExt1, error) {
	if err := validateIdentifier(line, wire.RecordTypePurchasingExt1); err != nil {
		return nil, err
	}
	f := wire.PurchasingExt1Layout.Extract(line.RawLine)
	return &PurchasingExt1{
		RecordHeader:          wire.ParseHeader(line.RawLine),
		TaxAmount:             wire.ParseAuthAmount(f["tax_amount"]),
		PurchaseIdentifier:    f["purchase_identifier"],
		CustomerCode:          f["customer_code"],
		FreightAmount:         wire.ParseAuthAmount(f["freight_amount"]),
		DutyAmount:            wire.ParseAuthAmount(f["duty_amount"]),
		MerchantTaxID:         f["merchant_tax_id"],
		VATRegistrationNumber: f["vat_registration_number"],
		OrderDate:             wire.ParseTDDFDate(f["order_date"]),
		DestinationZip:        f["destination_zip"],
		ShipFromZip:           f["ship_from_zip"],
		DestinationCountry:    f["destination_country"],
		SourceFileID:          line.SourceFileID,
		SourceRowNumber:       line.LineNumber,
		RawLine:               line.RawLine,
	}, nil
}

func (p *PurchasingExt1Processor) Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error) {
	p1, err := ParsePurchasingExt1(line)
	if err != nil {
		return nil, err
	}

	var recordID string
	err = tx.QueryRow(ctx, `
		INSERT INTO mms.tddf_purchasing_ext1
			(sequence_number, entry_run_number, sequence_within_run, bank_number,
			 merchant_account_number, tax_amount, purchase_identifier,
			 customer_code, freight_amount, duty_amount, merchant_tax_id,
			 vat_registration_number, order_date, destination_zip, ship_from_zip,
			 destination_country, source_file_id, source_row_number, raw_line)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING purchasing_ext1_id`,
		p1.SequenceNumber, p1.EntryRunNumber, p1.SequenceWithinRun, p1.BankNumber,
		p1.MerchantAccount, p1.TaxAmount, p1.PurchaseIdentifier,
		p1.CustomerCode, p1.FreightAmount, p1.DutyAmount, p1.MerchantTaxID,
		p1.VATRegistrationNumber, p1.OrderDate, p1.DestinationZip, p1.ShipFromZip,
		p1.DestinationCountry, p1.SourceFileID, p1.SourceRowNumber, p1.RawLine,
	).Scan(&recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchasing ext1 (file %s line %d): %w",
			p1.SourceFileID, p1.SourceRowNumber, err)
	}

	return &Outcome{Table: purchasingExt1Table, RecordID: recordID}, nil
}

// PurchasingExt2Processor handles P2 records (item-level purchasing detail).
type PurchasingExt2Processor struct {
	layout wire.Layout
}

func NewPurchasingExt2Processor() *PurchasingExt2Processor {
	return &PurchasingExt2Processor{layout: wire.PurchasingExt2Layout}
}

func (p *PurchasingExt2Processor) RecordType() string  { return wire.RecordTypePurchasingExt2 }
func (p *PurchasingExt2Processor) Description() string { return p.layout.Description }

// ParsePurchasingExt2 decodes one P2 line. Pure.
func ParsePurchasingExt2(line rawimport.RawImportLine) (*PurchasingExt2, error) {
	if err := validateIdentifier(line, wire.RecordTypePurchasingExt2); err != nil {
		return nil, err
	}
	f := wire.PurchasingExt2Layout.Extract(line.RawLine)
	return &PurchasingExt2{
		RecordHeader:      wire.ParseHeader(line.RawLine),
		DiscountAmount:    wire.ParseAuthAmount(f["discount_amount"]),
		ItemDescription:   f["item_description"],
		ItemQuantity:      wire.ParseAmount(f["item_quantity"]),
		UnitCost:          wire.ParseAuthAmount(f["unit_cost"]),
		VATRateApplied:    wire.ParseAmount(f["vat_rate_applied"]),
		LineItemTotal:     wire.ParseAuthAmount(f["line_item_total"]),
		ItemCommodityCode: f["item_commodity_code"],
		ProductCode:       f["product_code"],
		UnitOfMeasure:     f["unit_of_measure"],
		SourceFileID:      line.SourceFileID,
		SourceRowNumber:   line.LineNumber,
		RawLine:           line.RawLine,
	}, nil
}

func (p *PurchasingExt2Processor) Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error) {
	p2, err := ParsePurchasingExt2(line)
	if err != nil {
		return nil, err
	}

	var recordID string
	err = tx.QueryRow(ctx, `
		INSERT INTO mms.tddf_purchasing_ext2
			(sequence_number, entry_run_number, sequence_within_run, bank_number,
			 merchant_account_number, discount_amount, item_description,
			 item_quantity, unit_cost, vat_rate_applied, line_item_total,
			 item_commodity_code, product_code, unit_of_measure,
			 source_file_id, source_row_number, raw_line)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING purchasing_ext2_id`,
		p2.SequenceNumber, p2.EntryRunNumber, p2.SequenceWithinRun, p2.BankNumber,
		p2.MerchantAccount, p2.DiscountAmount, p2.ItemDescription,
		p2.ItemQuantity, p2.UnitCost, p2.VATRateApplied, p2.LineItemTotal,
		p2.ItemCommodityCode, p2.ProductCode, p2.UnitOfMeasure,
		p2.SourceFileID, p2.SourceRowNumber, p2.RawLine,
	).Scan(&recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchasing ext2 (file %s line %d): %w",
			p2.SourceFileID, p2.SourceRowNumber, err)
	}

	return &Outcome{Table: purchasingExt2Table, RecordID: recordID}, nil
}
