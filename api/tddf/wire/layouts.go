package wire

// FieldKind selects the decoder applied to an extracted field when a layout is
// rendered into typed values.
type FieldKind int

const (
	KindText   FieldKind = iota
	KindDate             // MMDDCCYY
	KindCents            // zero-padded cents, no decimal point
	KindAmount           // general signed amount
)

// Field is one positionally-defined field of a record layout. Start/End are
// 0-indexed byte offsets, End exclusive.
type Field struct {
	Name  string
	Start int
	End   int
	Kind  FieldKind
}

// Layout is the static offset table owned by one record type. The byte
// offsets reproduce the TDDF specification document; they must not be
// adjusted to fit observed data, since files shorter than a full layout are
// legal (trailing fields blank-filled or omitted).
type Layout struct {
	RecordType  string
	Description string
	Fields      []Field
}

// Extract slices every field of the layout out of a raw line into a raw
// (undecoded, trimmed) string map. Fields past the end of a short line come
// back empty.
func (l Layout) Extract(line string) map[string]string {
	out := make(map[string]string, len(l.Fields))
	for _, f := range l.Fields {
		out[f.Name] = ExtractField(line, f.Start, f.End)
	}
	return out
}

// FieldByName returns the field definition, for callers that need a single
// offset without extracting the whole layout.
func (l Layout) FieldByName(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Common header fields shared by all layouts.
var headerFields = []Field{
	{Name: "sequence_number", Start: 0, End: 7, Kind: KindText},
	{Name: "entry_run_number", Start: 7, End: 11, Kind: KindText},
	{Name: "sequence_within_run", Start: 11, End: 17, Kind: KindText},
	{Name: "record_identifier", Start: 17, End: 19, Kind: KindText},
	{Name: "bank_number", Start: 19, End: 23, Kind: KindText},
	{Name: "merchant_account_number", Start: 23, End: 39, Kind: KindText},
}

func withHeader(fields ...Field) []Field {
	out := make([]Field, 0, len(headerFields)+len(fields))
	out = append(out, headerFields...)
	out = append(out, fields...)
	return out
}

// BatchHeaderLayout is the BH record table.
var BatchHeaderLayout = Layout{
	RecordType:  RecordTypeBatchHeader,
	Description: RecordDescription(RecordTypeBatchHeader),
	Fields: withHeader(
		Field{Name: "transaction_code", Start: 39, End: 43, Kind: KindText},
		Field{Name: "batch_date", Start: 43, End: 51, Kind: KindDate},
		Field{Name: "batch_julian_date", Start: 51, End: 54, Kind: KindText},
		Field{Name: "net_deposit", Start: 54, End: 65, Kind: KindCents},
		Field{Name: "batch_id", Start: 65, End: 71, Kind: KindText},
		Field{Name: "reject_reason", Start: 71, End: 75, Kind: KindText},
		Field{Name: "deposit_indicator", Start: 75, End: 76, Kind: KindText},
		Field{Name: "batch_record_count", Start: 76, End: 82, Kind: KindText},
		Field{Name: "merchant_name", Start: 82, End: 107, Kind: KindText},
		Field{Name: "association_number", Start: 107, End: 113, Kind: KindText},
		Field{Name: "chain_number", Start: 113, End: 119, Kind: KindText},
		Field{Name: "currency_code", Start: 119, End: 122, Kind: KindText},
		Field{Name: "settlement_flag", Start: 122, End: 123, Kind: KindText},
	),
}

// TransactionLayout is the DT record table, the widest layout on the feed.
// The cardType and mccCode offsets follow the corrected positions from the
// current revision of the TDDF specification; earlier revisions shifted them
// by two bytes.
var TransactionLayout = Layout{
	RecordType:  RecordTypeTransaction,
	Description: RecordDescription(RecordTypeTransaction),
	Fields: withHeader(
		Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
		Field{Name: "transaction_date", Start: 62, End: 70, Kind: KindDate},
		Field{Name: "transaction_amount", Start: 70, End: 81, Kind: KindCents},
		Field{Name: "auth_amount", Start: 81, End: 92, Kind: KindCents},
		Field{Name: "merchant_name", Start: 92, End: 117, Kind: KindText},
		Field{Name: "card_type", Start: 117, End: 119, Kind: KindText},
		Field{Name: "mcc_code", Start: 119, End: 123, Kind: KindText},
		Field{Name: "terminal_id", Start: 123, End: 131, Kind: KindText},
		Field{Name: "debit_credit_indicator", Start: 131, End: 132, Kind: KindText},
		Field{Name: "transaction_type_identifier", Start: 132, End: 135, Kind: KindText},
		Field{Name: "auth_code", Start: 135, End: 141, Kind: KindText},
		Field{Name: "auth_date", Start: 141, End: 149, Kind: KindDate},
		Field{Name: "auth_source_code", Start: 149, End: 150, Kind: KindText},
		Field{Name: "pos_entry_mode", Start: 150, End: 152, Kind: KindText},
		Field{Name: "cardholder_id_method", Start: 152, End: 153, Kind: KindText},
		Field{Name: "card_expiration", Start: 153, End: 157, Kind: KindText},
		Field{Name: "settlement_currency", Start: 157, End: 160, Kind: KindText},
		Field{Name: "interchange_fee", Start: 160, End: 169, Kind: KindCents},
		Field{Name: "batch_julian_date", Start: 169, End: 172, Kind: KindText},
		Field{Name: "merchant_city", Start: 172, End: 185, Kind: KindText},
		Field{Name: "merchant_state", Start: 185, End: 187, Kind: KindText},
		Field{Name: "merchant_zip", Start: 187, End: 196, Kind: KindText},
	),
}

// PurchasingExt1Layout is the P1 record table. A P1 always positionally
// follows its parent DT on the preceding line of the same file.
var PurchasingExt1Layout = Layout{
	RecordType:  RecordTypePurchasingExt1,
	Description: RecordDescription(RecordTypePurchasingExt1),
	Fields: withHeader(
		Field{Name: "tax_amount", Start: 39, End: 50, Kind: KindCents},
		Field{Name: "purchase_identifier", Start: 50, End: 75, Kind: KindText},
		Field{Name: "customer_code", Start: 75, End: 92, Kind: KindText},
		Field{Name: "freight_amount", Start: 92, End: 103, Kind: KindCents},
		Field{Name: "duty_amount", Start: 103, End: 114, Kind: KindCents},
		Field{Name: "merchant_tax_id", Start: 114, End: 129, Kind: KindText},
		Field{Name: "vat_registration_number", Start: 129, End: 149, Kind: KindText},
		Field{Name: "order_date", Start: 149, End: 157, Kind: KindDate},
		Field{Name: "destination_zip", Start: 157, End: 166, Kind: KindText},
		Field{Name: "ship_from_zip", Start: 166, End: 175, Kind: KindText},
		Field{Name: "destination_country", Start: 175, End: 178, Kind: KindText},
	),
}

// PurchasingExt2Layout is the P2 record table (item-level purchasing-card
// detail).
var PurchasingExt2Layout = Layout{
	RecordType:  RecordTypePurchasingExt2,
	Description: RecordDescription(RecordTypePurchasingExt2),
	Fields: withHeader(
		Field{Name: "discount_amount", Start: 39, End: 50, Kind: KindCents},
		Field{Name: "item_description", Start: 50, End: 85, Kind: KindText},
		Field{Name: "item_quantity", Start: 85, End: 97, Kind: KindAmount},
		Field{Name: "unit_cost", Start: 97, End: 109, Kind: KindCents},
		Field{Name: "vat_rate_applied", Start: 109, End: 113, Kind: KindAmount},
		Field{Name: "line_item_total", Start: 113, End: 124, Kind: KindCents},
		Field{Name: "item_commodity_code", Start: 124, End: 136, Kind: KindText},
		Field{Name: "product_code", Start: 136, End: 148, Kind: KindText},
		Field{Name: "unit_of_measure", Start: 148, End: 151, Kind: KindText},
	),
}

// Extension layouts routed to the generic other-records processor. Each
// promotes a handful of columns for querying; the full extracted field set is
// persisted as JSON alongside them.
var (
	EMVLayout = Layout{
		RecordType:  RecordTypeEMV,
		Description: RecordDescription(RecordTypeEMV),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "transaction_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "application_cryptogram", Start: 70, End: 86, Kind: KindText},
			Field{Name: "terminal_verification_results", Start: 86, End: 96, Kind: KindText},
			Field{Name: "transaction_status_info", Start: 96, End: 100, Kind: KindText},
			Field{Name: "application_interchange_profile", Start: 100, End: 104, Kind: KindText},
			Field{Name: "cryptogram_amount", Start: 104, End: 115, Kind: KindCents},
			Field{Name: "card_sequence_number", Start: 115, End: 118, Kind: KindText},
			Field{Name: "issuer_application_data", Start: 118, End: 150, Kind: KindText},
		),
	}

	GeneralLayout = Layout{
		RecordType:  RecordTypeGeneral,
		Description: RecordDescription(RecordTypeGeneral),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "transaction_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "data_indicator", Start: 70, End: 72, Kind: KindText},
			Field{Name: "general_data", Start: 72, End: 150, Kind: KindText},
		),
	}

	AdjustmentLayout = Layout{
		RecordType:  RecordTypeAdjustment,
		Description: RecordDescription(RecordTypeAdjustment),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "adjustment_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "adjustment_amount", Start: 70, End: 81, Kind: KindCents},
			Field{Name: "adjustment_reason", Start: 81, End: 85, Kind: KindText},
			Field{Name: "adjustment_description", Start: 85, End: 125, Kind: KindText},
			Field{Name: "original_reference_number", Start: 125, End: 148, Kind: KindText},
			Field{Name: "debit_credit_indicator", Start: 148, End: 149, Kind: KindText},
		),
	}

	DirectMktgLayout = Layout{
		RecordType:  RecordTypeDirectMktg,
		Description: RecordDescription(RecordTypeDirectMktg),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "transaction_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "order_number", Start: 70, End: 85, Kind: KindText},
			Field{Name: "shipping_date", Start: 85, End: 93, Kind: KindDate},
			Field{Name: "shipping_amount", Start: 93, End: 104, Kind: KindCents},
			Field{Name: "customer_service_phone", Start: 104, End: 114, Kind: KindText},
			Field{Name: "total_order_amount", Start: 114, End: 125, Kind: KindCents},
		),
	}

	CheckLayout = Layout{
		RecordType:  RecordTypeCheck,
		Description: RecordDescription(RecordTypeCheck),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "check_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "check_amount", Start: 70, End: 81, Kind: KindCents},
			Field{Name: "routing_number", Start: 81, End: 90, Kind: KindText},
			Field{Name: "account_number", Start: 90, End: 107, Kind: KindText},
			Field{Name: "check_number", Start: 107, End: 117, Kind: KindText},
			Field{Name: "verification_code", Start: 117, End: 119, Kind: KindText},
		),
	}

	LodgingLayout = Layout{
		RecordType:  RecordTypeLodging,
		Description: RecordDescription(RecordTypeLodging),
		Fields: withHeader(
			Field{Name: "reference_number", Start: 39, End: 62, Kind: KindText},
			Field{Name: "arrival_date", Start: 62, End: 70, Kind: KindDate},
			Field{Name: "departure_date", Start: 70, End: 78, Kind: KindDate},
			Field{Name: "folio_number", Start: 78, End: 92, Kind: KindText},
			Field{Name: "room_rate", Start: 92, End: 103, Kind: KindCents},
			Field{Name: "total_room_nights", Start: 103, End: 106, Kind: KindText},
			Field{Name: "extra_charges", Start: 106, End: 117, Kind: KindCents},
			Field{Name: "extra_charge_codes", Start: 117, End: 123, Kind: KindText},
			Field{Name: "program_code", Start: 123, End: 125, Kind: KindText},
		),
	}
)

// Layouts maps every structured record type to its offset table.
var Layouts = map[string]Layout{
	RecordTypeBatchHeader:    BatchHeaderLayout,
	RecordTypeTransaction:    TransactionLayout,
	RecordTypePurchasingExt1: PurchasingExt1Layout,
	RecordTypePurchasingExt2: PurchasingExt2Layout,
	RecordTypeEMV:            EMVLayout,
	RecordTypeGeneral:        GeneralLayout,
	RecordTypeAdjustment:     AdjustmentLayout,
	RecordTypeDirectMktg:     DirectMktgLayout,
	RecordTypeCheck:          CheckLayout,
	RecordTypeLodging:        LodgingLayout,
}
