package processors

import (
	"time"

	"MerchantMMS/api/tddf/wire"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Typed representations of the structured record variants. Each is created
// from exactly one raw import line and carries the file/row provenance plus a
// raw-line echo for audit.

// BatchHeader is the decoded BH record. RecordNumber is the synthetic natural
// key BH_{fileID}_{lineNumber}; re-processing the same line upserts.
type BatchHeader struct {
	wire.RecordHeader
	RecordNumber     string
	TransactionCode  string
	BatchDate        *time.Time
	BatchJulianDate  string
	NetDeposit       *decimal.Decimal
	BatchID          string
	RejectReason     string
	DepositIndicator string
	BatchRecordCount string
	MerchantName     string
	CurrencyCode     string
	SourceFileID     uuid.UUID
	SourceRowNumber  int
	RawLine          string
}

// TransactionRecord is the decoded DT record. ReferenceNumber, when present,
// is unique across the table and anchors cross-file duplicate suppression.
type TransactionRecord struct {
	wire.RecordHeader
	ReferenceNumber           string
	TransactionDate           *time.Time
	TransactionAmount         *decimal.Decimal
	AuthAmount                *decimal.Decimal
	MerchantName              string
	CardType                  string
	MCCCode                   string
	TerminalID                string
	DebitCreditIndicator      string
	TransactionTypeIdentifier string
	AuthCode                  string
	AuthDate                  *time.Time
	AuthSourceCode            string
	POSEntryMode              string
	CardExpiration            string
	SettlementCurrency        string
	InterchangeFee            *decimal.Decimal
	MerchantCity              string
	MerchantState             string
	MerchantZip               string
	SourceFileID              uuid.UUID
	SourceRowNumber           int
	RawLine                   string
}

// PurchasingExt1 is the decoded P1 record. The parent DT relationship is
// positional (previous line, same merchant account, same entry run), never a
// stored foreign key.
type PurchasingExt1 struct {
	wire.RecordHeader
	TaxAmount             *decimal.Decimal
	PurchaseIdentifier    string
	CustomerCode          string
	FreightAmount         *decimal.Decimal
	DutyAmount            *decimal.Decimal
	MerchantTaxID         string
	VATRegistrationNumber string
	OrderDate             *time.Time
	DestinationZip        string
	ShipFromZip           string
	DestinationCountry    string
	SourceFileID          uuid.UUID
	SourceRowNumber       int
	RawLine               string
}

// PurchasingExt2 is the decoded P2 record (item-level purchasing-card
// detail).
type PurchasingExt2 struct {
	wire.RecordHeader
	DiscountAmount    *decimal.Decimal
	ItemDescription   string
	ItemQuantity      *decimal.Decimal
	UnitCost          *decimal.Decimal
	VATRateApplied    *decimal.Decimal
	LineItemTotal     *decimal.Decimal
	ItemCommodityCode string
	ProductCode       string
	UnitOfMeasure     string
	SourceFileID      uuid.UUID
	SourceRowNumber   int
	RawLine           string
}

// OtherRecord is the generic representation of the E1/G2/AD/DR/CK/LG
// extension types: a few promoted columns for querying plus the full
// extracted field set as JSON.
type OtherRecord struct {
	wire.RecordHeader
	RecordType      string
	ReferenceNumber string
	TransactionDate *time.Time
	Amount          *decimal.Decimal
	Description     string
	Fields          map[string]string
	SourceFileID    uuid.UUID
	SourceRowNumber int
	RawLine         string
}
