package processors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"

	"github.com/jackc/pgx/v5"
)

// Skip reason prefixes. Reasons are free text but always start with one of
// these so operators and the recovery controller can re-triage by reason.
const (
	SkipUnknownRecordType  = "unknown_record_type"
	SkipDuplicateReference = "duplicate_reference_logged"
	SkipIdentifierMismatch = "record_identifier_mismatch"
	SkipParseError         = "parse_error"
	SkipTransactionalError = "transactional_error"
)

// Sentinel errors surfaced by processors.
var (
	ErrIdentifierMismatch = errors.New("record identifier does not match processor type")
	ErrMissingRequired    = errors.New("required key field is absent")
)

// Outcome reports what a processor did with one raw line. Duplicate outcomes
// are successful: the line is marked processed pointing at the surviving
// record, with SkipReason documenting the collision.
type Outcome struct {
	Table      string
	RecordID   string
	Duplicate  bool
	SkipReason string
}

// RecordProcessor parses one raw line into its typed record and persists it
// inside the caller's transaction. Implementations must not commit or roll
// back; the dispatcher owns the one-line-one-transaction boundary.
type RecordProcessor interface {
	RecordType() string
	Description() string
	Process(ctx context.Context, tx pgx.Tx, line rawimport.RawImportLine) (*Outcome, error)
}

// Registry maps record type codes to their processors. Routing happens here
// instead of a per-type switch; the dispatcher only ever asks the registry.
type Registry struct {
	byType map[string]RecordProcessor
}

// NewRegistry wires up processors for all ten structured record types.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]RecordProcessor)}
	r.register(NewBatchHeaderProcessor())
	r.register(NewTransactionProcessor())
	r.register(NewPurchasingExt1Processor())
	r.register(NewPurchasingExt2Processor())
	for _, code := range []string{
		wire.RecordTypeEMV, wire.RecordTypeGeneral, wire.RecordTypeAdjustment,
		wire.RecordTypeDirectMktg, wire.RecordTypeCheck, wire.RecordTypeLodging,
	} {
		r.register(NewOtherRecordProcessor(code))
	}
	return r
}

func (r *Registry) register(p RecordProcessor) {
	r.byType[p.RecordType()] = p
}

// Lookup returns the processor for a record type, or nil for unknown codes
// (which the dispatcher routes to the skip handler).
func (r *Registry) Lookup(recordType string) RecordProcessor {
	return r.byType[recordType]
}

// requireField rejects a line whose key field is blank. Skipping early with a
// parse_error reason beats inserting a row that positional child lookups can
// never join back to.
func requireField(line rawimport.RawImportLine, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: line %d has blank %s", ErrMissingRequired, line.LineNumber, name)
	}
	return nil
}

// validateIdentifier guards against corrupt offsets: dispatch already groups
// by type, so a mismatch here means the line's bytes do not say what the
// classification said.
func validateIdentifier(line rawimport.RawImportLine, want string) error {
	got := wire.ExtractField(line.RawLine, 17, 19)
	if got != want {
		return fmt.Errorf("%w: line %d has identifier %q, processor expects %q",
			ErrIdentifierMismatch, line.LineNumber, got, want)
	}
	return nil
}
