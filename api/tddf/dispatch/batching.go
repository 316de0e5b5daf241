package dispatch

import (
	"sort"

	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/wire"
	"MerchantMMS/internal/config"
)

// perRecordMillis is the measured average wall-clock cost of one record of
// each type, dominated by the per-line transaction round trip. DT carries the
// duplicate-detection conflict path, P1/P2 the wider field extraction.
var perRecordMillis = map[string]int{
	wire.RecordTypeTransaction:    8,
	wire.RecordTypePurchasingExt1: 5,
	wire.RecordTypePurchasingExt2: 5,
	wire.RecordTypeBatchHeader:    3,
}

const defaultRecordMillis = 2

// typePriority orders record types for dispatch. Transaction detail first so
// duplicate collisions surface early, headers and extensions next, the long
// tail after, unknown always last.
var typePriority = map[string]int{
	wire.RecordTypeTransaction:    0,
	wire.RecordTypeBatchHeader:    1,
	wire.RecordTypePurchasingExt1: 2,
	wire.RecordTypePurchasingExt2: 3,
	wire.RecordTypeGeneral:        4,
	wire.RecordTypeEMV:            5,
	wire.RecordTypeAdjustment:     6,
	wire.RecordTypeDirectMktg:     7,
	wire.RecordTypeCheck:          8,
	wire.RecordTypeLodging:        9,
}

const unknownPriority = 100

// OptimalBatchSize returns the sub-batch size targeting roughly
// config.SubBatchTargetMillis of work per sub-batch, never below the floor.
func OptimalBatchSize(recordType string) int {
	weight, ok := perRecordMillis[recordType]
	if !ok {
		weight = defaultRecordMillis
	}
	size := config.SubBatchTargetMillis / weight
	if size < config.SubBatchFloor {
		size = config.SubBatchFloor
	}
	return size
}

// groupByType buckets lines per record type, preserving the incoming order
// (file id, line number) inside each bucket.
func groupByType(lines []rawimport.RawImportLine) map[string][]rawimport.RawImportLine {
	groups := make(map[string][]rawimport.RawImportLine)
	for _, line := range lines {
		groups[line.RecordType] = append(groups[line.RecordType], line)
	}
	return groups
}

// orderedTypes returns the group keys in dispatch priority order.
func orderedTypes(groups map[string][]rawimport.RawImportLine) []string {
	types := make([]string, 0, len(groups))
	for rt := range groups {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool {
		pi, pj := priorityOf(types[i]), priorityOf(types[j])
		if pi != pj {
			return pi < pj
		}
		return types[i] < types[j]
	})
	return types
}

func priorityOf(recordType string) int {
	if p, ok := typePriority[recordType]; ok {
		return p
	}
	return unknownPriority
}

// subBatches splits a group into chunks of at most size lines.
func subBatches(lines []rawimport.RawImportLine, size int) [][]rawimport.RawImportLine {
	if size <= 0 {
		size = config.SubBatchFloor
	}
	var out [][]rawimport.RawImportLine
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		out = append(out, lines[start:end])
	}
	return out
}
