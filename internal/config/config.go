package config

import "time"

const (
	DefaultTimeZone = "America/Chicago"

	// RawInsertBatchSize caps how many raw lines go into one pgx batch during
	// ingestion; keeps memory bounded on 10,000+ line files.
	RawInsertBatchSize = 50

	// DefaultDispatchBatchSize is how many pending lines one process-pending
	// call pulls when the caller does not choose.
	DefaultDispatchBatchSize = 1000

	// SubBatchTargetMillis is the estimated work budget per record-type
	// sub-batch; sub-batch sizes are derived from per-type weights against it.
	SubBatchTargetMillis = 5000

	// SubBatchFloor is the minimum sub-batch size; smaller sub-batches waste
	// scheduling overhead.
	SubBatchFloor = 50

	// Pending sweep defaults; overridable via services.yaml or env.
	DefaultSweepSchedule   = "*/5 * * * *"
	DefaultMetricsSchedule = "*/10 * * * *"

	// StuckLineThreshold is how long a line may sit pending before the
	// recovery controller surfaces it.
	StuckLineThreshold = 30 * time.Minute
)
