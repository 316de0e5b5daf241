package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"MerchantMMS/api/tddf/dispatch"
	"MerchantMMS/api/tddf/metrics"
	"MerchantMMS/api/tddf/processors"
	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/recovery"
	"MerchantMMS/internal/config"
	"MerchantMMS/internal/logger"
)

// SweepConfig holds configuration for the pending-line sweep job
type SweepConfig struct {
	Schedule  string // Cron schedule (default: every 5 minutes)
	BatchSize int    // Max pending lines dispatched per sweep
	TimeZone  string // Timezone for scheduling
}

// NewDefaultSweepConfig creates a new SweepConfig with default values
func NewDefaultSweepConfig() *SweepConfig {
	schedule := os.Getenv("TDDF_SWEEP_SCHEDULE")
	if schedule == "" {
		schedule = config.DefaultSweepSchedule
	}

	batchSize := config.DefaultDispatchBatchSize
	if bs := os.Getenv("TDDF_SWEEP_BATCH_SIZE"); bs != "" {
		if parsed, err := strconv.Atoi(bs); err == nil && parsed > 0 {
			batchSize = parsed
		}
	}

	return &SweepConfig{
		Schedule:  schedule,
		BatchSize: batchSize,
		TimeZone:  config.DefaultTimeZone,
	}
}

// RunTDDFSweepScheduler starts the cron job that drains the pending raw-line
// backlog. The sweep is also the crash-recovery path: any line left pending by
// an interrupted run is picked up on the next tick.
func RunTDDFSweepScheduler(cfg *SweepConfig, db *pgxpool.Pool) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultSweepSchedule
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = config.DefaultDispatchBatchSize
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Invalid timezone %s, falling back to UTC: %v", cfg.TimeZone, err))
	}

	store := rawimport.NewStore(db)
	dispatcher := dispatch.NewDispatcher(db, store, processors.NewRegistry(), metrics.NewStore(db))
	ctrl := recovery.NewController(db, store, dispatcher)

	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.Schedule, func() {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Starting TDDF pending sweep at %s", time.Now().In(loc).Format(time.RFC3339)))
		if err := sweepPendingLines(store, dispatcher, ctrl, cfg.BatchSize); err != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("TDDF pending sweep failed: %v", err))
			log.Printf("ERROR: TDDF pending sweep failed: %v", err)
		} else {
			logger.GlobalLogger.LogAudit("TDDF pending sweep completed successfully")
		}
	})

	if err != nil {
		return fmt.Errorf("unable to schedule TDDF pending sweep: %v", err)
	}

	c.Start()
	logger.GlobalLogger.LogAudit(fmt.Sprintf("TDDF sweep scheduler started with schedule: %s (timezone: %s)", cfg.Schedule, cfg.TimeZone))
	log.Printf("[AUDIT] TDDF sweep scheduler started: %s (%s)", cfg.Schedule, cfg.TimeZone)

	return nil
}

func sweepPendingLines(store *rawimport.Store, dispatcher *dispatch.Dispatcher, ctrl *recovery.Controller, batchSize int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	pending, err := store.PendingCount(ctx, uuid.Nil)
	if err != nil {
		return fmt.Errorf("failed to count pending lines: %w", err)
	}
	if pending == 0 {
		return nil
	}

	result, err := dispatcher.ProcessPending(ctx, uuid.Nil, batchSize)
	if err != nil {
		return err
	}
	logger.GlobalLogger.LogAudit(fmt.Sprintf(
		"TDDF sweep dispatched backlog: processed=%d skipped=%d errors=%d in %dms",
		result.TotalProcessed, result.TotalSkipped, result.TotalErrors, result.ProcessingTimeMs))

	stuck, err := ctrl.StuckLines(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for stuck lines: %w", err)
	}
	if len(stuck) > 0 {
		log.Printf("[AUDIT] TDDF sweep found %d stuck lines, oldest pending since %s",
			len(stuck), stuck[0].PendingSince.Format(time.RFC3339))
	}
	return nil
}
