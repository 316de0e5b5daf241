package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"MerchantMMS/api/tddf/metrics"
	"MerchantMMS/internal/config"
	"MerchantMMS/internal/logger"
)

// SamplerConfig holds configuration for the periodic pipeline snapshot
type SamplerConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultSamplerConfig() *SamplerConfig {
	schedule := os.Getenv("TDDF_METRICS_SCHEDULE")
	if schedule == "" {
		schedule = config.DefaultMetricsSchedule
	}
	return &SamplerConfig{
		Schedule: schedule,
		TimeZone: config.DefaultTimeZone,
	}
}

// RunMetricsSampler starts the cron job that logs pipeline status counts.
func RunMetricsSampler(cfg *SamplerConfig, db *pgxpool.Pool) error {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	store := metrics.NewStore(db)
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := store.SnapshotPipeline(ctx); err != nil {
			log.Printf("ERROR: TDDF metrics snapshot failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule TDDF metrics sampler: %v", err)
	}

	c.Start()
	logger.GlobalLogger.LogAudit(fmt.Sprintf("TDDF metrics sampler started with schedule: %s (timezone: %s)", cfg.Schedule, cfg.TimeZone))
	return nil
}
