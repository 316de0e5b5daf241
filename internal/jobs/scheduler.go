package jobs

import (
	"fmt"
	"log"

	"MerchantMMS/internal/logger"
	"MerchantMMS/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	sweepConfig := NewDefaultSweepConfig()

	// Override sweep config from services.yaml if provided
	if s.config != nil {
		if schedule, ok := s.config["sweep_schedule"].(string); ok && schedule != "" {
			sweepConfig.Schedule = schedule
		}
		if batchSize, ok := s.config["sweep_batch_size"].(int); ok && batchSize > 0 {
			sweepConfig.BatchSize = batchSize
		}
	}

	if err := RunTDDFSweepScheduler(sweepConfig, s.db); err != nil {
		return fmt.Errorf("failed to start TDDF sweep scheduler: %v", err)
	}

	samplerConfig := NewDefaultSamplerConfig()
	if s.config != nil {
		if schedule, ok := s.config["metrics_schedule"].(string); ok && schedule != "" {
			samplerConfig.Schedule = schedule
		}
	}

	if err := RunMetricsSampler(samplerConfig, s.db); err != nil {
		return fmt.Errorf("failed to start TDDF metrics sampler: %v", err)
	}

	logger.GlobalLogger.LogAudit("Cron service started with TDDF sweep and metrics sampler")
	return nil
}

func (s *CronService) Stop() error {
	log.Println("Stopping cron service...")
	return nil
}
