package tddf

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"MerchantMMS/internal/serviceiface"
)

type TDDFService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewTDDFService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &TDDFService{config: cfg, pool: pool}
}

func (s *TDDFService) Name() string {
	return "tddf"
}

func (s *TDDFService) Start() error {
	go StartTDDFService(s.pool)
	return nil
}

func (s *TDDFService) Stop() error {
	// Implement stop logic if needed
	return nil
}
