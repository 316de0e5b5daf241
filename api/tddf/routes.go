package tddf

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"MerchantMMS/api/tddf/dispatch"
	"MerchantMMS/api/tddf/metrics"
	"MerchantMMS/api/tddf/processors"
	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/recovery"
)

func StartTDDFService(pool *pgxpool.Pool) {
	store := rawimport.NewStore(pool)
	metricsStore := metrics.NewStore(pool)
	dispatcher := dispatch.NewDispatcher(pool, store, processors.NewRegistry(), metricsStore)
	ctrl := recovery.NewController(pool, store, dispatcher)

	h := &Handlers{
		pool:       pool,
		store:      store,
		dispatcher: dispatcher,
		recovery:   ctrl,
		metrics:    metricsStore,
	}

	router := mux.NewRouter()
	router.HandleFunc("/tddf/ping", h.Ping).Methods("GET")
	router.HandleFunc("/tddf/upload", requireAPIKey(h.Upload)).Methods("POST")
	router.HandleFunc("/tddf/batch-status", requireAPIKey(h.BatchStatus)).Methods("GET")
	router.HandleFunc("/tddf/process-pending", requireAPIKey(h.ProcessPending)).Methods("POST")
	router.HandleFunc("/tddf/skipped-summary", requireAPIKey(h.SkippedSummary)).Methods("GET")
	router.HandleFunc("/tddf/skipped-report", requireAPIKey(h.SkippedReport)).Methods("GET")
	router.HandleFunc("/tddf/reprocess", requireAPIKey(h.Reprocess)).Methods("POST")
	router.HandleFunc("/tddf/retry-file", requireAPIKey(h.RetryFile)).Methods("POST")
	router.HandleFunc("/tddf/stuck-lines", requireAPIKey(h.StuckLines)).Methods("GET")
	router.HandleFunc("/tddf/transaction", requireAPIKey(h.TransactionDetail)).Methods("GET")
	router.HandleFunc("/tddf/throughput", requireAPIKey(h.Throughput)).Methods("GET")

	log.Println("TDDF Service started on :6151")
	if err := http.ListenAndServe(":6151", router); err != nil {
		log.Fatalf("TDDF Service failed: %v", err)
	}
}
