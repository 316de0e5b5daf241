package tddf

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"MerchantMMS/api"
	"MerchantMMS/api/tddf/archive"
	"MerchantMMS/api/tddf/dispatch"
	"MerchantMMS/api/tddf/metrics"
	"MerchantMMS/api/tddf/processors"
	"MerchantMMS/api/tddf/rawimport"
	"MerchantMMS/api/tddf/recovery"
)

// maxUploadBytes caps a single TDDF upload. Daily detail files run large but
// bounded; this is well above anything the processors emit.
const maxUploadBytes = 256 << 20

type Handlers struct {
	pool       *pgxpool.Pool
	store      *rawimport.Store
	dispatcher *dispatch.Dispatcher
	recovery   *recovery.Controller
	metrics    *metrics.Store
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"service": "tddf",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Upload accepts a TDDF file as multipart form field "file" or as the raw
// request body, stores every line as a raw import row, and optionally kicks
// off dispatch when auto_process=true.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	filename, content, err := readUploadContent(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(content) == 0 {
		api.RespondWithError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	fileID := uuid.New()
	result, err := h.store.StoreFileAsRawLines(r.Context(), fileID, filename, string(content))
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store TDDF file: %v", err))
		return
	}
	if result.RowsStored == 0 && len(result.Errors) > 0 {
		msg := fmt.Sprintf("no lines stored, %d insert errors", len(result.Errors))
		if err := h.store.SetFileStatus(r.Context(), fileID, rawimport.FileStatusFailed, &msg); err != nil {
			log.Printf("ERROR: Failed to mark file %s failed: %v", fileID, err)
		}
		api.RespondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store TDDF file: %s", msg))
		return
	}

	archiveURL := ""
	if url, err := archive.ArchiveOriginal(r.Context(), fileID, filename, content); err != nil {
		log.Printf("ERROR: S3 archival of file %s failed: %v", fileID, err)
	} else {
		archiveURL = url
		if err := h.store.SetArchiveURL(r.Context(), fileID, url); err != nil {
			log.Printf("ERROR: Failed to record archive URL for file %s: %v", fileID, err)
		}
	}

	payload := map[string]interface{}{
		"file_id":            result.FileID,
		"filename":           filename,
		"rows_stored":        result.RowsStored,
		"record_type_counts": result.RecordTypeCounts,
		"errors":             result.Errors,
	}
	if archiveURL != "" {
		payload["archive_url"] = archiveURL
	}

	if r.URL.Query().Get("auto_process") == "true" {
		dispatchResult, err := h.dispatcher.ProcessPending(r.Context(), fileID, result.RowsStored)
		if err != nil {
			log.Printf("ERROR: Auto-process of file %s failed: %v", fileID, err)
		} else {
			payload["dispatch"] = dispatchResult
		}
	}
	api.RespondWithPayload(w, true, "", payload)
}

func readUploadContent(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("multipart form is missing the \"file\" field")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		return header.Filename, content, nil
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read request body: %w", err)
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "tddf-upload.txt"
	}
	return filename, content, nil
}

// BatchStatus reports either one file's pipeline state (?file_id=) or the
// fleet-wide file status counts plus pending backlog.
func (h *Handlers) BatchStatus(w http.ResponseWriter, r *http.Request) {
	fileIDParam := r.URL.Query().Get("file_id")
	if fileIDParam == "" {
		statusCounts, err := h.store.FileStatusCounts(r.Context())
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pending, err := h.store.PendingCount(r.Context(), uuid.Nil)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"file_statuses": statusCounts,
			"pending_lines": pending,
		})
		return
	}

	fileID, err := uuid.Parse(fileIDParam)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid file_id")
		return
	}

	file, err := h.store.GetFile(r.Context(), fileID)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if file == nil {
		api.RespondWithError(w, http.StatusNotFound, "file not found")
		return
	}

	lineStatuses := map[string]int{}
	rows, err := h.pool.Query(r.Context(), `
		SELECT processing_status, COUNT(*)
		FROM mms.tddf_raw_imports
		WHERE source_file_id = $1
		GROUP BY processing_status`, fileID)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lineStatuses[st] = n
	}
	if err := rows.Err(); err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := map[string]interface{}{
		"file_id":       file.ID,
		"filename":      file.Filename,
		"status":        file.Status,
		"line_count":    file.LineCount,
		"uploaded_at":   file.UploadedAt.Format(time.RFC3339),
		"line_statuses": lineStatuses,
	}
	if file.ArchiveURL != nil {
		payload["archive_url"] = *file.ArchiveURL
	}
	if file.ErrorMessage != nil {
		payload["error_message"] = *file.ErrorMessage
	}
	api.RespondWithPayload(w, true, "", payload)
}

type processPendingRequest struct {
	FileID    string `json:"file_id"`
	BatchSize int    `json:"batch_size"`
}

func (h *Handlers) ProcessPending(w http.ResponseWriter, r *http.Request) {
	var req processPendingRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			api.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	fileID := uuid.Nil
	if req.FileID != "" {
		parsed, err := uuid.Parse(req.FileID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "invalid file_id")
			return
		}
		fileID = parsed
	}
	result, err := h.dispatcher.ProcessPending(r.Context(), fileID, req.BatchSize)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", result)
}

func (h *Handlers) SkippedSummary(w http.ResponseWriter, r *http.Request) {
	groups, err := h.recovery.SkippedSummary(r.Context())
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{"groups": groups})
}

func (h *Handlers) SkippedReport(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	buf, err := h.recovery.BuildSkippedReport(r.Context(), r.URL.Query().Get("reason"), limit)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := fmt.Sprintf("tddf-skipped-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("ERROR: Failed to stream skipped report: %v", err)
	}
}

type reprocessRequest struct {
	ReasonCategory string `json:"reason_category"`
	RecordType     string `json:"record_type"`
	MaxRecords     int    `json:"max_records"`
}

func (h *Handlers) Reprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, reset, err := h.recovery.ReprocessByReason(r.Context(), req.ReasonCategory, req.RecordType, req.MaxRecords)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"reset_lines": reset,
		"dispatch":    result,
	})
}

type retryFileRequest struct {
	FileID string `json:"file_id"`
}

func (h *Handlers) RetryFile(w http.ResponseWriter, r *http.Request) {
	var req retryFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fileID, err := uuid.Parse(req.FileID)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid file_id")
		return
	}
	reset, err := h.recovery.RetryFailedFile(r.Context(), fileID)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"file_id":     fileID,
		"reset_lines": reset,
	})
}

func (h *Handlers) StuckLines(w http.ResponseWriter, r *http.Request) {
	stuck, err := h.recovery.StuckLines(r.Context())
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"count": len(stuck),
		"lines": stuck,
	})
}

// TransactionDetail returns one stored DT transaction by reference number,
// with its P1/P2 purchasing extensions resolved positionally when present.
func (h *Handlers) TransactionDetail(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference_number")
	if reference == "" {
		api.RespondWithError(w, http.StatusBadRequest, "reference_number is required")
		return
	}

	dt, err := processors.FindTransactionByReference(r.Context(), h.pool, reference)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dt == nil {
		api.RespondWithError(w, http.StatusNotFound, "transaction not found")
		return
	}

	payload := map[string]interface{}{
		"reference_number":        dt.ReferenceNumber,
		"merchant_account_number": dt.MerchantAccount,
		"merchant_name":           dt.MerchantName,
		"transaction_date":        formatDatePtr(dt.TransactionDate),
		"transaction_amount":      decimalString(dt.TransactionAmount),
		"auth_amount":             decimalString(dt.AuthAmount),
		"auth_code":               dt.AuthCode,
		"card_type":               dt.CardType,
		"mcc_code":                dt.MCCCode,
		"debit_credit_indicator":  dt.DebitCreditIndicator,
		"source_file_id":          dt.SourceFileID,
		"source_row_number":       dt.SourceRowNumber,
	}

	if p1, err := processors.FindPurchasingExt1(r.Context(), h.pool, dt); err != nil {
		log.Printf("ERROR: Purchasing ext1 lookup for reference %s failed: %v", reference, err)
	} else if p1 != nil {
		payload["purchasing_ext1"] = map[string]interface{}{
			"purchase_identifier": p1.PurchaseIdentifier,
			"customer_code":       p1.CustomerCode,
			"tax_amount":          decimalString(p1.TaxAmount),
			"freight_amount":      decimalString(p1.FreightAmount),
			"duty_amount":         decimalString(p1.DutyAmount),
			"order_date":          formatDatePtr(p1.OrderDate),
			"destination_zip":     p1.DestinationZip,
			"destination_country": p1.DestinationCountry,
		}
	}
	if p2, err := processors.FindPurchasingExt2(r.Context(), h.pool, dt); err != nil {
		log.Printf("ERROR: Purchasing ext2 lookup for reference %s failed: %v", reference, err)
	} else if p2 != nil {
		payload["purchasing_ext2"] = map[string]interface{}{
			"item_description": p2.ItemDescription,
			"item_quantity":    decimalString(p2.ItemQuantity),
			"unit_cost":        decimalString(p2.UnitCost),
			"line_item_total":  decimalString(p2.LineItemTotal),
			"discount_amount":  decimalString(p2.DiscountAmount),
			"product_code":     p2.ProductCode,
			"unit_of_measure":  p2.UnitOfMeasure,
			"commodity_code":   p2.ItemCommodityCode,
			"vat_rate_applied": decimalString(p2.VATRateApplied),
		}
	}

	api.RespondWithPayload(w, true, "", payload)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func (h *Handlers) Throughput(w http.ResponseWriter, r *http.Request) {
	windowMinutes := 60
	if v := r.URL.Query().Get("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowMinutes = n
		}
	}
	t, err := h.metrics.ThroughputOverWindow(r.Context(), time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.RespondWithPayload(w, true, "", t)
}
