package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/export"
	"github.com/finflow/invoice-sentinel/internal/models"
	"github.com/finflow/invoice-sentinel/internal/service"
)

// maxUploadBytes bounds how much of an uploaded document is read.
const maxUploadBytes = 20 << 20 // 20 MiB

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoices *service.InvoiceService
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(invoices *service.InvoiceService, logger *zap.Logger) *Handlers {
	return &Handlers{
		invoices: invoices,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// InvoiceResponse pairs a stored record with its latest evaluation.
type InvoiceResponse struct {
	Invoice *models.InvoiceRecord `json:"invoice"`
	Anomaly *models.AnomalyResult `json:"anomaly_result,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// UploadInvoice handles POST /api/invoices/upload (multipart form, field
// "file"). Extraction is total, so the only client errors are transport
// ones.
func (h *Handlers) UploadInvoice(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "missing file upload",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "unreadable file upload",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "unreadable file upload",
		})
		return
	}

	record, result, err := h.invoices.Upload(data, fileHeader.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    InvoiceResponse{Invoice: record, Anomaly: result},
	})
}

// CreateInvoice handles POST /api/invoices with a structured JSON body.
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid JSON body",
		})
		return
	}

	record, result, err := h.invoices.CreateStructured(raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    InvoiceResponse{Invoice: record, Anomaly: result},
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	records, err := h.invoices.List()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	record, err := h.invoices.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.invoices.Delete(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// AnalyzeInvoice handles POST /api/invoices/:id/analyze
func (h *Handlers) AnalyzeInvoice(c *gin.Context) {
	record, result, err := h.invoices.Analyze(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    InvoiceResponse{Invoice: record, Anomaly: result},
	})
}

// SubmitInvoice handles POST /api/invoices/:id/submit
func (h *Handlers) SubmitInvoice(c *gin.Context) {
	record, err := h.invoices.Submit(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// AnalyzeERPNextRequest names the ERPNext Purchase Invoice to analyze.
type AnalyzeERPNextRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required"`
}

// AnalyzeERPNextResponse summarizes the evaluation of an ERPNext-side
// invoice.
type AnalyzeERPNextResponse struct {
	InvoiceID  string   `json:"invoice_id"`
	VendorName string   `json:"vendor_name"`
	RiskScore  int      `json:"risk_score"`
	Status     string   `json:"status"` // "normal" or "suspicious"
	Reasons    []string `json:"reasons"`
}

// AnalyzeERPNextInvoice handles POST /api/erpnext/analyze: score an invoice
// that lives in ERPNext against its supplier's ERPNext history.
func (h *Handlers) AnalyzeERPNextInvoice(c *gin.Context) {
	var req AnalyzeERPNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invoice_id is required",
		})
		return
	}

	parsed, result, err := h.invoices.AnalyzeERPNextInvoice(req.InvoiceID)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := "normal"
	if result.IsSuspicious {
		status = "suspicious"
	}
	reasons := []string{result.Explanation}
	for _, anomaly := range result.Anomalies {
		reasons = append(reasons, anomaly.Description)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: AnalyzeERPNextResponse{
			InvoiceID:  req.InvoiceID,
			VendorName: parsed.VendorName,
			RiskScore:  result.RiskScore,
			Status:     status,
			Reasons:    reasons,
		},
	})
}

// ExportInvoices handles GET /api/invoices/export, streaming an XLSX
// workbook of all stored records.
func (h *Handlers) ExportInvoices(c *gin.Context) {
	records, err := h.invoices.List()
	if err != nil {
		h.fail(c, err)
		return
	}

	workbook, err := export.InvoicesXLSX(records)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		workbook)
}

// fail maps domain errors onto HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	var formatErr *models.InvalidFormatError

	switch {
	case errors.As(err, &formatErr):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: formatErr.Error()})
	case errors.Is(err, models.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
	case errors.Is(err, models.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "invoice already submitted"})
	case errors.Is(err, models.ErrForwardingDisabled):
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "erpnext forwarding is not configured"})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}
