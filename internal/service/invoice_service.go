// Package service orchestrates the invoice lifecycle: extraction, record
// persistence, anomaly evaluation, and ERPNext forwarding.
package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/anomaly"
	"github.com/finflow/invoice-sentinel/internal/extractor"
	"github.com/finflow/invoice-sentinel/internal/models"
)

// FieldExtractor turns raw document bytes into a structured invoice.
type FieldExtractor interface {
	Extract(data []byte, filename string) *models.ParsedInvoice
}

// RecordStore persists invoice records and serves vendor history.
type RecordStore interface {
	Create(record *models.InvoiceRecord) error
	GetByID(id string) (*models.InvoiceRecord, error)
	List() ([]*models.InvoiceRecord, error)
	GetByVendor(vendorName string) ([]*models.InvoiceRecord, error)
	UpdateRisk(id string, isSuspicious bool, riskScore int, explanation string) error
	UpdateSubmission(id string, erpnextName string) error
	Delete(id string) error
}

// Forwarder pushes accepted invoices into the ERP system and reads invoices
// back out of it.
type Forwarder interface {
	SubmitPurchaseInvoice(parsed *models.ParsedInvoice) (string, error)
	FetchPurchaseInvoice(name string) (*models.ParsedInvoice, error)
	FetchSupplierInvoices(supplier string, limit int) ([]*models.ParsedInvoice, error)
}

// InvoiceService wires the extraction and scoring core to storage and the
// ERP forwarder.
type InvoiceService struct {
	extractor FieldExtractor
	engine    *anomaly.Engine
	store     RecordStore
	forwarder Forwarder // nil when forwarding is not configured
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceService creates the invoice service. forwarder may be nil.
func NewInvoiceService(
	fieldExtractor FieldExtractor,
	engine *anomaly.Engine,
	store RecordStore,
	forwarder Forwarder,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		extractor: fieldExtractor,
		engine:    engine,
		store:     store,
		forwarder: forwarder,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload extracts an invoice from document bytes, stores it, and scores it
// against the vendor's history.
func (s *InvoiceService) Upload(data []byte, filename string) (*models.InvoiceRecord, *models.AnomalyResult, error) {
	parsed := s.extractor.Extract(data, filename)
	return s.admit(parsed)
}

// CreateStructured stores an already-structured invoice submission. Invalid
// input surfaces as *models.InvalidFormatError.
func (s *InvoiceService) CreateStructured(raw map[string]interface{}) (*models.InvoiceRecord, *models.AnomalyResult, error) {
	parsed, err := extractor.ParseStructured(raw)
	if err != nil {
		return nil, nil, err
	}
	return s.admit(parsed)
}

// admit wraps a parsed invoice into a fresh record, persists it, and runs
// the first evaluation.
func (s *InvoiceService) admit(parsed *models.ParsedInvoice) (*models.InvoiceRecord, *models.AnomalyResult, error) {
	record := &models.InvoiceRecord{
		ID:         uuid.NewString(),
		Parsed:     *parsed,
		UploadedAt: s.now(),
	}

	if err := s.store.Create(record); err != nil {
		return nil, nil, fmt.Errorf("failed to store invoice: %w", err)
	}

	result, err := s.evaluate(record)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Invoice admitted",
		zap.String("id", record.ID),
		zap.String("vendor", record.Parsed.VendorName),
		zap.Int("risk_score", result.RiskScore),
		zap.Bool("suspicious", result.IsSuspicious))
	return record, result, nil
}

// Analyze re-runs anomaly evaluation for a stored invoice.
func (s *InvoiceService) Analyze(id string) (*models.InvoiceRecord, *models.AnomalyResult, error) {
	record, err := s.store.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.evaluate(record)
	if err != nil {
		return nil, nil, err
	}
	return record, result, nil
}

// evaluate scores the record against its vendor history and writes the risk
// summary back onto the stored record.
func (s *InvoiceService) evaluate(record *models.InvoiceRecord) (*models.AnomalyResult, error) {
	vendorRecords, err := s.store.GetByVendor(record.Parsed.VendorName)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor history: %w", err)
	}

	// The candidate never scores against itself.
	history := make([]*models.InvoiceRecord, 0, len(vendorRecords))
	for _, rec := range vendorRecords {
		if rec.ID != record.ID {
			history = append(history, rec)
		}
	}

	result := s.engine.Evaluate(record, history)

	if err := s.store.UpdateRisk(record.ID, result.IsSuspicious, result.RiskScore, result.Explanation); err != nil {
		return nil, fmt.Errorf("failed to persist risk result: %w", err)
	}

	record.IsSuspicious = result.IsSuspicious
	score := result.RiskScore
	record.RiskScore = &score
	record.AnomalyExplanation = result.Explanation
	return result, nil
}

// Submit forwards a stored invoice to ERPNext and records the submission.
func (s *InvoiceService) Submit(id string) (*models.InvoiceRecord, error) {
	if s.forwarder == nil {
		return nil, models.ErrForwardingDisabled
	}

	record, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record.SubmittedToERPNext {
		return nil, models.ErrAlreadySubmitted
	}

	erpnextName, err := s.forwarder.SubmitPurchaseInvoice(&record.Parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to submit invoice to erpnext: %w", err)
	}

	if err := s.store.UpdateSubmission(record.ID, erpnextName); err != nil {
		return nil, err
	}

	record.SubmittedToERPNext = true
	record.ERPNextInvoiceName = erpnextName
	return record, nil
}

// AnalyzeERPNextInvoice scores an invoice that lives in ERPNext rather than
// the local store: it fetches the invoice and its supplier's history from
// ERPNext and evaluates the invoice against that history. Nothing is
// persisted locally.
func (s *InvoiceService) AnalyzeERPNextInvoice(invoiceName string) (*models.ParsedInvoice, *models.AnomalyResult, error) {
	if s.forwarder == nil {
		return nil, nil, models.ErrForwardingDisabled
	}

	parsed, err := s.forwarder.FetchPurchaseInvoice(invoiceName)
	if err != nil {
		return nil, nil, err
	}

	supplierInvoices, err := s.forwarder.FetchSupplierInvoices(parsed.VendorName, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch supplier history: %w", err)
	}

	candidate := &models.InvoiceRecord{
		ID:         invoiceName,
		Parsed:     *parsed,
		UploadedAt: parsed.InvoiceDate,
	}
	history := make([]*models.InvoiceRecord, 0, len(supplierInvoices))
	for _, hist := range supplierInvoices {
		// The candidate comes back in its own supplier history.
		if hist.InvoiceNumber == invoiceName {
			continue
		}
		history = append(history, &models.InvoiceRecord{
			ID:         "hist-" + hist.InvoiceNumber,
			Parsed:     *hist,
			UploadedAt: hist.InvoiceDate,
		})
	}

	result := s.engine.Evaluate(candidate, history)

	s.logger.Info("Analyzed ERPNext invoice",
		zap.String("invoice", invoiceName),
		zap.String("supplier", parsed.VendorName),
		zap.Int("risk_score", result.RiskScore),
		zap.Bool("suspicious", result.IsSuspicious))
	return parsed, result, nil
}

// Get fetches one stored invoice.
func (s *InvoiceService) Get(id string) (*models.InvoiceRecord, error) {
	return s.store.GetByID(id)
}

// List returns all stored invoices.
func (s *InvoiceService) List() ([]*models.InvoiceRecord, error) {
	return s.store.List()
}

// Delete removes a stored invoice.
func (s *InvoiceService) Delete(id string) error {
	return s.store.Delete(id)
}
