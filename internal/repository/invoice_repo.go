package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// InvoiceRepository persists invoice records and serves vendor history.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, vendor_name, invoice_number, invoice_date, total_amount, currency,
	items, uploaded_at, is_suspicious, risk_score, anomaly_explanation,
	submitted_to_erpnext, erpnext_invoice_name
`

// Create stores a new invoice record.
func (r *InvoiceRepository) Create(record *models.InvoiceRecord) error {
	items, err := json.Marshal(record.Parsed.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	query := `
		INSERT INTO invoice_records (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		record.ID,
		record.Parsed.VendorName,
		record.Parsed.InvoiceNumber,
		record.Parsed.InvoiceDate,
		record.Parsed.TotalAmount,
		record.Parsed.Currency,
		string(items),
		record.UploadedAt,
		record.IsSuspicious,
		record.RiskScore,
		record.AnomalyExplanation,
		record.SubmittedToERPNext,
		record.ERPNextInvoiceName,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice record", zap.Error(err))
		return fmt.Errorf("failed to create invoice record: %w", err)
	}
	return nil
}

// GetByID fetches one invoice record.
func (r *InvoiceRepository) GetByID(id string) (*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoice_records WHERE id = ?`
	record, err := scanRecord(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrInvoiceNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice record: %w", err)
	}
	return record, nil
}

// List returns all invoice records, most recently uploaded first.
func (r *InvoiceRepository) List() ([]*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoice_records ORDER BY uploaded_at DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByVendor returns all records for a vendor, matched case-insensitively,
// ordered by upload time.
func (r *InvoiceRepository) GetByVendor(vendorName string) ([]*models.InvoiceRecord, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoice_records
		WHERE LOWER(vendor_name) = LOWER(?)
		ORDER BY uploaded_at ASC
	`
	rows, err := r.db.Query(query, vendorName)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UpdateRisk writes the risk summary fields back onto a stored record.
func (r *InvoiceRepository) UpdateRisk(id string, isSuspicious bool, riskScore int, explanation string) error {
	query := `
		UPDATE invoice_records
		SET is_suspicious = ?, risk_score = ?, anomaly_explanation = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, isSuspicious, riskScore, explanation, id)
	if err != nil {
		r.logger.Error("Failed to update risk fields", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update risk fields: %w", err)
	}
	return requireRow(result)
}

// UpdateSubmission marks a record as forwarded to ERPNext.
func (r *InvoiceRepository) UpdateSubmission(id string, erpnextName string) error {
	query := `
		UPDATE invoice_records
		SET submitted_to_erpnext = 1, erpnext_invoice_name = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, erpnextName, id)
	if err != nil {
		r.logger.Error("Failed to update submission state", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update submission state: %w", err)
	}
	return requireRow(result)
}

// Delete removes an invoice record.
func (r *InvoiceRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM invoice_records WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete invoice record", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice record: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrInvoiceNotFound
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.InvoiceRecord, error) {
	var record models.InvoiceRecord
	var itemsJSON string
	var riskScore sql.NullInt64
	var invoiceDate, uploadedAt time.Time

	err := row.Scan(
		&record.ID,
		&record.Parsed.VendorName,
		&record.Parsed.InvoiceNumber,
		&invoiceDate,
		&record.Parsed.TotalAmount,
		&record.Parsed.Currency,
		&itemsJSON,
		&uploadedAt,
		&record.IsSuspicious,
		&riskScore,
		&record.AnomalyExplanation,
		&record.SubmittedToERPNext,
		&record.ERPNextInvoiceName,
	)
	if err != nil {
		return nil, err
	}

	record.Parsed.InvoiceDate = invoiceDate
	record.UploadedAt = uploadedAt
	if riskScore.Valid {
		score := int(riskScore.Int64)
		record.RiskScore = &score
	}
	if err := json.Unmarshal([]byte(itemsJSON), &record.Parsed.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*models.InvoiceRecord, error) {
	var records []*models.InvoiceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
