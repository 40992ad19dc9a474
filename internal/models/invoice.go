package models

import (
	"math"
	"time"
)

// DefaultCurrency is used when an invoice carries no currency of its own.
const DefaultCurrency = "USD"

// InvoiceLineItem represents a single line on an invoice.
type InvoiceLineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// NewLineItem builds a line item, clamping invalid quantities to zero and
// deriving the total from quantity and unit price when none was supplied.
// The derivation happens only here; the stored total is never reconciled
// afterwards.
func NewLineItem(name string, quantity, unitPrice, totalPrice float64) InvoiceLineItem {
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		quantity = 0
	}
	if totalPrice == 0 && quantity != 0 && unitPrice != 0 {
		totalPrice = Round2(quantity * unitPrice)
	}
	return InvoiceLineItem{
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: totalPrice,
	}
}

// CalculatedTotal returns quantity x unit price rounded to cents. It may
// diverge from the stored TotalPrice.
func (i InvoiceLineItem) CalculatedTotal() float64 {
	return Round2(i.Quantity * i.UnitPrice)
}

// ParsedInvoice is the structured representation of an invoice, independent
// of the source document format.
type ParsedInvoice struct {
	VendorName    string            `json:"vendor_name"`
	InvoiceNumber string            `json:"invoice_number"`
	InvoiceDate   time.Time         `json:"invoice_date"`
	TotalAmount   float64           `json:"total_amount"`
	Items         []InvoiceLineItem `json:"items"`
	Currency      string            `json:"currency"`
}

// InvoiceRecord wraps a ParsedInvoice with lifecycle and risk metadata.
// Parsed is immutable after creation; a resubmission creates a new record.
type InvoiceRecord struct {
	ID                 string        `json:"id"`
	Parsed             ParsedInvoice `json:"parsed_data"`
	UploadedAt         time.Time     `json:"uploaded_at"`
	IsSuspicious       bool          `json:"is_suspicious"`
	RiskScore          *int          `json:"risk_score,omitempty"`
	AnomalyExplanation string        `json:"anomaly_explanation,omitempty"`
	SubmittedToERPNext bool          `json:"submitted_to_erpnext"`
	ERPNextInvoiceName string        `json:"erpnext_invoice_name,omitempty"`
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
