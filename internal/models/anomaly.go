package models

// AnomalyType identifies one of the anomaly detectors.
type AnomalyType string

// Anomaly type constants
const (
	AnomalyPriceIncrease     AnomalyType = "price_increase"
	AnomalyQuantityDeviation AnomalyType = "quantity_deviation"
	AnomalyNewItem           AnomalyType = "new_item"
	AnomalyAmountDeviation   AnomalyType = "amount_deviation"
)

// AnomalyDetail describes a single detected anomaly signal.
type AnomalyDetail struct {
	Type        AnomalyType `json:"type"`
	ItemName    string      `json:"item_name,omitempty"`
	Severity    int         `json:"severity"` // 0-100
	Description string      `json:"description"`
}

// AnomalyResult is the outcome of evaluating one invoice against its vendor
// history. It is a computed value and is never persisted as its own entity;
// only the summary fields are copied onto the InvoiceRecord.
type AnomalyResult struct {
	IsSuspicious bool            `json:"is_suspicious"`
	RiskScore    int             `json:"risk_score"` // 0-100
	Anomalies    []AnomalyDetail `json:"anomalies"`
	Explanation  string          `json:"explanation"`
}
