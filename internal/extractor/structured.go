package extractor

import (
	"fmt"
	"time"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// requiredFields must all be present in structured invoice input.
var requiredFields = []string{"vendor_name", "invoice_number", "invoice_date", "total_amount"}

// ParseStructured builds a ParsedInvoice from already-structured input, for
// callers that bypass document extraction. Unlike Extract there is no
// fallback: missing or mistyped required fields fail with an
// InvalidFormatError enumerating the offending keys.
func ParseStructured(raw map[string]interface{}) (*models.ParsedInvoice, error) {
	var bad []string

	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			bad = append(bad, fmt.Sprintf("missing %s", field))
		}
	}
	if len(bad) > 0 {
		return nil, &models.InvalidFormatError{Fields: bad}
	}

	vendor, ok := asString(raw["vendor_name"])
	if !ok || vendor == "" {
		bad = append(bad, "invalid vendor_name")
	}
	number, ok := asString(raw["invoice_number"])
	if !ok || number == "" {
		bad = append(bad, "invalid invoice_number")
	}
	date, ok := asDate(raw["invoice_date"])
	if !ok {
		bad = append(bad, "invalid invoice_date")
	}
	total, ok := asFloat(raw["total_amount"])
	if !ok {
		bad = append(bad, "invalid total_amount")
	}

	var items []models.InvoiceLineItem
	if rawItems, present := raw["items"]; present {
		list, ok := rawItems.([]interface{})
		if !ok {
			bad = append(bad, "invalid items")
		} else {
			for i, entry := range list {
				item, ok := itemFromMap(entry)
				if !ok {
					bad = append(bad, fmt.Sprintf("invalid items[%d]", i))
					continue
				}
				items = append(items, item)
			}
		}
	}

	if len(bad) > 0 {
		return nil, &models.InvalidFormatError{Fields: bad}
	}

	currency := models.DefaultCurrency
	if c, ok := asString(raw["currency"]); ok && c != "" {
		currency = c
	}

	return &models.ParsedInvoice{
		VendorName:    vendor,
		InvoiceNumber: number,
		InvoiceDate:   date,
		TotalAmount:   total,
		Items:         items,
		Currency:      currency,
	}, nil
}

func itemFromMap(entry interface{}) (models.InvoiceLineItem, bool) {
	m, ok := entry.(map[string]interface{})
	if !ok {
		return models.InvoiceLineItem{}, false
	}
	name, ok := asString(m["name"])
	if !ok || name == "" {
		return models.InvoiceLineItem{}, false
	}
	qty, _ := asFloat(m["quantity"])
	unitPrice, _ := asFloat(m["unit_price"])
	totalPrice, _ := asFloat(m["total_price"])
	return models.NewLineItem(name, qty, unitPrice, totalPrice), true
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asFloat accepts the numeric types JSON decoding produces.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asDate accepts a time.Time or an ISO-8601 string.
func asDate(v interface{}) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
