package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/invoice-sentinel/internal/models"
)

func TestParseStructured(t *testing.T) {
	raw := map[string]interface{}{
		"vendor_name":    "Acme Industrial Supply",
		"invoice_number": "INV-2024-001",
		"invoice_date":   "2024-01-15",
		"total_amount":   830.0,
		"currency":       "EUR",
		"items": []interface{}{
			map[string]interface{}{
				"name":       "Widget",
				"quantity":   5.0,
				"unit_price": 150.0,
			},
			map[string]interface{}{
				"name":        "Gadget",
				"quantity":    2.0,
				"unit_price":  40.0,
				"total_price": 80.0,
			},
		},
	}

	parsed, err := ParseStructured(raw)
	require.NoError(t, err)

	assert.Equal(t, "Acme Industrial Supply", parsed.VendorName)
	assert.Equal(t, "INV-2024-001", parsed.InvoiceNumber)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), parsed.InvoiceDate)
	assert.Equal(t, 830.0, parsed.TotalAmount)
	assert.Equal(t, "EUR", parsed.Currency)

	require.Len(t, parsed.Items, 2)
	assert.Equal(t, 750.0, parsed.Items[0].TotalPrice) // derived
	assert.Equal(t, 80.0, parsed.Items[1].TotalPrice)
}

func TestParseStructuredDefaults(t *testing.T) {
	parsed, err := ParseStructured(map[string]interface{}{
		"vendor_name":    "Acme Industrial Supply",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-01-15T10:30:00Z",
		"total_amount":   100,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DefaultCurrency, parsed.Currency)
	assert.Empty(t, parsed.Items)
}

func TestParseStructuredMissingFields(t *testing.T) {
	_, err := ParseStructured(map[string]interface{}{
		"vendor_name": "Acme Industrial Supply",
	})

	var formatErr *models.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.ElementsMatch(t, []string{
		"missing invoice_number",
		"missing invoice_date",
		"missing total_amount",
	}, formatErr.Fields)
}

func TestParseStructuredInvalidFields(t *testing.T) {
	_, err := ParseStructured(map[string]interface{}{
		"vendor_name":    "",
		"invoice_number": 42,
		"invoice_date":   "not a date",
		"total_amount":   "lots",
		"items":          "not a list",
	})

	var formatErr *models.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.ElementsMatch(t, []string{
		"invalid vendor_name",
		"invalid invoice_number",
		"invalid invoice_date",
		"invalid total_amount",
		"invalid items",
	}, formatErr.Fields)
}

func TestParseStructuredInvalidItemEntry(t *testing.T) {
	_, err := ParseStructured(map[string]interface{}{
		"vendor_name":    "Acme Industrial Supply",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-01-15",
		"total_amount":   100.0,
		"items": []interface{}{
			map[string]interface{}{"quantity": 5.0},
		},
	})

	var formatErr *models.InvalidFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, []string{"invalid items[0]"}, formatErr.Fields)
}
