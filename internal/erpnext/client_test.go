package erpnext

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:   server.URL,
		APIKey:    "key",
		APISecret: "secret",
	}, zap.NewNop())
}

func TestSubmitPurchaseInvoice(t *testing.T) {
	var gotAuth string
	var gotDoc purchaseInvoiceDoc

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/resource/Supplier/Acme Industrial Supply":
			w.Write([]byte(`{"data": {"name": "Acme Industrial Supply"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/resource/Purchase Invoice":
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
			w.Write([]byte(`{"data": {"name": "ACC-PINV-2024-00042"}}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	parsed := &models.ParsedInvoice{
		VendorName:    "Acme Industrial Supply",
		InvoiceNumber: "INV-2024-001",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   830,
		Currency:      "USD",
		Items: []models.InvoiceLineItem{
			models.NewLineItem("Widget", 5, 150, 0),
		},
	}

	name, err := client.SubmitPurchaseInvoice(parsed)
	require.NoError(t, err)

	assert.Equal(t, "ACC-PINV-2024-00042", name)
	assert.Equal(t, "token key:secret", gotAuth)
	assert.Equal(t, "Acme Industrial Supply", gotDoc.Supplier)
	assert.Equal(t, "2024-01-15", gotDoc.PostingDate)
	assert.Equal(t, "INV-2024-001", gotDoc.BillNo)
	require.Len(t, gotDoc.Items, 1)
	assert.Equal(t, "Widget", gotDoc.Items[0].ItemName)
	assert.Equal(t, 5.0, gotDoc.Items[0].Qty)
	assert.Equal(t, 150.0, gotDoc.Items[0].Rate)
	assert.Equal(t, 750.0, gotDoc.Items[0].Amount)
}

func TestSubmitPurchaseInvoiceCreatesMissingSupplier(t *testing.T) {
	var createdSupplier map[string]string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/resource/Supplier/New Vendor":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/api/resource/Supplier":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdSupplier))
			w.Write([]byte(`{"data": {"name": "New Vendor"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/resource/Purchase Invoice":
			w.Write([]byte(`{"data": {"name": "ACC-PINV-2024-00043"}}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	name, err := client.SubmitPurchaseInvoice(&models.ParsedInvoice{VendorName: "New Vendor"})
	require.NoError(t, err)

	assert.Equal(t, "ACC-PINV-2024-00043", name)
	require.NotNil(t, createdSupplier)
	assert.Equal(t, "New Vendor", createdSupplier["supplier_name"])
	assert.Equal(t, "All Supplier Groups", createdSupplier["supplier_group"])
}

func TestEnsureSupplierEscapesName(t *testing.T) {
	// A "?" in the supplier name must stay part of the path, not start a
	// query string.
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resource/Supplier/Widgets? Yes Ltd", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"name": "Widgets? Yes Ltd"}}`))
	})

	require.NoError(t, client.EnsureSupplier("Widgets? Yes Ltd"))
}

func TestSubmitPurchaseInvoiceUnauthorized(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.SubmitPurchaseInvoice(&models.ParsedInvoice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials rejected")
}

func TestSubmitPurchaseInvoiceServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"exc_type": "ValidationError"}`))
	})

	_, err := client.SubmitPurchaseInvoice(&models.ParsedInvoice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchSupplierInvoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		query := r.URL.Query()
		assert.Equal(t, `[["supplier", "=", "Acme Industrial Supply"]]`, query.Get("filters"))
		assert.Equal(t, "25", query.Get("limit_page_length"))
		assert.Equal(t, "posting_date desc", query.Get("order_by"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{
				"name": "ACC-PINV-2024-00001",
				"supplier": "Acme Industrial Supply",
				"posting_date": "2024-01-15",
				"grand_total": 830,
				"currency": "USD",
				"items": [
					{"item_name": "Widget", "qty": 5, "rate": 150, "amount": 750},
					{"item_code": "GADGET-01", "qty": 2, "rate": 40, "amount": 80}
				]
			}
		]}`))
	})

	invoices, err := client.FetchSupplierInvoices("Acme Industrial Supply", 25)
	require.NoError(t, err)

	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, "Acme Industrial Supply", inv.VendorName)
	assert.Equal(t, "ACC-PINV-2024-00001", inv.InvoiceNumber)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), inv.InvoiceDate)
	assert.Equal(t, 830.0, inv.TotalAmount)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Widget", inv.Items[0].Name)
	// item_code fills in when the human-readable name is absent
	assert.Equal(t, "GADGET-01", inv.Items[1].Name)
}

func TestFetchPurchaseInvoice(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/resource/Purchase Invoice/ACC-PINV-2024-00001", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {
			"name": "ACC-PINV-2024-00001",
			"supplier": "Acme Industrial Supply",
			"posting_date": "2024-01-15",
			"grand_total": 830,
			"currency": "EUR",
			"items": [{"item_name": "Widget", "qty": 5, "rate": 150, "amount": 750}]
		}}`))
	})

	parsed, err := client.FetchPurchaseInvoice("ACC-PINV-2024-00001")
	require.NoError(t, err)

	assert.Equal(t, "Acme Industrial Supply", parsed.VendorName)
	assert.Equal(t, "ACC-PINV-2024-00001", parsed.InvoiceNumber)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), parsed.InvoiceDate)
	assert.Equal(t, 830.0, parsed.TotalAmount)
	assert.Equal(t, "EUR", parsed.Currency)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "Widget", parsed.Items[0].Name)
}

func TestFetchPurchaseInvoiceMissing(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchPurchaseInvoice("ACC-PINV-2024-09999")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestFetchSupplierInvoicesDefaultLimit(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit_page_length"))
		w.Write([]byte(`{"data": []}`))
	})

	invoices, err := client.FetchSupplierInvoices("Acme Industrial Supply", 0)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}
