// Package erpnext forwards invoices to an ERPNext instance over its REST
// API. It is a thin field-mapping layer: ParsedInvoice in, Purchase Invoice
// document out.
package erpnext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// Config holds ERPNext connection settings
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Client talks to an ERPNext instance.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an ERPNext client. Frappe expects
// "Authorization: token api_key:api_secret".
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authHeader: fmt.Sprintf("token %s:%s", strings.TrimSpace(cfg.APIKey), strings.TrimSpace(cfg.APISecret)),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// purchaseInvoiceDoc is the ERPNext Purchase Invoice payload shape.
type purchaseInvoiceDoc struct {
	Supplier    string                   `json:"supplier"`
	PostingDate string                   `json:"posting_date"`
	BillNo      string                   `json:"bill_no"`
	Currency    string                   `json:"currency"`
	Items       []purchaseInvoiceItemDoc `json:"items"`
}

type purchaseInvoiceItemDoc struct {
	ItemName string  `json:"item_name"`
	ItemCode string  `json:"item_code,omitempty"`
	Qty      float64 `json:"qty"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

type resourceResponse struct {
	Data json.RawMessage `json:"data"`
}

// errResourceNotFound marks a 404 from ERPNext, so lookups can distinguish
// "missing" from a real failure.
var errResourceNotFound = errors.New("erpnext resource not found")

// EnsureSupplier creates the vendor's Supplier record when ERPNext does not
// know it yet.
func (c *Client) EnsureSupplier(name string) error {
	_, err := c.get("/api/resource/Supplier/"+url.PathEscape(name), nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errResourceNotFound) {
		return err
	}

	_, err = c.post("/api/resource/Supplier", map[string]string{
		"supplier_name":  name,
		"supplier_type":  "Company",
		"supplier_group": "All Supplier Groups",
	})
	if err != nil {
		return fmt.Errorf("failed to create supplier: %w", err)
	}
	c.logger.Info("Created supplier in ERPNext", zap.String("supplier", name))
	return nil
}

// SubmitPurchaseInvoice maps a parsed invoice onto an ERPNext Purchase
// Invoice and creates it. Returns the ERPNext document name.
func (c *Client) SubmitPurchaseInvoice(parsed *models.ParsedInvoice) (string, error) {
	// Supplier creation is best effort; a concurrent submit may have created
	// it already and the invoice insert will surface any real problem.
	if err := c.EnsureSupplier(parsed.VendorName); err != nil {
		c.logger.Warn("Failed to ensure supplier",
			zap.String("supplier", parsed.VendorName),
			zap.Error(err))
	}

	doc := purchaseInvoiceDoc{
		Supplier:    parsed.VendorName,
		PostingDate: parsed.InvoiceDate.Format("2006-01-02"),
		BillNo:      parsed.InvoiceNumber,
		Currency:    parsed.Currency,
	}
	for _, item := range parsed.Items {
		doc.Items = append(doc.Items, purchaseInvoiceItemDoc{
			ItemName: item.Name,
			Qty:      item.Quantity,
			Rate:     item.UnitPrice,
			Amount:   item.TotalPrice,
		})
	}

	raw, err := c.post("/api/resource/Purchase Invoice", doc)
	if err != nil {
		return "", err
	}

	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("failed to decode erpnext response: %w", err)
	}

	c.logger.Info("Submitted purchase invoice to ERPNext",
		zap.String("supplier", parsed.VendorName),
		zap.String("erpnext_name", created.Name))
	return created.Name, nil
}

// supplierInvoiceDoc is the subset of Purchase Invoice fields fetched for
// vendor history.
type supplierInvoiceDoc struct {
	Name        string                   `json:"name"`
	Supplier    string                   `json:"supplier"`
	PostingDate string                   `json:"posting_date"`
	GrandTotal  float64                  `json:"grand_total"`
	Currency    string                   `json:"currency"`
	Items       []purchaseInvoiceItemDoc `json:"items"`
}

// FetchPurchaseInvoice fetches one Purchase Invoice by its ERPNext document
// name and maps it back to a ParsedInvoice. A missing document surfaces as
// models.ErrInvoiceNotFound.
func (c *Client) FetchPurchaseInvoice(name string) (*models.ParsedInvoice, error) {
	raw, err := c.get("/api/resource/Purchase Invoice/"+url.PathEscape(name), nil)
	if errors.Is(err, errResourceNotFound) {
		return nil, models.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc supplierInvoiceDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode purchase invoice: %w", err)
	}
	return mapSupplierInvoice(doc), nil
}

// FetchSupplierInvoices returns the supplier's prior invoices mapped back to
// ParsedInvoice, most recent first.
func (c *Client) FetchSupplierInvoices(supplier string, limit int) ([]*models.ParsedInvoice, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("filters", fmt.Sprintf(`[["supplier", "=", %q]]`, supplier))
	params.Set("fields", `["name", "supplier", "posting_date", "grand_total", "currency", "items"]`)
	params.Set("limit_page_length", fmt.Sprintf("%d", limit))
	params.Set("order_by", "posting_date desc")

	raw, err := c.get("/api/resource/Purchase Invoice", params)
	if err != nil {
		return nil, err
	}

	var docs []supplierInvoiceDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode supplier invoices: %w", err)
	}

	invoices := make([]*models.ParsedInvoice, 0, len(docs))
	for _, doc := range docs {
		invoices = append(invoices, mapSupplierInvoice(doc))
	}
	return invoices, nil
}

func mapSupplierInvoice(doc supplierInvoiceDoc) *models.ParsedInvoice {
	date, err := time.Parse("2006-01-02", doc.PostingDate)
	if err != nil {
		date = time.Time{}
	}
	currency := doc.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	parsed := &models.ParsedInvoice{
		VendorName:    doc.Supplier,
		InvoiceNumber: doc.Name,
		InvoiceDate:   date,
		TotalAmount:   doc.GrandTotal,
		Currency:      currency,
	}
	for _, item := range doc.Items {
		name := item.ItemName
		if name == "" {
			name = item.ItemCode
		}
		parsed.Items = append(parsed.Items, models.NewLineItem(name, item.Qty, item.Rate, item.Amount))
	}
	return parsed
}

func (c *Client) get(endpoint string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + pathEscapeEndpoint(endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build erpnext request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(endpoint string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal erpnext payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+pathEscapeEndpoint(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build erpnext request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erpnext request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read erpnext response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("erpnext credentials rejected: check ERPNEXT_API_KEY and ERPNEXT_API_SECRET")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errResourceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("ERPNext API error",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 1000)))
		return nil, fmt.Errorf("erpnext returned status %d", resp.StatusCode)
	}

	var wrapper resourceResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode erpnext response: %w", err)
	}
	return wrapper.Data, nil
}

// pathEscapeEndpoint escapes spaces in doctype paths ("Purchase Invoice").
func pathEscapeEndpoint(endpoint string) string {
	return strings.ReplaceAll(endpoint, " ", "%20")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
