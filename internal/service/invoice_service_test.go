package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finflow/invoice-sentinel/internal/anomaly"
	"github.com/finflow/invoice-sentinel/internal/models"
)

// fakeExtractor returns a canned parse result for any input.
type fakeExtractor struct {
	parsed models.ParsedInvoice
}

func (f *fakeExtractor) Extract(data []byte, filename string) *models.ParsedInvoice {
	parsed := f.parsed
	return &parsed
}

// fakeStore is an in-memory RecordStore.
type fakeStore struct {
	records map[string]*models.InvoiceRecord
	order   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*models.InvoiceRecord{}}
}

func (f *fakeStore) Create(record *models.InvoiceRecord) error {
	clone := *record
	f.records[record.ID] = &clone
	f.order = append(f.order, record.ID)
	return nil
}

func (f *fakeStore) GetByID(id string) (*models.InvoiceRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeStore) List() ([]*models.InvoiceRecord, error) {
	var out []*models.InvoiceRecord
	for _, id := range f.order {
		clone := *f.records[id]
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeStore) GetByVendor(vendorName string) ([]*models.InvoiceRecord, error) {
	var out []*models.InvoiceRecord
	for _, id := range f.order {
		if f.records[id].Parsed.VendorName == vendorName {
			clone := *f.records[id]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRisk(id string, isSuspicious bool, riskScore int, explanation string) error {
	record, ok := f.records[id]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	record.IsSuspicious = isSuspicious
	record.RiskScore = &riskScore
	record.AnomalyExplanation = explanation
	return nil
}

func (f *fakeStore) UpdateSubmission(id string, erpnextName string) error {
	record, ok := f.records[id]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	record.SubmittedToERPNext = true
	record.ERPNextInvoiceName = erpnextName
	return nil
}

func (f *fakeStore) Delete(id string) error {
	if _, ok := f.records[id]; !ok {
		return models.ErrInvoiceNotFound
	}
	delete(f.records, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// fakeForwarder records the last submission and serves canned ERPNext data.
type fakeForwarder struct {
	name      string
	err       error
	submitted *models.ParsedInvoice

	invoice  *models.ParsedInvoice
	fetchErr error
	history  []*models.ParsedInvoice
	histErr  error
}

func (f *fakeForwarder) SubmitPurchaseInvoice(parsed *models.ParsedInvoice) (string, error) {
	f.submitted = parsed
	return f.name, f.err
}

func (f *fakeForwarder) FetchPurchaseInvoice(name string) (*models.ParsedInvoice, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	clone := *f.invoice
	return &clone, nil
}

func (f *fakeForwarder) FetchSupplierInvoices(supplier string, limit int) ([]*models.ParsedInvoice, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history, nil
}

func sampleParsed(vendor string, total float64) models.ParsedInvoice {
	return models.ParsedInvoice{
		VendorName:    vendor,
		InvoiceNumber: "INV-2024-001",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   total,
		Items: []models.InvoiceLineItem{
			models.NewLineItem("Widget", 5, total/5, 0),
		},
		Currency: "USD",
	}
}

func newService(ext FieldExtractor, store RecordStore, forwarder Forwarder) *InvoiceService {
	return NewInvoiceService(ext, anomaly.NewEngine(), store, forwarder, zap.NewNop())
}

func TestUploadStoresAndScoresFirstInvoice(t *testing.T) {
	store := newFakeStore()
	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, nil)

	record, result, err := svc.Upload([]byte("pdf bytes"), "invoice.pdf")
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.False(t, record.UploadedAt.IsZero())
	assert.Equal(t, 10, result.RiskScore)
	assert.False(t, result.IsSuspicious)

	stored, err := store.GetByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RiskScore)
	assert.Equal(t, 10, *stored.RiskScore)
	assert.Equal(t, result.Explanation, stored.AnomalyExplanation)
}

func TestUploadScoresAgainstVendorHistoryOnly(t *testing.T) {
	store := newFakeStore()

	// Seed history for a different vendor; the candidate should still be
	// treated as a first invoice.
	other := newService(&fakeExtractor{parsed: sampleParsed("Other Vendor", 5000)}, store, nil)
	_, _, err := other.Upload(nil, "other.pdf")
	require.NoError(t, err)

	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, nil)
	_, result, err := svc.Upload(nil, "invoice.pdf")
	require.NoError(t, err)

	assert.Equal(t, 10, result.RiskScore)
}

func TestAnalyzeExcludesCandidateFromHistory(t *testing.T) {
	store := newFakeStore()
	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, nil)

	record, _, err := svc.Upload(nil, "invoice.pdf")
	require.NoError(t, err)

	// Still the only invoice for the vendor, so re-analysis scores it as a
	// first invoice rather than against itself.
	_, result, err := svc.Analyze(record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, result.RiskScore)
}

func TestAnalyzeFlagsDeviantInvoice(t *testing.T) {
	store := newFakeStore()
	first := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 1000)}, store, nil)
	for i := 0; i < 2; i++ {
		_, _, err := first.Upload(nil, "history.pdf")
		require.NoError(t, err)
	}

	deviant := sampleParsed("Acme Industrial Supply", 1000)
	deviant.TotalAmount = 5000
	deviant.Items = nil
	svc := newService(&fakeExtractor{parsed: deviant}, store, nil)

	record, result, err := svc.Upload(nil, "deviant.pdf")
	require.NoError(t, err)

	assert.True(t, result.IsSuspicious)
	assert.GreaterOrEqual(t, result.RiskScore, 50)
	require.NotNil(t, record.RiskScore)
	assert.Equal(t, result.RiskScore, *record.RiskScore)
}

func TestAnalyzeUnknownID(t *testing.T) {
	svc := newService(&fakeExtractor{}, newFakeStore(), nil)

	_, _, err := svc.Analyze("missing")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestCreateStructured(t *testing.T) {
	store := newFakeStore()
	svc := newService(&fakeExtractor{}, store, nil)

	record, result, err := svc.CreateStructured(map[string]interface{}{
		"vendor_name":    "Acme Industrial Supply",
		"invoice_number": "INV-9",
		"invoice_date":   "2024-01-15",
		"total_amount":   100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Industrial Supply", record.Parsed.VendorName)
	assert.Equal(t, 10, result.RiskScore)
}

func TestCreateStructuredInvalidInput(t *testing.T) {
	store := newFakeStore()
	svc := newService(&fakeExtractor{}, store, nil)

	_, _, err := svc.CreateStructured(map[string]interface{}{"vendor_name": "Acme"})

	var formatErr *models.InvalidFormatError
	assert.ErrorAs(t, err, &formatErr)
	assert.Empty(t, store.records, "invalid input must not be persisted")
}

func TestSubmit(t *testing.T) {
	store := newFakeStore()
	forwarder := &fakeForwarder{name: "ACC-PINV-2024-00042"}
	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, forwarder)

	record, _, err := svc.Upload(nil, "invoice.pdf")
	require.NoError(t, err)

	submitted, err := svc.Submit(record.ID)
	require.NoError(t, err)

	assert.True(t, submitted.SubmittedToERPNext)
	assert.Equal(t, "ACC-PINV-2024-00042", submitted.ERPNextInvoiceName)
	require.NotNil(t, forwarder.submitted)
	assert.Equal(t, "Acme Industrial Supply", forwarder.submitted.VendorName)

	// Second submission of the same record is rejected.
	_, err = svc.Submit(record.ID)
	assert.ErrorIs(t, err, models.ErrAlreadySubmitted)
}

func TestSubmitWithoutForwarder(t *testing.T) {
	svc := newService(&fakeExtractor{}, newFakeStore(), nil)

	_, err := svc.Submit("any")
	assert.ErrorIs(t, err, models.ErrForwardingDisabled)
}

func TestSubmitForwarderFailureLeavesRecordUnsubmitted(t *testing.T) {
	store := newFakeStore()
	forwarder := &fakeForwarder{err: errors.New("erpnext unreachable")}
	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, forwarder)

	record, _, err := svc.Upload(nil, "invoice.pdf")
	require.NoError(t, err)

	_, err = svc.Submit(record.ID)
	require.Error(t, err)

	stored, err := store.GetByID(record.ID)
	require.NoError(t, err)
	assert.False(t, stored.SubmittedToERPNext)
}

func TestAnalyzeERPNextInvoiceWithoutForwarder(t *testing.T) {
	svc := newService(&fakeExtractor{}, newFakeStore(), nil)

	_, _, err := svc.AnalyzeERPNextInvoice("ACC-PINV-2024-00001")
	assert.ErrorIs(t, err, models.ErrForwardingDisabled)
}

func TestAnalyzeERPNextInvoiceMissing(t *testing.T) {
	forwarder := &fakeForwarder{fetchErr: models.ErrInvoiceNotFound}
	svc := newService(&fakeExtractor{}, newFakeStore(), forwarder)

	_, _, err := svc.AnalyzeERPNextInvoice("ACC-PINV-2024-00099")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestAnalyzeERPNextInvoiceExcludesItselfFromHistory(t *testing.T) {
	candidate := sampleParsed("Acme Industrial Supply", 750)
	candidate.InvoiceNumber = "ACC-PINV-2024-00001"

	// The supplier history returned by ERPNext includes the candidate itself;
	// with nothing else it must score as a first invoice.
	forwarder := &fakeForwarder{
		invoice: &candidate,
		history: []*models.ParsedInvoice{&candidate},
	}
	svc := newService(&fakeExtractor{}, newFakeStore(), forwarder)

	parsed, result, err := svc.AnalyzeERPNextInvoice("ACC-PINV-2024-00001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Industrial Supply", parsed.VendorName)
	assert.Equal(t, 10, result.RiskScore)
	assert.False(t, result.IsSuspicious)
}

func TestAnalyzeERPNextInvoiceFlagsDeviant(t *testing.T) {
	deviant := sampleParsed("Acme Industrial Supply", 1000)
	deviant.InvoiceNumber = "ACC-PINV-2024-00003"
	deviant.TotalAmount = 5000
	deviant.Items = nil

	hist1 := sampleParsed("Acme Industrial Supply", 1000)
	hist1.InvoiceNumber = "ACC-PINV-2024-00001"
	hist2 := sampleParsed("Acme Industrial Supply", 1000)
	hist2.InvoiceNumber = "ACC-PINV-2024-00002"

	forwarder := &fakeForwarder{
		invoice: &deviant,
		history: []*models.ParsedInvoice{&hist1, &hist2},
	}
	svc := newService(&fakeExtractor{}, newFakeStore(), forwarder)

	_, result, err := svc.AnalyzeERPNextInvoice("ACC-PINV-2024-00003")
	require.NoError(t, err)
	assert.True(t, result.IsSuspicious)
	assert.GreaterOrEqual(t, result.RiskScore, 50)
}

func TestAnalyzeERPNextInvoiceHistoryFetchFailure(t *testing.T) {
	candidate := sampleParsed("Acme Industrial Supply", 750)
	forwarder := &fakeForwarder{
		invoice: &candidate,
		histErr: errors.New("erpnext unreachable"),
	}
	svc := newService(&fakeExtractor{}, newFakeStore(), forwarder)

	_, _, err := svc.AnalyzeERPNextInvoice("ACC-PINV-2024-00001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supplier history")
}

func TestDeleteRemovesRecord(t *testing.T) {
	store := newFakeStore()
	svc := newService(&fakeExtractor{parsed: sampleParsed("Acme Industrial Supply", 750)}, store, nil)

	record, _, err := svc.Upload(nil, "invoice.pdf")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(record.ID))

	_, err = svc.Get(record.ID)
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)

	assert.ErrorIs(t, svc.Delete(record.ID), models.ErrInvoiceNotFound)
}
