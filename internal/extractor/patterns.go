package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColumnKind classifies a table header cell by purpose.
type ColumnKind int

// Column kinds resolved from header keywords
const (
	ColumnUnknown ColumnKind = iota
	ColumnName
	ColumnQuantity
	ColumnUnitPrice
	ColumnTotal
)

// Header keyword lists. Matching is by substring, not position, so column
// order in the source table does not matter.
var (
	nameKeywords     = []string{"item", "name"}
	quantityKeywords = []string{"quantity", "qty"}
	totalKeywords    = []string{"total"}
	priceKeywords    = []string{"unit", "price"}
)

// ClassifyHeader maps a header cell to the column purpose it announces.
func ClassifyHeader(header string) ColumnKind {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return ColumnUnknown
	}
	if containsAny(h, totalKeywords) && (strings.Contains(h, "amount") || strings.Contains(h, "price")) {
		return ColumnTotal
	}
	if containsAny(h, nameKeywords) && !strings.Contains(h, "price") {
		return ColumnName
	}
	if containsAny(h, quantityKeywords) {
		return ColumnQuantity
	}
	if strings.Contains(h, "unit") || (strings.Contains(h, "price") && !strings.Contains(h, "total")) {
		return ColumnUnitPrice
	}
	return ColumnUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Metadata patterns, in priority order. The first match wins.
var (
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice\s+Number[:\s]+([A-Z0-9\-]+)`),
		regexp.MustCompile(`(?i)Invoice\s*#?[:\s]*([A-Z0-9\-]+)`),
		regexp.MustCompile(`(?i)INV[-\s]*([0-9]{4}[-\s]*[0-9]+)`),
		regexp.MustCompile(`(?i)INV[-\s]*([0-9\-]+)`),
	}

	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Vendor\s+Name[:\s]+([A-Za-z][A-Za-z &,\.]*)`),
		regexp.MustCompile(`(?i)Vendor[:\s]+([A-Za-z][A-Za-z &,\.]*)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice\s+Date[:\s]+([A-Za-z]+\s+\d{1,2},\s+\d{4})`),
		regexp.MustCompile(`(?i)Invoice\s+Date[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)Date[:\s]+([A-Za-z]+\s+\d{1,2},\s+\d{4})`),
		regexp.MustCompile(`(?i)Date[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`([A-Za-z]+\s+\d{1,2},\s+\d{4})`),
		regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
	}

	totalOverridePattern = regexp.MustCompile(`(?i)TOTAL[:\s]*\$?([\d,]+\.?\d*)`)

	bareInvoicePattern  = regexp.MustCompile(`(?i)INV[-\s]*[0-9][0-9\-\s]*`)
	standaloneDateMatch = regexp.MustCompile(`([A-Za-z]+\s+\d{1,2},\s+\d{4})`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// dateFormats accepted for invoice dates, tried in order.
var dateFormats = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"01-02-2006",
}

// parseDate tries the accepted date layouts in order.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeInvoiceNumber collapses whitespace to dashes and enforces the
// INV- prefix every extracted number carries.
func normalizeInvoiceNumber(raw string) string {
	num := whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), "-")
	if !strings.HasPrefix(strings.ToUpper(num), "INV") {
		return "INV-" + num
	}
	return num
}

// parseAmount strips currency symbols and thousands separators before the
// numeric parse.
func parseAmount(s string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// findInvoiceNumber scans text for an invoice number, normalized.
func findInvoiceNumber(text string) (string, bool) {
	for _, pattern := range invoiceNumberPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			return normalizeInvoiceNumber(m[1]), true
		}
	}
	return "", false
}

// findVendor scans text for a vendor name.
func findVendor(text string) (string, bool) {
	for _, pattern := range vendorPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			name := strings.TrimSpace(m[1])
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// findDate scans text for an invoice date.
func findDate(text string) (time.Time, bool) {
	for _, pattern := range datePatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			if t, ok := parseDate(m[1]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// findTotalOverride looks for an explicit TOTAL: $X statement.
func findTotalOverride(text string) (float64, bool) {
	if m := totalOverridePattern.FindStringSubmatch(text); len(m) > 1 {
		return parseAmount(m[1])
	}
	return 0, false
}
