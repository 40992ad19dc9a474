package extractor

import (
	"strings"
	"time"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// tableNameStoplist filters header echoes that show up as item names in
// sloppy grids.
var tableNameStoplist = map[string]bool{
	"item":        true,
	"item name":   true,
	"description": true,
	"product":     true,
	"name":        true,
}

// fromTables extracts an invoice from table grids. A grid qualifies as an
// items table when its header row announces both a name-like and a
// quantity-like column; cells are resolved by header keyword, not position.
func (e *Extractor) fromTables(in input) (*models.ParsedInvoice, bool) {
	var tables [][][]string
	for _, page := range in.pages {
		tables = append(tables, page.Tables...)
	}
	if len(tables) == 0 {
		return nil, false
	}

	// Free text is the more reliable source for metadata; table cells are
	// the fallback.
	meta := e.metadataFromText(in.fullText)

	var items []models.InvoiceLineItem
	for _, table := range tables {
		if len(table) < 2 {
			continue
		}
		items = append(items, itemsFromTable(table)...)
		e.metadataFromTable(table, &meta)
	}

	if len(items) == 0 {
		return nil, false
	}

	total := 0.0
	for _, item := range items {
		total += item.TotalPrice
	}
	if override, ok := totalFromTables(tables); ok {
		total = override
	}

	return &models.ParsedInvoice{
		VendorName:    meta.vendor,
		InvoiceNumber: meta.number,
		InvoiceDate:   meta.date,
		TotalAmount:   total,
		Items:         items,
		Currency:      e.cfg.DefaultCurrency,
	}, true
}

// invoiceMetadata carries the header fields resolved around the items table.
type invoiceMetadata struct {
	vendor    string
	number    string
	date      time.Time
	numberSet bool
	dateSet   bool
}

func (e *Extractor) metadataFromText(text string) invoiceMetadata {
	meta := invoiceMetadata{
		vendor: e.cfg.PlaceholderVendor,
		number: e.newInvoiceNumber(),
		date:   e.now(),
	}
	if text == "" {
		return meta
	}
	if num, ok := findInvoiceNumber(text); ok {
		meta.number = num
		meta.numberSet = true
	}
	if date, ok := findDate(text); ok {
		meta.date = date
		meta.dateSet = true
	}
	if vendor, ok := findVendor(text); ok {
		meta.vendor = vendor
	}
	return meta
}

// itemsFromTable pulls line items out of one qualifying grid.
func itemsFromTable(table [][]string) []models.InvoiceLineItem {
	headers := table[0]
	if !tableQualifies(headers) {
		return nil
	}

	columns := make([]ColumnKind, len(headers))
	for i, h := range headers {
		columns[i] = ClassifyHeader(h)
	}

	var items []models.InvoiceLineItem
	for _, row := range table[1:] {
		if len(row) < 2 {
			continue
		}

		var name string
		var qty, unitPrice, total float64
		var haveQty, havePrice, haveTotal bool

		for i, cell := range row {
			if i >= len(columns) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			switch columns[i] {
			case ColumnName:
				name = cell
			case ColumnQuantity:
				if v, ok := parseAmount(cell); ok {
					qty, haveQty = v, true
				}
			case ColumnUnitPrice:
				if v, ok := parseAmount(cell); ok {
					unitPrice, havePrice = v, true
				}
			case ColumnTotal:
				if v, ok := parseAmount(cell); ok {
					total, haveTotal = v, true
				}
			}
		}

		if name == "" || tableNameStoplist[strings.ToLower(name)] {
			continue
		}
		if !haveQty || qty <= 0 {
			continue
		}
		if !havePrice || unitPrice <= 0 {
			if haveTotal && total > 0 {
				unitPrice = models.Round2(total / qty)
			} else {
				continue
			}
		}

		// The stored total is always recomputed; a table-supplied total only
		// serves to back-derive the unit price.
		items = append(items, models.NewLineItem(name, qty, unitPrice, models.Round2(qty*unitPrice)))
	}

	return items
}

func tableQualifies(headers []string) bool {
	hasName, hasQty := false, false
	for _, h := range headers {
		lh := strings.ToLower(h)
		if containsAny(lh, nameKeywords) {
			hasName = true
		}
		if containsAny(lh, quantityKeywords) {
			hasQty = true
		}
	}
	return hasName && hasQty
}

// metadataFromTable scans the first five rows of a grid for label/value
// adjacency, filling only fields the page text did not resolve.
func (e *Extractor) metadataFromTable(table [][]string, meta *invoiceMetadata) {
	limit := len(table)
	if limit > 5 {
		limit = 5
	}

	for _, row := range table[:limit] {
		rowText := strings.ToLower(strings.Join(row, " "))

		if !meta.numberSet && strings.Contains(rowText, "invoice") && strings.Contains(rowText, "number") {
			for i, cell := range row {
				lc := strings.ToLower(cell)
				if strings.Contains(lc, "invoice") && strings.Contains(lc, "number") {
					if i+1 < len(row) && strings.TrimSpace(row[i+1]) != "" {
						meta.number = strings.TrimSpace(row[i+1])
						meta.numberSet = true
					}
					break
				}
			}
		}
		if !meta.numberSet {
			for _, cell := range row {
				if m := bareInvoicePattern.FindString(cell); m != "" {
					meta.number = normalizeInvoiceNumber(m)
					meta.numberSet = true
					break
				}
			}
		}

		if strings.Contains(rowText, "vendor") {
			for i, cell := range row {
				if strings.Contains(strings.ToLower(cell), "vendor") && i+1 < len(row) {
					if v := strings.TrimSpace(row[i+1]); v != "" {
						meta.vendor = v
					}
					break
				}
			}
		}

		if !meta.dateSet && strings.Contains(rowText, "date") {
			for i, cell := range row {
				lc := strings.ToLower(cell)
				if !strings.Contains(lc, "date") {
					continue
				}
				candidate := ""
				if i+1 < len(row) {
					candidate = strings.TrimSpace(row[i+1])
				} else if idx := strings.Index(cell, ":"); idx >= 0 {
					candidate = strings.TrimSpace(cell[idx+1:])
				}
				if t, ok := parseDate(candidate); ok {
					meta.date = t
					meta.dateSet = true
				}
				break
			}
		}
		if !meta.dateSet {
			for _, cell := range row {
				if m := standaloneDateMatch.FindString(cell); m != "" {
					if t, ok := parseDate(m); ok {
						meta.date = t
						meta.dateSet = true
						break
					}
				}
			}
		}
	}
}

// totalFromTables looks for a row carrying the literal "total" token next to
// a currency-prefixed value. The last match wins.
func totalFromTables(tables [][][]string) (float64, bool) {
	var total float64
	var found bool
	for _, table := range tables {
		for _, row := range table {
			rowText := strings.ToLower(strings.Join(row, " "))
			if !strings.Contains(rowText, "total") {
				continue
			}
			for _, cell := range row {
				if !strings.Contains(cell, "$") {
					continue
				}
				if v, ok := parseAmount(cell); ok {
					total = v
					found = true
				}
			}
		}
	}
	return total, found
}
