package extractor

import (
	"math"
	"strings"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// textNameStoplist rejects candidate item names that are really summary or
// header rows.
var textNameStoplist = []string{"total", "subtotal", "tax", "discount", "item", "description"}

// connectorWords are dropped from candidate names; they join quantities to
// prices in prose-style rows ("3 x 19.99 each").
var connectorWords = map[string]bool{
	"x":    true,
	"at":   true,
	"each": true,
	"per":  true,
	"unit": true,
}

// fromText extracts an invoice from concatenated page text. Runs only when
// the table strategy produced nothing and the document has enough text to
// be worth scanning; without any item rows it reports failure so the
// synthetic fallback takes over.
func (e *Extractor) fromText(in input) (*models.ParsedInvoice, bool) {
	text := strings.TrimSpace(in.fullText)
	if len(text) < e.cfg.MinTextLength {
		return nil, false
	}

	items := itemsFromLines(strings.Split(text, "\n"))
	if len(items) == 0 {
		return nil, false
	}

	meta := e.metadataFromText(text)

	total := 0.0
	for _, item := range items {
		total += item.TotalPrice
	}
	if override, ok := findTotalOverride(text); ok {
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

// itemsFromLines scans text lines for item rows: at least one non-numeric
// fragment (the candidate name) and at least one numeric token.
func itemsFromLines(lines []string) []models.InvoiceLineItem {
	var items []models.InvoiceLineItem

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "item") || strings.Contains(lower, "description") {
			continue // header row
		}

		words := strings.Fields(line)
		if len(words) < 2 {
			continue
		}

		var nameParts []string
		var numbers []float64
		for _, word := range words {
			if v, ok := parseAmount(word); ok {
				numbers = append(numbers, v)
				continue
			}
			clean := strings.ToLower(strings.Trim(word, "$,"))
			if clean != "" && !connectorWords[clean] {
				nameParts = append(nameParts, word)
			}
		}

		if len(nameParts) == 0 || len(numbers) == 0 {
			continue
		}
		name := strings.Join(nameParts, " ")
		if containsAny(strings.ToLower(name), textNameStoplist) {
			continue
		}

		item, ok := itemFromNumbers(name, numbers)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items
}

// itemFromNumbers resolves quantity, unit price and total from the numeric
// tokens of one row. One number alone carries too little information to
// build an item.
func itemFromNumbers(name string, numbers []float64) (models.InvoiceLineItem, bool) {
	var qty, unitPrice, total float64

	switch {
	case len(numbers) >= 3:
		qty, unitPrice, total = numbers[0], numbers[1], numbers[2]
	case len(numbers) == 2:
		if numbers[0] < 1000 {
			// quantity then unit price
			qty, unitPrice = numbers[0], numbers[1]
			total = models.Round2(qty * unitPrice)
		} else {
			// unit price then total; back-derive the quantity
			unitPrice, total = numbers[0], numbers[1]
			if unitPrice > 0 {
				qty = roundTo(total/unitPrice, 1)
			}
		}
	default:
		return models.InvoiceLineItem{}, false
	}

	if qty <= 0 {
		return models.InvoiceLineItem{}, false
	}
	if unitPrice <= 0 && total > 0 {
		unitPrice = models.Round2(total / qty)
	}
	if total <= 0 && unitPrice > 0 {
		total = models.Round2(qty * unitPrice)
	}
	if unitPrice <= 0 || total <= 0 {
		return models.InvoiceLineItem{}, false
	}

	return models.NewLineItem(name, qty, unitPrice, models.Round2(total)), true
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return math.Round(v*shift) / shift
}
