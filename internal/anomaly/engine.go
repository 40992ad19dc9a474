// Package anomaly scores an invoice for fraud/error risk against the
// vendor's invoice history. Evaluation is a pure computation: fixed
// thresholds, no mutation of inputs, deterministic output.
package anomaly

import (
	"fmt"
	"math"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// Detection thresholds. These are fixed constants; there is no online
// tuning.
const (
	priceIncreaseThresholdPct = 20.0
	quantityAvgMultiplier     = 2.0
	quantityMaxMultiplier     = 1.5
	amountDeviationPct        = 30.0
	suspiciousScore           = 50
	firstInvoiceScore         = 10
)

// Engine evaluates invoices against vendor history.
type Engine struct{}

// NewEngine creates an anomaly engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the four detectors in fixed order and aggregates their
// findings into a single risk score. The caller supplies history already
// filtered to the candidate's vendor, excluding the candidate itself.
func (e *Engine) Evaluate(candidate *models.InvoiceRecord, history []*models.InvoiceRecord) *models.AnomalyResult {
	if len(history) == 0 {
		// Low confidence rather than proven safety: a constant low-risk
		// result avoids averaging over zero records.
		return &models.AnomalyResult{
			IsSuspicious: false,
			RiskScore:    firstInvoiceScore,
			Anomalies:    nil,
			Explanation:  "No historical data available for this vendor. First invoice from this vendor.",
		}
	}

	var anomalies []models.AnomalyDetail
	anomalies = append(anomalies, checkPriceIncreases(candidate, history)...)
	anomalies = append(anomalies, checkQuantityDeviations(candidate, history)...)
	anomalies = append(anomalies, checkNewItems(candidate, history)...)
	anomalies = append(anomalies, checkAmountDeviation(candidate, history)...)

	riskScore := aggregateRiskScore(anomalies)

	return &models.AnomalyResult{
		IsSuspicious: riskScore >= suspiciousScore,
		RiskScore:    riskScore,
		Anomalies:    anomalies,
		Explanation:  explain(anomalies, riskScore),
	}
}

// checkPriceIncreases flags items whose unit price exceeds the historical
// average by more than the threshold.
func checkPriceIncreases(candidate *models.InvoiceRecord, history []*models.InvoiceRecord) []models.AnomalyDetail {
	prices := make(map[string][]float64)
	for _, hist := range history {
		for _, item := range hist.Parsed.Items {
			prices[item.Name] = append(prices[item.Name], item.UnitPrice)
		}
	}

	var anomalies []models.AnomalyDetail
	for _, item := range candidate.Parsed.Items {
		observed, seen := prices[item.Name]
		if !seen {
			continue
		}
		avg := mean(observed)
		if avg == 0 {
			continue
		}
		increasePct := (item.UnitPrice - avg) / avg * 100
		if increasePct > priceIncreaseThresholdPct {
			anomalies = append(anomalies, models.AnomalyDetail{
				Type:     models.AnomalyPriceIncrease,
				ItemName: item.Name,
				Severity: clampSeverity(30 + (increasePct-priceIncreaseThresholdPct)*2),
				Description: fmt.Sprintf("Price increased by %.1f%% (from avg $%.2f to $%.2f)",
					increasePct, avg, item.UnitPrice),
			})
		}
	}
	return anomalies
}

// checkQuantityDeviations flags quantities far above the historical average
// or the historical maximum. The two branches are mutually exclusive per
// item; the average branch takes precedence.
func checkQuantityDeviations(candidate *models.InvoiceRecord, history []*models.InvoiceRecord) []models.AnomalyDetail {
	quantities := make(map[string][]float64)
	for _, hist := range history {
		for _, item := range hist.Parsed.Items {
			quantities[item.Name] = append(quantities[item.Name], item.Quantity)
		}
	}

	var anomalies []models.AnomalyDetail
	for _, item := range candidate.Parsed.Items {
		observed, seen := quantities[item.Name]
		if !seen {
			continue
		}
		avg := mean(observed)
		historicalMax := max64(observed)

		switch {
		case avg > 0 && item.Quantity > avg*quantityAvgMultiplier:
			deviationPct := (item.Quantity - avg) / avg * 100
			anomalies = append(anomalies, models.AnomalyDetail{
				Type:     models.AnomalyQuantityDeviation,
				ItemName: item.Name,
				Severity: clampSeverity(25 + (deviationPct-100)*0.3),
				Description: fmt.Sprintf("Quantity is %.1f%% above average (avg: %.1f, current: %.1f)",
					deviationPct, avg, item.Quantity),
			})
		case historicalMax > 0 && item.Quantity > historicalMax*quantityMaxMultiplier:
			anomalies = append(anomalies, models.AnomalyDetail{
				Type:     models.AnomalyQuantityDeviation,
				ItemName: item.Name,
				Severity: clampSeverity(40 + (item.Quantity/historicalMax-quantityMaxMultiplier)*20),
				Description: fmt.Sprintf("Quantity exceeds historical maximum by %.1f%% (max: %.1f, current: %.1f)",
					(item.Quantity/historicalMax-1)*100, historicalMax, item.Quantity),
			})
		}
	}
	return anomalies
}

// checkNewItems flags items never seen in the vendor's history. Severity
// scales with the item's share of the invoice total; a zero or negative
// invoice total carries no share information, so the base severity applies.
func checkNewItems(candidate *models.InvoiceRecord, history []*models.InvoiceRecord) []models.AnomalyDetail {
	known := make(map[string]bool)
	for _, hist := range history {
		for _, item := range hist.Parsed.Items {
			known[normalizeName(item.Name)] = true
		}
	}

	var anomalies []models.AnomalyDetail
	for _, item := range candidate.Parsed.Items {
		if known[normalizeName(item.Name)] {
			continue
		}
		severity := 20.0
		description := fmt.Sprintf("New item '%s' never seen before for this vendor (value: $%.2f)",
			item.Name, item.TotalPrice)
		if total := candidate.Parsed.TotalAmount; total > 0 {
			sharePct := item.TotalPrice / total * 100
			severity = 20 + sharePct*0.5
			description = fmt.Sprintf("New item '%s' never seen before for this vendor (value: $%.2f, %.1f%% of total)",
				item.Name, item.TotalPrice, sharePct)
		}
		anomalies = append(anomalies, models.AnomalyDetail{
			Type:        models.AnomalyNewItem,
			ItemName:    item.Name,
			Severity:    clampSeverity(severity),
			Description: description,
		})
	}
	return anomalies
}

// checkAmountDeviation flags the invoice total when it deviates from the
// historical average by more than the threshold in either direction. At
// most one detection is emitted.
func checkAmountDeviation(candidate *models.InvoiceRecord, history []*models.InvoiceRecord) []models.AnomalyDetail {
	amounts := make([]float64, 0, len(history))
	for _, hist := range history {
		amounts = append(amounts, hist.Parsed.TotalAmount)
	}

	avg := mean(amounts)
	if avg == 0 {
		return nil
	}

	current := candidate.Parsed.TotalAmount
	deviationPct := math.Abs((current-avg)/avg) * 100
	if deviationPct <= amountDeviationPct {
		return nil
	}

	direction := "above"
	if current < avg {
		direction = "below"
	}
	return []models.AnomalyDetail{{
		Type:     models.AnomalyAmountDeviation,
		Severity: clampSeverity(35 + (deviationPct-amountDeviationPct)*1.5),
		Description: fmt.Sprintf("Total amount is %.1f%% %s average (avg: $%.2f, current: $%.2f, range: $%.2f - $%.2f)",
			deviationPct, direction, avg, current, min64(amounts), max64(amounts)),
	}}
}

// aggregateRiskScore averages detection severities and amplifies the result
// for each additional independent signal.
func aggregateRiskScore(anomalies []models.AnomalyDetail) int {
	if len(anomalies) == 0 {
		return 0
	}
	total := 0
	for _, a := range anomalies {
		total += a.Severity
	}
	base := float64(total) / float64(len(anomalies))
	multiplier := 1.0 + float64(len(anomalies)-1)*0.1
	score := int(math.Round(base * multiplier))
	if score > 100 {
		return 100
	}
	return score
}

// clampSeverity truncates a raw severity to an integer in [0, 100].
func clampSeverity(raw float64) int {
	if raw >= 100 {
		return 100
	}
	if raw < 0 {
		return 0
	}
	return int(raw)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func max64(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func min64(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
