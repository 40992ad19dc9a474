package anomaly

import (
	"fmt"
	"strings"

	"github.com/finflow/invoice-sentinel/internal/models"
)

// Risk level boundaries for the explanation header
const (
	highRiskScore     = 70
	moderateRiskScore = 50
)

// explain renders a human-readable summary: a risk-level header, a detection
// count, and one numbered line per detection in detector-evaluation order.
func explain(anomalies []models.AnomalyDetail, riskScore int) string {
	if len(anomalies) == 0 {
		return "No anomalies detected. Invoice appears normal."
	}

	var riskLevel string
	switch {
	case riskScore >= highRiskScore:
		riskLevel = "HIGH RISK"
	case riskScore >= moderateRiskScore:
		riskLevel = "MODERATE RISK"
	default:
		riskLevel = "LOW RISK"
	}

	lines := []string{
		fmt.Sprintf("⚠️ %s (Score: %d/100)", riskLevel, riskScore),
		fmt.Sprintf("Detected %d anomaly/ies:", len(anomalies)),
	}
	for i, a := range anomalies {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, a.Description))
	}

	return strings.Join(lines, "\n")
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}
