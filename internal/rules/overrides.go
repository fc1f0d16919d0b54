package rules

import "github.com/pgx-cds-server/internal/domain"

// phenotypeRiskOverrides pins the risk category for well-established
// (drug, phenotype) pairs. An override wins over the stored rule's risk
// label, and its severity is re-derived so the two never disagree.
var phenotypeRiskOverrides = map[string]map[string]domain.RiskCategory{
	"codeine": {
		"Poor Metabolizer":         domain.RiskIneffective,
		"Intermediate Metabolizer": domain.RiskAdjust,
		"Normal Metabolizer":       domain.RiskSafe,
		"Ultra Rapid Metabolizer":  domain.RiskToxic,
	},
	"warfarin": {
		"Poor Metabolizer":         domain.RiskToxic,
		"Intermediate Metabolizer": domain.RiskAdjust,
		"Normal Metabolizer":       domain.RiskSafe,
	},
	"clopidogrel": {
		"Poor Metabolizer":         domain.RiskIneffective,
		"Intermediate Metabolizer": domain.RiskAdjust,
		"Normal Metabolizer":       domain.RiskSafe,
		"Rapid Metabolizer":        domain.RiskSafe,
	},
	"simvastatin": {
		"Poor Function":      domain.RiskToxic,
		"Decreased Function": domain.RiskAdjust,
		"Normal":             domain.RiskSafe,
		"Normal Function":    domain.RiskSafe,
	},
	"azathioprine": {
		"Poor":         domain.RiskToxic,
		"Intermediate": domain.RiskAdjust,
		"Normal":       domain.RiskSafe,
	},
	"fluorouracil": {
		"Poor":         domain.RiskToxic,
		"Intermediate": domain.RiskAdjust,
		"Normal":       domain.RiskSafe,
	},
}

// severityFor keeps severity synchronized with the risk category.
func severityFor(risk domain.RiskCategory) domain.Severity {
	switch risk {
	case domain.RiskSafe:
		return domain.SeverityNone
	case domain.RiskAdjust:
		return domain.SeverityModerate
	case domain.RiskToxic, domain.RiskIneffective:
		return domain.SeverityHigh
	default:
		return domain.SeverityModerate
	}
}

// overrideFor returns the pinned risk for a (drug, phenotype) pair.
func overrideFor(drug, phenotype string) (domain.RiskCategory, bool) {
	m, ok := phenotypeRiskOverrides[drug]
	if !ok {
		return "", false
	}
	risk, ok := m[phenotype]
	return risk, ok
}

// AggregateRisk reduces multiple assessments to the highest-priority
// category. Toxic outranks ineffective, then adjust, then safe.
func AggregateRisk(assessments []domain.RiskAssessment) domain.RiskCategory {
	if len(assessments) == 0 {
		return domain.RiskUnknown
	}
	priority := []domain.RiskCategory{
		domain.RiskToxic,
		domain.RiskIneffective,
		domain.RiskAdjust,
		domain.RiskSafe,
		domain.RiskUnknown,
	}
	for _, risk := range priority {
		for _, a := range assessments {
			if a.RiskCategory == risk {
				return risk
			}
		}
	}
	return domain.RiskUnknown
}
