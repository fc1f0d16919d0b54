package rules

import (
	"context"
	"fmt"

	"github.com/pgx-cds-server/internal/domain"
)

// SeedRules returns the baseline CPIC Level A rule set for the core
// gene-drug pairs. Deployments extend past this through the store.
func SeedRules() []Rule {
	return []Rule{
		// CYP2D6 / codeine
		{
			Gene: "CYP2D6", Drug: "codeine", Phenotype: "Poor Metabolizer",
			RiskCategory: domain.RiskIneffective, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Avoid codeine use because of lack of analgesic effect in poor metabolizers.",
			Action:         "Use a non-tramadol, non-codeine analgesic such as morphine.",
			Citations:      []string{"PMID:24458010", "PMID:33387367"},
		},
		{
			Gene: "CYP2D6", Drug: "codeine", Phenotype: "Intermediate Metabolizer",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Use codeine label-recommended dosing; monitor for reduced analgesic response.",
			Action:         "Consider alternative analgesic if response is inadequate.",
			Citations:      []string{"PMID:24458010"},
		},
		{
			Gene: "CYP2D6", Drug: "codeine", Phenotype: "Normal Metabolizer",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Use codeine label-recommended age- or weight-specific dosing.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:24458010"},
		},
		{
			Gene: "CYP2D6", Drug: "codeine", Phenotype: "Ultra Rapid Metabolizer",
			RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Avoid codeine because of potential morphine toxicity from rapid conversion.",
			Action:         "Contraindicated. Use a non-tramadol, non-codeine analgesic.",
			Citations:      []string{"PMID:24458010", "PMID:33387367"},
		},

		// CYP2C9 / warfarin
		{
			Gene: "CYP2C9", Drug: "warfarin", Phenotype: "Poor Metabolizer",
			RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Markedly reduced warfarin clearance raises bleeding risk at standard doses.",
			Action:         "Initiate with substantially reduced dose per validated pharmacogenetic algorithm and monitor INR closely.",
			Citations:      []string{"PMID:28198005"},
		},
		{
			Gene: "CYP2C9", Drug: "warfarin", Phenotype: "Intermediate Metabolizer",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Reduced warfarin clearance; standard initiation doses may overshoot target INR.",
			Action:         "Calculate starting dose with a pharmacogenetic dosing algorithm.",
			Citations:      []string{"PMID:28198005"},
		},
		{
			Gene: "CYP2C9", Drug: "warfarin", Phenotype: "Normal Metabolizer",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Initiate warfarin per standard clinical dosing algorithm.",
			Action:         "Standard dosing with routine INR monitoring.",
			Citations:      []string{"PMID:28198005"},
		},

		// CYP2C19 / clopidogrel
		{
			Gene: "CYP2C19", Drug: "clopidogrel", Phenotype: "Poor Metabolizer",
			RiskCategory: domain.RiskIneffective, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Significantly reduced platelet inhibition; increased risk of adverse cardiovascular events.",
			Action:         "Use prasugrel or ticagrelor if no contraindication.",
			Citations:      []string{"PMID:35034351"},
		},
		{
			Gene: "CYP2C19", Drug: "clopidogrel", Phenotype: "Intermediate Metabolizer",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Reduced active metabolite formation and platelet inhibition.",
			Action:         "Consider prasugrel or ticagrelor for cardiovascular indications.",
			Citations:      []string{"PMID:35034351"},
		},
		{
			Gene: "CYP2C19", Drug: "clopidogrel", Phenotype: "Normal Metabolizer",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Label-recommended dosing provides expected platelet inhibition.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:35034351"},
		},
		{
			Gene: "CYP2C19", Drug: "clopidogrel", Phenotype: "Rapid Metabolizer",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Label-recommended dosing provides expected platelet inhibition.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:35034351"},
		},

		// SLCO1B1 / simvastatin
		{
			Gene: "SLCO1B1", Drug: "simvastatin", Phenotype: "Poor Function",
			RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "High myopathy risk from elevated simvastatin acid exposure.",
			Action:         "Prescribe an alternative statin; if simvastatin is required do not exceed 20mg/day with CK surveillance.",
			Citations:      []string{"PMID:35152405"},
		},
		{
			Gene: "SLCO1B1", Drug: "simvastatin", Phenotype: "Decreased Function",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Intermediate myopathy risk at higher simvastatin doses.",
			Action:         "Prescribe a lower dose or consider an alternative statin.",
			Citations:      []string{"PMID:35152405"},
		},
		{
			Gene: "SLCO1B1", Drug: "simvastatin", Phenotype: "Normal Function",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Typical myopathy risk; prescribe desired starting dose.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:35152405"},
		},

		// TPMT / azathioprine
		{
			Gene: "TPMT", Drug: "azathioprine", Phenotype: "Poor",
			RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Severe myelosuppression risk at conventional thiopurine doses.",
			Action:         "Consider alternative agent; if used, drastically reduce dose (10-fold) and dose thrice weekly.",
			Citations:      []string{"PMID:30447069"},
		},
		{
			Gene: "TPMT", Drug: "azathioprine", Phenotype: "Intermediate",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Moderate myelosuppression risk at conventional doses.",
			Action:         "Start at 30-80% of target dose and titrate by tolerance.",
			Citations:      []string{"PMID:30447069"},
		},
		{
			Gene: "TPMT", Drug: "azathioprine", Phenotype: "Normal",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Normal thiopurine methylation; typical myelosuppression risk.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:30447069"},
		},

		// DPYD / fluorouracil
		{
			Gene: "DPYD", Drug: "fluorouracil", Phenotype: "Poor",
			RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Complete DPD deficiency; severe or fatal toxicity expected at standard doses.",
			Action:         "Avoid fluoropyrimidines. Contraindicated.",
			Citations:      []string{"PMID:29152729"},
		},
		{
			Gene: "DPYD", Drug: "fluorouracil", Phenotype: "Intermediate",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Partial DPD deficiency; increased severe toxicity risk at standard doses.",
			Action:         "Reduce starting dose by 50% and titrate by toxicity or DPD phenotyping.",
			Citations:      []string{"PMID:29152729"},
		},
		{
			Gene: "DPYD", Drug: "fluorouracil", Phenotype: "Normal",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone, EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Normal DPD activity; use label-recommended dosing.",
			Action:         "Standard dosing.",
			Citations:      []string{"PMID:29152729"},
		},
	}
}

// Seed writes the baseline rule set into the store, upserting on
// conflict so reseeding is idempotent.
func Seed(ctx context.Context, store Store) (int, error) {
	seeded := 0
	for _, rule := range SeedRules() {
		r := rule
		if err := store.Save(ctx, &r); err != nil {
			return seeded, fmt.Errorf("seed rule %s/%s/%s: %w", rule.Gene, rule.Drug, rule.Phenotype, err)
		}
		seeded++
	}
	return seeded, nil
}
