// Package rules holds the CPIC guideline rule store and the
// deterministic risk classifier built on it. No generative component
// participates in classification.
package rules

import (
	"context"
	"time"

	"github.com/pgx-cds-server/internal/domain"
)

// Rule is one CPIC guideline row keyed by (gene, drug, phenotype).
type Rule struct {
	ID             int64                `json:"id"`
	Gene           string               `json:"gene"`
	Drug           string               `json:"drug"`
	Phenotype      string               `json:"phenotype"`
	RiskCategory   domain.RiskCategory  `json:"risk_category"`
	Severity       domain.Severity      `json:"severity"`
	EvidenceLevel  domain.EvidenceLevel `json:"evidence_level"`
	Recommendation string               `json:"recommendation"`
	Action         string               `json:"action"`
	Citations      []string             `json:"citations"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Store is the persistence interface for guideline rules. Get returns
// (nil, nil) when no rule exists for the key.
type Store interface {
	Get(ctx context.Context, gene, drug, phenotype string) (*Rule, error)
	Save(ctx context.Context, rule *Rule) error
	List(ctx context.Context, gene string) ([]Rule, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
