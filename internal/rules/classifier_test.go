package rules

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-cds-server/internal/domain"
)

type fakeStore struct {
	rules map[string]*Rule
	err   error
	gets  int
}

func storeKey(gene, drug, phenotype string) string {
	return gene + "|" + drug + "|" + phenotype
}

func (f *fakeStore) Get(_ context.Context, gene, drug, phenotype string) (*Rule, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[storeKey(gene, drug, phenotype)], nil
}

func (f *fakeStore) Save(context.Context, *Rule) error       { return nil }
func (f *fakeStore) List(context.Context, string) ([]Rule, error) { return nil, nil }
func (f *fakeStore) Count(context.Context) (int, error)      { return len(f.rules), nil }
func (f *fakeStore) Close() error                            { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClassifier(store Store) *Classifier {
	return NewClassifier(store, quietLogger(), 100, time.Minute)
}

func TestClassify_StoredRule(t *testing.T) {
	store := &fakeStore{rules: map[string]*Rule{
		storeKey("CYP2C9", "warfarin", "Intermediate Metabolizer"): {
			Gene: "CYP2C9", Drug: "warfarin", Phenotype: "Intermediate Metabolizer",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate,
			EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Use dosing algorithm.", Action: "Reduce starting dose.",
			Citations: []string{"PMID:28198005"},
		},
	}}
	c := newTestClassifier(store)

	got, err := c.Classify(context.Background(), "CYP2C9", "warfarin", "Intermediate Metabolizer")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskAdjust, got.RiskCategory)
	assert.Equal(t, domain.SeverityModerate, got.Severity)
	assert.Equal(t, domain.EvidenceLevelA, got.EvidenceLevel)
	assert.Equal(t, "Reduce starting dose.", got.Action)
	assert.False(t, got.Contraindication)
	assert.Equal(t, []string{"PMID:28198005"}, got.Citations)
}

func TestClassify_OverrideWinsOverStoredRisk(t *testing.T) {
	// The stored rule disagrees with the pinned phenotype mapping; the
	// mapping wins and severity is re-derived to match.
	store := &fakeStore{rules: map[string]*Rule{
		storeKey("CYP2D6", "codeine", "Ultra Rapid Metabolizer"): {
			Gene: "CYP2D6", Drug: "codeine", Phenotype: "Ultra Rapid Metabolizer",
			RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone,
			EvidenceLevel: domain.EvidenceLevelA,
			Recommendation: "Stale guidance.", Action: "Standard dosing.",
		},
	}}
	c := newTestClassifier(store)

	got, err := c.Classify(context.Background(), "CYP2D6", "codeine", "Ultra Rapid Metabolizer")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskToxic, got.RiskCategory)
	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.True(t, got.Contraindication)
}

func TestClassify_OverrideWithoutStoredRule(t *testing.T) {
	c := newTestClassifier(&fakeStore{})

	got, err := c.Classify(context.Background(), "CYP2C19", "clopidogrel", "Poor Metabolizer")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskIneffective, got.RiskCategory)
	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.Equal(t, domain.EvidenceLevelB, got.EvidenceLevel)
	assert.False(t, got.Contraindication)
}

func TestClassify_NoRuleNoOverrideIsUnknown(t *testing.T) {
	c := newTestClassifier(&fakeStore{})

	got, err := c.Classify(context.Background(), "CYP2D6", "atomoxetine", "Indeterminate")
	require.NoError(t, err)

	assert.Equal(t, domain.RiskUnknown, got.RiskCategory)
	assert.Equal(t, domain.SeverityModerate, got.Severity)
	assert.False(t, got.Contraindication)
	assert.Equal(t, "Clinical judgment required", got.Action)
}

func TestClassify_ContraindicationOnlyWhenToxic(t *testing.T) {
	c := newTestClassifier(&fakeStore{})

	tests := []struct {
		drug, phenotype string
		contraindicated bool
	}{
		{"codeine", "Ultra Rapid Metabolizer", true},
		{"codeine", "Poor Metabolizer", false},
		{"azathioprine", "Poor", true},
		{"azathioprine", "Normal", false},
	}
	for _, tc := range tests {
		got, err := c.Classify(context.Background(), "GENE", tc.drug, tc.phenotype)
		require.NoError(t, err)
		assert.Equal(t, tc.contraindicated, got.Contraindication, "%s/%s", tc.drug, tc.phenotype)
	}
}

func TestClassify_MemoryCacheSkipsStore(t *testing.T) {
	store := &fakeStore{}
	c := newTestClassifier(store)
	ctx := context.Background()

	_, err := c.Classify(ctx, "CYP2D6", "codeine", "Normal Metabolizer")
	require.NoError(t, err)
	_, err = c.Classify(ctx, "CYP2D6", "codeine", "Normal Metabolizer")
	require.NoError(t, err)

	assert.Equal(t, 1, store.gets)
}

func TestClassify_InvalidateForcesRelookup(t *testing.T) {
	store := &fakeStore{}
	c := newTestClassifier(store)
	ctx := context.Background()

	_, err := c.Classify(ctx, "CYP2D6", "codeine", "Normal Metabolizer")
	require.NoError(t, err)
	c.Invalidate(ctx, "CYP2D6", "codeine", "Normal Metabolizer")
	_, err = c.Classify(ctx, "CYP2D6", "codeine", "Normal Metabolizer")
	require.NoError(t, err)

	assert.Equal(t, 2, store.gets)
}

func TestClassify_StoreErrorPropagates(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	c := newTestClassifier(store)

	_, err := c.Classify(context.Background(), "CYP2D6", "codeine", "Poor Metabolizer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule lookup")
}

func TestClassify_EmptyActionDefaults(t *testing.T) {
	store := &fakeStore{rules: map[string]*Rule{
		storeKey("TPMT", "mercaptopurine", "Intermediate"): {
			Gene: "TPMT", Drug: "mercaptopurine", Phenotype: "Intermediate",
			RiskCategory: domain.RiskAdjust, Severity: domain.SeverityModerate,
			EvidenceLevel: domain.EvidenceLevelA, Recommendation: "Reduce dose.",
		},
	}}
	c := newTestClassifier(store)

	got, err := c.Classify(context.Background(), "TPMT", "mercaptopurine", "Intermediate")
	require.NoError(t, err)
	assert.Equal(t, "Clinical judgment required", got.Action)
}

func TestAggregateRisk(t *testing.T) {
	mk := func(risks ...domain.RiskCategory) []domain.RiskAssessment {
		out := make([]domain.RiskAssessment, len(risks))
		for i, r := range risks {
			out[i] = domain.RiskAssessment{RiskCategory: r}
		}
		return out
	}

	tests := []struct {
		name string
		in   []domain.RiskAssessment
		want domain.RiskCategory
	}{
		{"empty", nil, domain.RiskUnknown},
		{"toxic beats all", mk(domain.RiskSafe, domain.RiskToxic, domain.RiskAdjust), domain.RiskToxic},
		{"ineffective beats adjust", mk(domain.RiskAdjust, domain.RiskIneffective), domain.RiskIneffective},
		{"adjust beats safe", mk(domain.RiskSafe, domain.RiskAdjust), domain.RiskAdjust},
		{"all safe", mk(domain.RiskSafe, domain.RiskSafe), domain.RiskSafe},
		{"safe beats unknown", mk(domain.RiskUnknown, domain.RiskSafe), domain.RiskSafe},
		{"only unknown", mk(domain.RiskUnknown), domain.RiskUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AggregateRisk(tc.in))
		})
	}
}
