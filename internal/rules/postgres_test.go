package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-cds-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func ruleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "gene", "drug", "phenotype", "risk_category", "severity",
		"evidence_level", "recommendation", "action", "citations",
		"created_at", "updated_at",
	})
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM cpic_rules\s+WHERE gene = \$1 AND drug = \$2 AND phenotype = \$3`).
		WithArgs("CYP2C19", "clopidogrel", "Poor Metabolizer").
		WillReturnRows(ruleRows().AddRow(
			int64(7), "CYP2C19", "clopidogrel", "Poor Metabolizer",
			"ineffective", "high", "A",
			"Use alternative antiplatelet.", "Prasugrel or ticagrelor.", `["PMID:35034351"]`,
			now, now,
		))

	rule, err := store.Get(context.Background(), "CYP2C19", "clopidogrel", "Poor Metabolizer")
	require.NoError(t, err)
	require.NotNil(t, rule)

	assert.Equal(t, int64(7), rule.ID)
	assert.Equal(t, domain.RiskIneffective, rule.RiskCategory)
	assert.Equal(t, domain.SeverityHigh, rule.Severity)
	assert.Equal(t, domain.EvidenceLevelA, rule.EvidenceLevel)
	assert.Equal(t, []string{"PMID:35034351"}, rule.Citations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM cpic_rules`).
		WithArgs("CYP2D6", "codeine", "Poor Metabolizer").
		WillReturnRows(ruleRows())

	rule, err := store.Get(context.Background(), "CYP2D6", "codeine", "Poor Metabolizer")
	require.NoError(t, err)
	assert.Nil(t, rule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBadCitations(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM cpic_rules`).
		WithArgs("CYP2D6", "codeine", "Poor Metabolizer").
		WillReturnRows(ruleRows().AddRow(
			int64(1), "CYP2D6", "codeine", "Poor Metabolizer",
			"ineffective", "high", "A", "x", "", "{not json",
			now, now,
		))

	_, err := store.Get(context.Background(), "CYP2D6", "codeine", "Poor Metabolizer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citations")
}

func TestPostgresStore_SaveUpsert(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO cpic_rules (.+) ON CONFLICT \(gene, drug, phenotype\) DO UPDATE`).
		WithArgs(
			"TPMT", "azathioprine", "Poor",
			"toxic", "high", "A",
			"Reduce drastically or avoid.", "Alternative agent.", `["PMID:30447069"]`,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	rule := &Rule{
		Gene: "TPMT", Drug: "azathioprine", Phenotype: "Poor",
		RiskCategory: domain.RiskToxic, Severity: domain.SeverityHigh,
		EvidenceLevel: domain.EvidenceLevelA,
		Recommendation: "Reduce drastically or avoid.",
		Action:         "Alternative agent.",
		Citations:      []string{"PMID:30447069"},
	}
	require.NoError(t, store.Save(context.Background(), rule))

	assert.Equal(t, int64(3), rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())
	assert.False(t, rule.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveNilCitationsEncodesEmptyList(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO cpic_rules`).
		WithArgs(
			"DPYD", "fluorouracil", "Normal",
			"safe", "none", "A",
			"Standard dosing.", "", "[]",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), now))

	rule := &Rule{
		Gene: "DPYD", Drug: "fluorouracil", Phenotype: "Normal",
		RiskCategory: domain.RiskSafe, Severity: domain.SeverityNone,
		EvidenceLevel:  domain.EvidenceLevelA,
		Recommendation: "Standard dosing.",
	}
	require.NoError(t, store.Save(context.Background(), rule))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM cpic_rules\s+WHERE gene = \$1\s+ORDER BY drug, phenotype`).
		WithArgs("CYP2D6").
		WillReturnRows(ruleRows().
			AddRow(int64(1), "CYP2D6", "codeine", "Poor Metabolizer", "ineffective", "high", "A", "x", "", "[]", now, now).
			AddRow(int64(2), "CYP2D6", "codeine", "Ultra Rapid Metabolizer", "toxic", "high", "A", "x", "", "[]", now, now))

	rules, err := store.List(context.Background(), "CYP2D6")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Poor Metabolizer", rules[0].Phenotype)
	assert.Equal(t, domain.RiskToxic, rules[1].RiskCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cpic_rules`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryErrorWrapped(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM cpic_rules`).
		WithArgs("CYP2D6").
		WillReturnError(errors.New("connection reset"))

	_, err := store.List(context.Background(), "CYP2D6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query rules")
}
