package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. The schema is
// expected to exist already (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a pooled connection from a URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Get returns the rule for the key, or (nil, nil) if absent.
func (s *PostgresStore) Get(ctx context.Context, gene, drug, phenotype string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, gene, drug, phenotype, risk_category, severity, evidence_level,
			recommendation, action, citations, created_at, updated_at
		FROM cpic_rules
		WHERE gene = $1 AND drug = $2 AND phenotype = $3
		LIMIT 1
	`, gene, drug, phenotype)

	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	return r, nil
}

// Save upserts a rule by its (gene, drug, phenotype) key.
func (s *PostgresStore) Save(ctx context.Context, rule *Rule) error {
	now := time.Now()
	citations, err := json.Marshal(rule.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}
	if rule.Citations == nil {
		citations = []byte("[]")
	}

	query := `
		INSERT INTO cpic_rules (
			gene, drug, phenotype,
			risk_category, severity, evidence_level,
			recommendation, action, citations, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (gene, drug, phenotype) DO UPDATE SET
			risk_category = EXCLUDED.risk_category,
			severity = EXCLUDED.severity,
			evidence_level = EXCLUDED.evidence_level,
			recommendation = EXCLUDED.recommendation,
			action = EXCLUDED.action,
			citations = EXCLUDED.citations,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		rule.Gene, rule.Drug, rule.Phenotype,
		string(rule.RiskCategory),
		string(rule.Severity),
		string(rule.EvidenceLevel),
		rule.Recommendation,
		rule.Action,
		string(citations),
		now, now,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	rule.UpdatedAt = now
	return nil
}

// List returns all rules for a gene ordered by drug then phenotype.
func (s *PostgresStore) List(ctx context.Context, gene string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gene, drug, phenotype, risk_category, severity, evidence_level,
			recommendation, action, citations, created_at, updated_at
		FROM cpic_rules
		WHERE gene = $1
		ORDER BY drug, phenotype
	`, gene)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Count returns the total number of stored rules.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cpic_rules").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
