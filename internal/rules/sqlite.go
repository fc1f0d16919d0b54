package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgx-cds-server/internal/domain"
)

// SQLiteStore implements Store using SQLite. Suited to single-node
// deployments; schema is created on open.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) a SQLite rule store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cpic_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gene TEXT NOT NULL,
		drug TEXT NOT NULL,
		phenotype TEXT NOT NULL,
		risk_category TEXT NOT NULL,
		severity TEXT NOT NULL,
		evidence_level TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		action TEXT DEFAULT '',
		citations TEXT DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(gene, drug, phenotype)
	);

	CREATE INDEX IF NOT EXISTS idx_rules_gene ON cpic_rules(gene);
	CREATE INDEX IF NOT EXISTS idx_rules_drug ON cpic_rules(drug);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (*Rule, error) {
	r := &Rule{}
	var risk, severity, level, citations string

	err := s.Scan(
		&r.ID, &r.Gene, &r.Drug, &r.Phenotype,
		&risk, &severity, &level,
		&r.Recommendation, &r.Action, &citations,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.RiskCategory = domain.RiskCategory(risk)
	r.Severity = domain.Severity(severity)
	r.EvidenceLevel = domain.EvidenceLevel(level)
	if err := json.Unmarshal([]byte(citations), &r.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}
	return r, nil
}

const selectColumns = `id, gene, drug, phenotype, risk_category, severity, evidence_level,
	recommendation, action, citations, created_at, updated_at`

// Get returns the rule for the key, or (nil, nil) if absent.
func (s *SQLiteStore) Get(ctx context.Context, gene, drug, phenotype string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM cpic_rules
		WHERE gene = ? AND drug = ? AND phenotype = ?
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

// Save inserts or updates a rule by its (gene, drug, phenotype) key.
func (s *SQLiteStore) Save(ctx context.Context, rule *Rule) error {
	now := time.Now()
	citations, err := json.Marshal(rule.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}
	if rule.Citations == nil {
		citations = []byte("[]")
	}

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM cpic_rules WHERE gene = ? AND drug = ? AND phenotype = ?",
		rule.Gene, rule.Drug, rule.Phenotype,
	).Scan(&existingID)

	if err == nil {
		rule.ID = existingID
		rule.UpdatedAt = now
		_, err = s.db.ExecContext(ctx, `
			UPDATE cpic_rules SET
				risk_category = ?,
				severity = ?,
				evidence_level = ?,
				recommendation = ?,
				action = ?,
				citations = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(rule.RiskCategory),
			string(rule.Severity),
			string(rule.EvidenceLevel),
			rule.Recommendation,
			rule.Action,
			string(citations),
			now,
			existingID,
		)
		return err
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO cpic_rules (
			gene, drug, phenotype,
			risk_category, severity, evidence_level,
			recommendation, action, citations, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.Gene, rule.Drug, rule.Phenotype,
		string(rule.RiskCategory),
		string(rule.Severity),
		string(rule.EvidenceLevel),
		rule.Recommendation,
		rule.Action,
		string(citations),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	rule.ID = id
	return nil
}

// List returns all rules for a gene ordered by drug then phenotype.
func (s *SQLiteStore) List(ctx context.Context, gene string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM cpic_rules
		WHERE gene = ?
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
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cpic_rules").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
