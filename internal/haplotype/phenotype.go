package haplotype

import (
	"strings"

	"github.com/pgx-cds-server/internal/tables"
)

// Mapper assigns phenotype labels from diplotypes and activity scores.
// Resolution is three tiered: exact curated diplotype mapping first
// (orientation insensitive), then the gene's score bands, then the
// generic bands. A label is always produced; "Unknown" is never
// returned.
type Mapper struct {
	tables *tables.Tables
}

// NewMapper creates a phenotype mapper over the loaded tables.
func NewMapper(t *tables.Tables) *Mapper {
	return &Mapper{tables: t}
}

// Phenotype resolves the phenotype label for a gene given its diplotype
// string and activity score.
func (m *Mapper) Phenotype(gene, diplotype string, score float64) string {
	if p, ok := m.tables.DiplotypePhenotype(gene, diplotype); ok {
		return p
	}
	if swapped, ok := swapDiplotype(diplotype); ok {
		if p, ok := m.tables.DiplotypePhenotype(gene, swapped); ok {
			return p
		}
	}

	for _, band := range m.tables.PhenotypeBands(gene) {
		if band.Min <= score && score <= band.Max {
			return band.Phenotype
		}
	}

	for _, band := range m.tables.GenericBands() {
		if score <= band.Max {
			return band.Phenotype
		}
	}
	// The last generic band is unbounded, so this is unreachable with
	// well-formed tables.
	return m.tables.GenericBands()[len(m.tables.GenericBands())-1].Phenotype
}

func swapDiplotype(diplotype string) (string, bool) {
	a, b, ok := strings.Cut(diplotype, "/")
	if !ok {
		return "", false
	}
	return b + "/" + a, true
}
