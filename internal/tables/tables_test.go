package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	genes := tbl.SupportedGenes()
	assert.ElementsMatch(t, []string{"CYP2D6", "CYP2C19", "CYP2C9", "SLCO1B1", "TPMT", "DPYD"}, genes)

	region, ok := tbl.Region("CYP2D6")
	require.True(t, ok)
	assert.Equal(t, "22", region.Chrom)
	assert.Equal(t, int64(42526217), region.Start)
	assert.Equal(t, int64(42530591), region.End)

	_, ok = tbl.Region("CYP3A4")
	assert.False(t, ok)
}

func TestAlleleScore(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		gene   string
		allele string
		want   float64
		known  bool
	}{
		{"CYP2D6", "*1", 1.0, true},
		{"CYP2D6", "*4", 0.0, true},
		{"CYP2D6", "*10", 0.25, true},
		{"CYP2D6", "*17", 0.5, true},
		{"CYP2D6", "*1xN", 2.0, true},
		{"CYP2D6", "*999", 0, false},
		{"CYP3A4", "*1", 0, false},
	}
	for _, tc := range tests {
		got, ok := tbl.AlleleScore(tc.gene, tc.allele)
		assert.Equal(t, tc.known, ok, "%s %s", tc.gene, tc.allele)
		if tc.known {
			assert.InDelta(t, tc.want, got, 1e-9, "%s %s", tc.gene, tc.allele)
		}
	}
}

func TestDiplotypePhenotype(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	p, ok := tbl.DiplotypePhenotype("CYP2D6", "*4/*4")
	require.True(t, ok)
	assert.Equal(t, "Poor Metabolizer", p)

	_, ok = tbl.DiplotypePhenotype("CYP2D6", "*998/*999")
	assert.False(t, ok)
}

func TestPhenotypeBands_InclusiveEndpoints(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	bands := tbl.PhenotypeBands("CYP2D6")
	require.NotEmpty(t, bands)

	// Every band covers both its endpoints; bands are curated so that a
	// score landing exactly on a boundary resolves to the first match.
	find := func(score float64) string {
		for _, b := range bands {
			if score >= b.Min && score <= b.Max {
				return b.Phenotype
			}
		}
		return ""
	}
	assert.Equal(t, "Poor Metabolizer", find(0.0))
	assert.Equal(t, "Poor Metabolizer", find(0.5))
	assert.Equal(t, "Intermediate Metabolizer", find(1.0))
	assert.Equal(t, "Normal Metabolizer", find(2.0))
	assert.Equal(t, "Ultra Rapid Metabolizer", find(3.0))
}

func TestGenericBands_Ordering(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	bands := tbl.GenericBands()
	require.NotEmpty(t, bands)
	for i := 1; i < len(bands); i++ {
		assert.LessOrEqual(t, bands[i-1].Max, bands[i].Max)
	}
	// The final band must be open-ended so no score is left unmapped.
	assert.True(t, bands[len(bands)-1].Max >= 100)
}

func TestLoad_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := `regions:
  - gene: CYP2D6
    chrom: "22"
    start: 1
    end: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "regions.yaml"), []byte(override), 0o644))

	tbl, err := Load(dir)
	require.NoError(t, err)

	// The overridden file replaces the region table entirely.
	assert.Equal(t, []string{"CYP2D6"}, tbl.SupportedGenes())
	region, ok := tbl.Region("CYP2D6")
	require.True(t, ok)
	assert.Equal(t, int64(1), region.Start)

	// Files absent from the override dir still come from the defaults.
	_, ok = tbl.AlleleScore("CYP2D6", "*1")
	assert.True(t, ok)
}

func TestLoad_BadOverrideFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "regions.yaml"), []byte("regions: [not a region"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
