// Package tables holds the curated pharmacogene reference data: gene
// coordinate windows, star-allele activity scores, and phenotype
// assignment tables. Defaults are embedded; a deployment can override
// individual files from a directory.
package tables

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pgx-cds-server/internal/domain"
)

//go:embed data/*.yaml
var defaultData embed.FS

// PhenotypeBand is one activity-score interval. Endpoints are inclusive
// on both sides.
type PhenotypeBand struct {
	Phenotype string  `yaml:"phenotype"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
}

// Tables is the loaded reference data set.
type Tables struct {
	regions             []domain.GeneRegion
	regionByGene        map[string]domain.GeneRegion
	activityScores      map[string]map[string]float64
	diplotypePhenotypes map[string]map[string]string
	phenotypeRanges     map[string][]PhenotypeBand
	genericRanges       []PhenotypeBand
}

type regionsFile struct {
	Regions []domain.GeneRegion `yaml:"regions"`
}

type allelesFile struct {
	ActivityScores map[string]map[string]float64 `yaml:"activity_scores"`
}

type phenotypesFile struct {
	DiplotypePhenotypes map[string]map[string]string `yaml:"diplotype_phenotypes"`
	PhenotypeRanges     map[string][]PhenotypeBand   `yaml:"phenotype_ranges"`
	GenericRanges       []PhenotypeBand              `yaml:"generic_ranges"`
}

// Load reads the embedded defaults and, when overrideDir is non-empty,
// replaces any table whose file exists in that directory.
func Load(overrideDir string) (*Tables, error) {
	t := &Tables{}

	var regions regionsFile
	if err := loadYAML(overrideDir, "regions.yaml", &regions); err != nil {
		return nil, err
	}
	var alleles allelesFile
	if err := loadYAML(overrideDir, "alleles.yaml", &alleles); err != nil {
		return nil, err
	}
	var phenotypes phenotypesFile
	if err := loadYAML(overrideDir, "phenotypes.yaml", &phenotypes); err != nil {
		return nil, err
	}

	t.regions = regions.Regions
	t.regionByGene = make(map[string]domain.GeneRegion, len(t.regions))
	for _, r := range t.regions {
		t.regionByGene[r.Gene] = r
	}
	t.activityScores = alleles.ActivityScores
	t.diplotypePhenotypes = phenotypes.DiplotypePhenotypes
	t.phenotypeRanges = phenotypes.PhenotypeRanges
	t.genericRanges = phenotypes.GenericRanges

	if len(t.regions) == 0 {
		return nil, fmt.Errorf("reference data: no gene regions loaded")
	}
	if len(t.genericRanges) == 0 {
		return nil, fmt.Errorf("reference data: no generic phenotype bands loaded")
	}
	return t, nil
}

func loadYAML(overrideDir, name string, out interface{}) error {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name)
		if raw, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("parse override %s: %w", path, err)
			}
			return nil
		}
	}
	raw, err := defaultData.ReadFile("data/" + name)
	if err != nil {
		return fmt.Errorf("read embedded %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse embedded %s: %w", name, err)
	}
	return nil
}

// Regions returns the supported gene windows in file order.
func (t *Tables) Regions() []domain.GeneRegion {
	return t.regions
}

// Region returns the coordinate window for gene.
func (t *Tables) Region(gene string) (domain.GeneRegion, bool) {
	r, ok := t.regionByGene[gene]
	return r, ok
}

// SupportedGenes lists genes with coordinate windows, in file order.
func (t *Tables) SupportedGenes() []string {
	genes := make([]string, 0, len(t.regions))
	for _, r := range t.regions {
		genes = append(genes, r.Gene)
	}
	return genes
}

// AlleleScore returns the activity score of allele for gene. ok is
// false when the allele is not in the gene's function table.
func (t *Tables) AlleleScore(gene, allele string) (float64, bool) {
	scores, geneKnown := t.activityScores[gene]
	if !geneKnown {
		return 0, false
	}
	s, ok := scores[allele]
	return s, ok
}

// DiplotypePhenotype returns the explicit phenotype for a diplotype
// string, if one is curated. The lookup is orientation-insensitive at
// the caller's discretion; this checks the exact string only.
func (t *Tables) DiplotypePhenotype(gene, diplotype string) (string, bool) {
	m, ok := t.diplotypePhenotypes[gene]
	if !ok {
		return "", false
	}
	p, ok := m[diplotype]
	return p, ok
}

// PhenotypeBands returns the per-gene score bands in curated order.
func (t *Tables) PhenotypeBands(gene string) []PhenotypeBand {
	return t.phenotypeRanges[gene]
}

// GenericBands returns the gene-agnostic fallback bands in ascending
// order of Max.
func (t *Tables) GenericBands() []PhenotypeBand {
	return t.genericRanges
}
