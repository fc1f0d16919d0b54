// Package drug resolves drug names, including brand aliases, to their
// pharmacogene associations.
package drug

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pgx-cds-server/internal/domain"
)

//go:embed data/drugs.yaml
var catalogData embed.FS

// Entry is one catalog drug. Genes holds the primary gene first; any
// further genes participate in multi-gene analysis when supported.
type Entry struct {
	Name    string   `yaml:"name"`
	Genes   []string `yaml:"genes"`
	Aliases []string `yaml:"aliases"`
}

// PrimaryGene returns the first listed gene.
func (e Entry) PrimaryGene() string {
	if len(e.Genes) == 0 {
		return ""
	}
	return e.Genes[0]
}

// Registry is the loaded drug catalog with alias resolution.
type Registry struct {
	byName  map[string]Entry
	byAlias map[string]string
	names   []string
}

type catalogFile struct {
	Drugs []Entry `yaml:"drugs"`
}

// NewRegistry loads the embedded catalog.
func NewRegistry() (*Registry, error) {
	raw, err := catalogData.ReadFile("data/drugs.yaml")
	if err != nil {
		return nil, fmt.Errorf("read drug catalog: %w", err)
	}
	var cat catalogFile
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse drug catalog: %w", err)
	}

	r := &Registry{
		byName:  make(map[string]Entry, len(cat.Drugs)),
		byAlias: make(map[string]string),
	}
	for _, e := range cat.Drugs {
		name := normalize(e.Name)
		if name == "" || len(e.Genes) == 0 {
			return nil, fmt.Errorf("drug catalog entry %q has no name or genes", e.Name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("drug catalog entry %q is duplicated", name)
		}
		e.Name = name
		r.byName[name] = e
		r.names = append(r.names, name)
		for _, a := range e.Aliases {
			r.byAlias[normalize(a)] = name
		}
	}
	sort.Strings(r.names)
	return r, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve maps a drug name or brand alias to its catalog entry. Unknown
// drugs yield an UNSUPPORTED_DRUG error listing the catalog.
func (r *Registry) Resolve(drug string) (Entry, error) {
	key := normalize(drug)
	if name, ok := r.byAlias[key]; ok {
		key = name
	}
	if e, ok := r.byName[key]; ok {
		return e, nil
	}
	return Entry{}, domain.NewUnsupportedDrugError(drug, r.names)
}

// SupportedDrugs lists generic catalog names in sorted order.
func (r *Registry) SupportedDrugs() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
