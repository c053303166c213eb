// Package catalog holds the static dataset table. The table is declarative
// YAML embedded at build time; an operator may point the tool at a different
// file with the same schema.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/molluscomics/seqfetch/internal/model"
)

//go:embed catalog.yaml
var embedded []byte

// Selection errors
var (
	ErrNotFound               = errors.New("dataset not found")
	ErrBioProjectNotInDataset = errors.New("bioproject not part of dataset")
	ErrDuplicateID            = errors.New("duplicate dataset id")
	ErrEmpty                  = errors.New("catalog has no datasets")
)

// NotFoundError reports an unknown identifier together with the valid set.
type NotFoundError struct {
	Kind  string // "dataset" or "bioproject"
	ID    string
	Valid []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found; valid: %s", e.Kind, e.ID, strings.Join(e.Valid, ", "))
}

// Unwrap lets errors.Is match the sentinel for the kind of lookup that failed.
func (e *NotFoundError) Unwrap() error {
	if e.Kind == "bioproject" {
		return ErrBioProjectNotInDataset
	}
	return ErrNotFound
}

type document struct {
	Datasets []model.DatasetRecord `yaml:"datasets"`
}

// Catalog is an immutable, ordered set of dataset records.
type Catalog struct {
	records []model.DatasetRecord
	index   map[string]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(embedded)
	})
	return defaultCat, defaultErr
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Datasets)
}

// New builds a catalog from records, rejecting invalid or duplicate entries.
func New(records []model.DatasetRecord) (*Catalog, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{
		records: make([]model.DatasetRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog entry: %w", err)
		}
		if _, dup := c.index[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		c.index[rec.ID] = len(c.records)
		c.records = append(c.records, clone(rec))
	}
	return c, nil
}

// Len returns the number of datasets.
func (c *Catalog) Len() int {
	return len(c.records)
}

// List returns every record in catalog order.
func (c *Catalog) List() []model.DatasetRecord {
	out := make([]model.DatasetRecord, len(c.records))
	for i, rec := range c.records {
		out[i] = clone(rec)
	}
	return out
}

// IDs returns the identifiers sorted alphabetically.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.records))
	for _, rec := range c.records {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the record for id or a *NotFoundError.
func (c *Catalog) Lookup(id string) (model.DatasetRecord, error) {
	i, ok := c.index[id]
	if !ok {
		return model.DatasetRecord{}, &NotFoundError{Kind: "dataset", ID: id, Valid: c.IDs()}
	}
	return clone(c.records[i]), nil
}

// Select resolves a dataset and an optional BioProject filter to the ordered
// list of accessions to fetch.
func (c *Catalog) Select(id, bioproject string) (model.DatasetRecord, []string, error) {
	rec, err := c.Lookup(id)
	if err != nil {
		return model.DatasetRecord{}, nil, err
	}
	if bioproject == "" {
		return rec, rec.BioProjects, nil
	}
	if !rec.HasBioProject(bioproject) {
		return model.DatasetRecord{}, nil, &NotFoundError{Kind: "bioproject", ID: bioproject, Valid: rec.BioProjects}
	}
	return rec, []string{bioproject}, nil
}

// ByMethod groups record ids under their method label.
func (c *Catalog) ByMethod() map[model.Method][]string {
	out := make(map[model.Method][]string)
	for _, rec := range c.records {
		out[rec.Method] = append(out[rec.Method], rec.ID)
	}
	return out
}

func clone(rec model.DatasetRecord) model.DatasetRecord {
	rec.BioProjects = append([]string(nil), rec.BioProjects...)
	rec.DataTypes = append([]string(nil), rec.DataTypes...)
	rec.TissueTypes = append([]string(nil), rec.TissueTypes...)
	return rec
}
