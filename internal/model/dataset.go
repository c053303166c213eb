package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Method is the laboratory method label of a dataset. It is descriptive only.
type Method string

const (
	MethodWGBS     Method = "WGBS"
	MethodRRBS     Method = "RRBS"
	MethodMeDIPSeq Method = "MeDIP-seq"
	MethodTargeted Method = "Targeted"
	MethodMixed    Method = "Mixed"
)

// Methods lists the known method labels in display order
var Methods = []Method{MethodWGBS, MethodRRBS, MethodMeDIPSeq, MethodTargeted, MethodMixed}

// String returns the label
func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is one of the known labels
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// methodAliases maps the long labels used in study listings to a Method
var methodAliases = map[string]Method{
	"targeted bisulfite": MethodTargeted,
	"mixed methods":      MethodMixed,
	"medip":              MethodMeDIPSeq,
}

// ParseMethod matches a label or one of its long forms case-insensitively
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	for _, known := range Methods {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	if m, ok := methodAliases[strings.ToLower(s)]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMethod, s)
}

var bioProjectPattern = regexp.MustCompile(`^PRJ(NA|EB|DB)\d+$`)

// IsBioProjectAccession reports whether s looks like an INSDC BioProject accession
func IsBioProjectAccession(s string) bool {
	return bioProjectPattern.MatchString(s)
}

// SizeRange is an estimated download size in gigabytes
type SizeRange struct {
	LowGB  float64 `yaml:"low" json:"low"`
	HighGB float64 `yaml:"high" json:"high"`
}

// String formats the range as "20-40 GB"
func (r SizeRange) String() string {
	if r.LowGB == r.HighGB {
		return fmt.Sprintf("%g GB", r.LowGB)
	}
	return fmt.Sprintf("%g-%g GB", r.LowGB, r.HighGB)
}

// CountRange is an estimated sample count
type CountRange struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

// String formats the range as "12-24"
func (r CountRange) String() string {
	if r.Low == r.High {
		return fmt.Sprintf("%d", r.Low)
	}
	return fmt.Sprintf("%d-%d", r.Low, r.High)
}

// DatasetRecord is one entry of the dataset catalog
type DatasetRecord struct {
	ID          string     `yaml:"id" json:"id"`
	Method      Method     `yaml:"method" json:"method"`
	DataTypes   []string   `yaml:"data_types" json:"data_types,omitempty"`
	BioProjects []string   `yaml:"bioprojects" json:"bioprojects"`
	Size        SizeRange  `yaml:"size_gb" json:"size_gb"`
	Samples     CountRange `yaml:"samples" json:"samples"`
	TissueTypes []string   `yaml:"tissue_types" json:"tissue_types,omitempty"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Notes       string     `yaml:"notes" json:"notes,omitempty"`
	SearchURL   string     `yaml:"search_url" json:"search_url,omitempty"`
	Citation    string     `yaml:"citation" json:"citation,omitempty"`
}

// UnmarshalYAML accepts the long method labels as well as the short ones.
func (m *Method) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseMethod(value.Value)
	if err != nil {
		// Validate reports the label together with the dataset id.
		*m = Method(value.Value)
		return nil
	}
	*m = parsed
	return nil
}

// Record validation errors
var (
	ErrEmptyID          = errors.New("dataset id is empty")
	ErrNoBioProjects    = errors.New("dataset has no BioProject accessions")
	ErrInvertedRange    = errors.New("estimate range has low > high")
	ErrBadBioProject    = errors.New("malformed BioProject accession")
	ErrUnknownMethod    = errors.New("unknown sequencing method")
	ErrDuplicateProject = errors.New("duplicate BioProject accession")
)

// Validate checks the record invariants
func (d DatasetRecord) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyID
	}
	if !d.Method.Valid() {
		return fmt.Errorf("%s: %w: %q", d.ID, ErrUnknownMethod, d.Method)
	}
	if len(d.BioProjects) == 0 {
		return fmt.Errorf("%s: %w", d.ID, ErrNoBioProjects)
	}
	seen := make(map[string]struct{}, len(d.BioProjects))
	for _, acc := range d.BioProjects {
		if !IsBioProjectAccession(acc) {
			return fmt.Errorf("%s: %w: %q", d.ID, ErrBadBioProject, acc)
		}
		if _, dup := seen[acc]; dup {
			return fmt.Errorf("%s: %w: %s", d.ID, ErrDuplicateProject, acc)
		}
		seen[acc] = struct{}{}
	}
	if d.Size.LowGB > d.Size.HighGB {
		return fmt.Errorf("%s: size: %w", d.ID, ErrInvertedRange)
	}
	if d.Samples.Low > d.Samples.High {
		return fmt.Errorf("%s: samples: %w", d.ID, ErrInvertedRange)
	}
	return nil
}

// HasBioProject reports whether acc belongs to the dataset
func (d DatasetRecord) HasBioProject(acc string) bool {
	for _, p := range d.BioProjects {
		if p == acc {
			return true
		}
	}
	return false
}
