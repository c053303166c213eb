package model

import (
	"time"
)

// ProjectStatus represents the current status of a BioProject fetch
type ProjectStatus string

const (
	ProjectStatusPlanned    ProjectStatus = "planned"
	ProjectStatusResolved   ProjectStatus = "resolved"
	ProjectStatusUnresolved ProjectStatus = "unresolved"
	ProjectStatusFetching   ProjectStatus = "fetching"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusError      ProjectStatus = "error"
)

// Run represents a single run accession listed in a BioProject metadata table
type Run struct {
	Accession  string `json:"accession"`
	Experiment string `json:"experiment,omitempty"`
	Sample     string `json:"sample,omitempty"`
	Layout     string `json:"layout,omitempty"` // PAIRED or SINGLE
	Spots      int64  `json:"spots,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
}

// IsPaired reports whether the run has paired reads
func (r *Run) IsPaired() bool {
	return r.Layout == "PAIRED"
}

// Project represents a BioProject under a dataset with its resolved runs
type Project struct {
	Accession    string        `json:"accession"`
	DatasetID    string        `json:"dataset_id"`
	Runs         []*Run        `json:"runs"`
	Status       ProjectStatus `json:"status"`
	MetadataPath string        `json:"metadata_path,omitempty"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewProject creates a new project instance
func NewProject(datasetID, accession string) *Project {
	now := time.Now()
	return &Project{
		Accession: accession,
		DatasetID: datasetID,
		Status:    ProjectStatusPlanned,
		Runs:      make([]*Run, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddRun adds a run unless its accession is already present
func (p *Project) AddRun(run *Run) bool {
	for _, existing := range p.Runs {
		if existing.Accession == run.Accession {
			return false
		}
	}
	p.Runs = append(p.Runs, run)
	p.UpdatedAt = time.Now()
	return true
}

// UpdateStatus updates the project status
func (p *Project) UpdateStatus(status ProjectStatus) {
	p.Status = status
	p.UpdatedAt = time.Now()
}

// RunAccessions returns the accessions in table order
func (p *Project) RunAccessions() []string {
	out := make([]string, 0, len(p.Runs))
	for _, r := range p.Runs {
		out = append(out, r.Accession)
	}
	return out
}

// TotalBytes sums the reported sizes of all runs
func (p *Project) TotalBytes() int64 {
	var total int64
	for _, r := range p.Runs {
		total += r.Bytes
	}
	return total
}
