package model

import (
	"fmt"
	"time"
)

// StepKind identifies what an external invocation does
type StepKind string

const (
	StepMetadata StepKind = "metadata"
	StepPrefetch StepKind = "prefetch"
	StepDump     StepKind = "dump"
	StepCompress StepKind = "compress"
)

// IsPerRun reports whether the step targets a single run accession
func (k StepKind) IsPerRun() bool {
	return k == StepPrefetch || k == StepDump || k == StepCompress
}

// FetchTask represents a single external invocation
type FetchTask struct {
	ID         string
	DatasetID  string
	BioProject string
	Run        string // empty for metadata steps
	Step       StepKind
	Command    string // rendered command line
	Status     TaskStatus
	ExitCode   int
	LastError  string
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// CompressionTask represents a single compression invocation over a run directory
type CompressionTask struct {
	ID         string
	Run        string
	Inputs     []string
	Status     TaskStatus
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the elapsed wall time, zero if the task never started
func (ft *FetchTask) Duration() time.Duration {
	if ft.StartedAt.IsZero() {
		return 0
	}
	if ft.FinishedAt.IsZero() {
		return time.Since(ft.StartedAt)
	}
	return ft.FinishedAt.Sub(ft.StartedAt)
}

// GetDurationString returns the duration formatted as hh:mm:ss, or "—" if unknown
func (ft *FetchTask) GetDurationString() string {
	d := ft.Duration()
	if d <= 0 {
		return "—"
	}

	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Label returns run, BioProject, or dataset in order of preference
func (ft *FetchTask) Label() string {
	switch {
	case ft.Run != "":
		return fmt.Sprintf("%s/%s", ft.BioProject, ft.Run)
	case ft.BioProject != "":
		return ft.BioProject
	default:
		return ft.DatasetID
	}
}
