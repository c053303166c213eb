package fetch

import (
	"time"

	"github.com/molluscomics/seqfetch/internal/model"
)

// Report summarizes one Fetch call
type Report struct {
	Dataset      model.DatasetRecord
	Projects     []*model.Project
	Tasks        []*model.FetchTask
	Compressions []*model.CompressionTask
	DryRun       bool
	OutputDir  string
	Bytes      int64
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) finish(tasks []*model.FetchTask, compressions []*model.CompressionTask) {
	r.Tasks = tasks
	r.Compressions = compressions
	r.FinishedAt = time.Now()
}

// Count returns the number of tasks in status
func (r *Report) Count(status model.TaskStatus) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Failed returns the tasks that ended in Error or Stopped. A failed dump
// whose run was then fetched by the fallback is not a failure.
func (r *Report) Failed() []*model.FetchTask {
	fetched := r.runsWithDump(model.TaskStatusCompleted)
	var out []*model.FetchTask
	for _, t := range r.Tasks {
		if !t.Status.IsFailure() {
			continue
		}
		if _, ok := fetched[t.Label()]; ok && t.Step == model.StepDump {
			continue
		}
		out = append(out, t)
	}
	return out
}

// RunsFetched counts distinct runs whose dump step completed
func (r *Report) RunsFetched() int {
	return len(r.runsWithDump(model.TaskStatusCompleted))
}

// RunsSkipped counts distinct runs whose dump step was skipped, either
// because reads were already present or because of a dry run
func (r *Report) RunsSkipped() int {
	return len(r.runsWithDump(model.TaskStatusSkipped))
}

// ListedBytes sums the run sizes reported by the metadata tables
func (r *Report) ListedBytes() int64 {
	var total int64
	for _, p := range r.Projects {
		total += p.TotalBytes()
	}
	return total
}

// Compressed counts runs whose compression completed
func (r *Report) Compressed() int {
	n := 0
	for _, c := range r.Compressions {
		if c.Status == model.TaskStatusCompleted {
			n++
		}
	}
	return n
}

func (r *Report) runsWithDump(status model.TaskStatus) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, t := range r.Tasks {
		if t.Step == model.StepDump && t.Status == status {
			seen[t.Label()] = struct{}{}
		}
	}
	return seen
}

// Duration returns the wall time of the fetch
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
