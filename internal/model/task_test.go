package model

import (
	"testing"
	"time"
)

func TestFetchTask_GetDurationString(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed  time.Duration
		expected string
	}{
		{0, "—"},
		{30 * time.Second, "00:30"},
		{90 * time.Second, "01:30"},
		{time.Hour, "01:00:00"},
		{3661 * time.Second, "01:01:01"},
		{7323 * time.Second, "02:02:03"},
	}

	for _, test := range tests {
		task := &FetchTask{StartedAt: start, FinishedAt: start.Add(test.elapsed)}
		result := task.GetDurationString()
		if result != test.expected {
			t.Errorf("GetDurationString() with elapsed=%v = %s, expected %s", test.elapsed, result, test.expected)
		}
	}
}

func TestFetchTask_NeverStarted(t *testing.T) {
	task := &FetchTask{}
	if task.Duration() != 0 {
		t.Errorf("Expected zero duration, got %v", task.Duration())
	}
	if task.GetDurationString() != "—" {
		t.Errorf("Expected placeholder, got %s", task.GetDurationString())
	}
}

func TestFetchTask_Label(t *testing.T) {
	tests := []struct {
		task     FetchTask
		expected string
	}{
		{FetchTask{DatasetID: "ds", BioProject: "PRJNA1", Run: "SRR1"}, "PRJNA1/SRR1"},
		{FetchTask{DatasetID: "ds", BioProject: "PRJNA1"}, "PRJNA1"},
		{FetchTask{DatasetID: "ds"}, "ds"},
	}

	for _, test := range tests {
		result := test.task.Label()
		if result != test.expected {
			t.Errorf("Label() = '%s', expected '%s'", result, test.expected)
		}
	}
}

func TestStepKind_IsPerRun(t *testing.T) {
	if StepMetadata.IsPerRun() {
		t.Error("metadata step is per BioProject, not per run")
	}
	for _, k := range []StepKind{StepPrefetch, StepDump, StepCompress} {
		if !k.IsPerRun() {
			t.Errorf("%s should be per run", k)
		}
	}
}

func TestProject_AddRunDeduplicates(t *testing.T) {
	p := NewProject("ds", "PRJNA1")
	if !p.AddRun(&Run{Accession: "SRR1", Bytes: 10}) {
		t.Fatal("first add should succeed")
	}
	if p.AddRun(&Run{Accession: "SRR1"}) {
		t.Error("duplicate accession should be rejected")
	}
	p.AddRun(&Run{Accession: "SRR2", Bytes: 5})

	if got := p.RunAccessions(); len(got) != 2 || got[0] != "SRR1" || got[1] != "SRR2" {
		t.Errorf("unexpected accessions %v", got)
	}
	if p.TotalBytes() != 15 {
		t.Errorf("Expected 15 bytes, got %d", p.TotalBytes())
	}
}
