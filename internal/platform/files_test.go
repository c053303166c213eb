package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDirectoryIfNotExists(t *testing.T) {
	// Create temporary directory for testing
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "a", "b")

	// Directory should not exist initially
	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatalf("Test directory already exists: %s", testDir)
	}

	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if _, err := os.Stat(testDir); os.IsNotExist(err) {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestGetDefaultOutputDir(t *testing.T) {
	dir, err := GetDefaultOutputDir()
	if err != nil {
		t.Fatalf("Failed to get output directory: %v", err)
	}
	if filepath.Base(dir) != DefaultDirName {
		t.Errorf("Expected directory to end with %s, got: %s", DefaultDirName, dir)
	}
}

func TestLayout(t *testing.T) {
	l := NewLayout("/data/out/")
	if got := l.ProjectDir("ds", "PRJNA1"); got != "/data/out/ds/PRJNA1" {
		t.Errorf("ProjectDir = %s", got)
	}
	if got := l.MetadataPath("ds", "PRJNA1"); got != "/data/out/ds/PRJNA1/metadata.tsv" {
		t.Errorf("MetadataPath = %s", got)
	}
	if got := l.RunDir("ds", "PRJNA1", "SRR1"); got != "/data/out/ds/PRJNA1/SRR1" {
		t.Errorf("RunDir = %s", got)
	}
	if got := l.LogPath(); got != "/data/out/seqfetch.log" {
		t.Errorf("LogPath = %s", got)
	}
	if got := l.DatasetInfoPath("ds"); got != "/data/out/ds/dataset_info.json" {
		t.Errorf("DatasetInfoPath = %s", got)
	}
}

func TestExistingReads(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"SRR1_2.fastq.gz", "SRR1_1.fastq", "SRR1.fastq.gz", "SRR12_1.fastq", "SRR2.sra", "SRR1.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ExistingReads(dir, "SRR1")
	if err != nil {
		t.Fatalf("ExistingReads: %v", err)
	}
	want := []string{
		filepath.Join(dir, "SRR1.fastq.gz"),
		filepath.Join(dir, "SRR1_1.fastq"),
		filepath.Join(dir, "SRR1_2.fastq.gz"),
	}
	if len(got) != len(want) {
		t.Fatalf("ExistingReads = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExistingReads[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	got, err = ExistingReads(dir, "SRR2")
	if err != nil || len(got) != 0 {
		t.Errorf("ExistingReads(SRR2) = %v, %v", got, err)
	}
	got, err = ExistingReads(filepath.Join(dir, "missing"), "SRR1")
	if err != nil || len(got) != 0 {
		t.Errorf("ExistingReads(missing dir) = %v, %v", got, err)
	}
}

func TestListFastqAndDirSize(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"SRR1_2.fastq":    "bb",
		"SRR1_1.fastq":    "a",
		"SRR1_1.fastq.gz": "ccc",
		"notes.txt":       "dddd",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ListFastq(dir)
	if err != nil {
		t.Fatalf("ListFastq: %v", err)
	}
	want := []string{filepath.Join(dir, "SRR1_1.fastq"), filepath.Join(dir, "SRR1_2.fastq")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ListFastq = %v, want %v", got, want)
	}

	size, err := DirSize(dir)
	if err != nil {
		t.Fatalf("DirSize: %v", err)
	}
	if size != 10 {
		t.Errorf("DirSize = %d, want 10", size)
	}

	if !FileExists(filepath.Join(dir, "notes.txt")) || FileExists(dir) {
		t.Error("FileExists should accept files only")
	}
}

func TestCheckTools(t *testing.T) {
	statuses := CheckTools(context.Background(), []string{"seqfetch-definitely-missing"}, map[string]bool{
		"seqfetch-definitely-missing": true,
	})
	if len(statuses) != 1 || statuses[0].Found() {
		t.Fatalf("Expected missing tool, got %+v", statuses)
	}
	if err := MissingRequired(statuses); !errors.Is(err, ErrToolMissing) {
		t.Errorf("Expected ErrToolMissing, got %v", err)
	}

	statuses[0].Required = false
	if err := MissingRequired(statuses); err != nil {
		t.Errorf("Optional tools should not fail, got %v", err)
	}
}
