package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const pysradbTable = "study_accession\texperiment_accession\tsample_accession\trun_accession\tlibrary_layout\ttotal_spots\ttotal_size\n" +
	"SRP001\tSRX1\tSRS1\tSRR1001\tPAIRED\t1000\t2048\n" +
	"SRP001\tSRX2\tSRS2\tSRR1002\tpaired\t2000\t4096\n" +
	"SRP001\tSRX2\tSRS2\tSRR1002\tPAIRED\t2000\t4096\n" +
	"SRP001\tSRX3\tSRS3\tSRR1003\tSINGLE\t\t\n"

const runinfoTable = "Run,ReleaseDate,spots,bases,size_MB,LibraryLayout,Experiment,Sample\n" +
	"SRR2001,2019-01-01,500,75000,12,PAIRED,SRX10,SRS10\n" +
	"\n" +
	"Run,ReleaseDate,spots,bases,size_MB,LibraryLayout,Experiment,Sample\n" +
	"SRR2002,2019-01-01,700,95000,3,SINGLE,SRX11,SRS11\n"

func TestParseRunTable_Pysradb(t *testing.T) {
	runs, err := ParseRunTable(strings.NewReader(pysradbTable))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].Accession != "SRR1001" || runs[0].Experiment != "SRX1" || runs[0].Sample != "SRS1" {
		t.Errorf("Unexpected first run: %+v", runs[0])
	}
	if !runs[1].IsPaired() {
		t.Error("Layout should be normalized to upper case")
	}
	if runs[0].Spots != 1000 || runs[0].Bytes != 2048 {
		t.Errorf("Unexpected counts: %+v", runs[0])
	}
	if runs[2].Spots != 0 || runs[2].Bytes != 0 {
		t.Errorf("Empty numeric fields should be zero: %+v", runs[2])
	}
}

func TestParseRunTable_Runinfo(t *testing.T) {
	runs, err := ParseRunTable(strings.NewReader(runinfoTable))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected repeated header to be skipped, got %d runs", len(runs))
	}
	if runs[0].Bytes != 12*bytesPerMB {
		t.Errorf("Expected size_MB fallback, got %d", runs[0].Bytes)
	}
	if runs[1].Accession != "SRR2002" || runs[1].Layout != "SINGLE" {
		t.Errorf("Unexpected second run: %+v", runs[1])
	}
}

func TestParseRunTable_Empty(t *testing.T) {
	runs, err := ParseRunTable(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no runs, got %d", len(runs))
	}
}

func TestParseRunTable_NoRunColumn(t *testing.T) {
	_, err := ParseRunTable(strings.NewReader("a\tb\n1\t2\n"))
	if !errors.Is(err, ErrNoRunColumn) {
		t.Errorf("Expected ErrNoRunColumn, got %v", err)
	}
}

func TestParseRunTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), MetadataFileName)
	if err := os.WriteFile(path, []byte(pysradbTable), 0644); err != nil {
		t.Fatal(err)
	}
	runs, err := ParseRunTableFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(runs))
	}

	if _, err := ParseRunTableFile(filepath.Join(t.TempDir(), "missing.tsv")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestIsRunAccession(t *testing.T) {
	for _, ok := range []string{"SRR1", "ERR123456", "DRR9"} {
		if !IsRunAccession(ok) {
			t.Errorf("%s should be accepted", ok)
		}
	}
	for _, bad := range []string{"", "Run", "SRX1", "PRJNA1", "SRR"} {
		if IsRunAccession(bad) {
			t.Errorf("%s should be rejected", bad)
		}
	}
}
