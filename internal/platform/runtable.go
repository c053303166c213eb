package platform

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/molluscomics/seqfetch/internal/model"
)

// Column names accepted for each field. The first list entry is the pysradb
// header, the second is the NCBI runinfo header.
var (
	RunColumns        = []string{"run_accession", "Run"}
	ExperimentColumns = []string{"experiment_accession", "Experiment"}
	SampleColumns     = []string{"sample_accession", "Sample"}
	LayoutColumns     = []string{"library_layout", "LibraryLayout"}
	SpotsColumns      = []string{"total_spots", "spots"}
	BytesColumns      = []string{"total_size", "run_total_bases_size"}
	SizeMBColumns     = []string{"size_MB"}
)

const bytesPerMB = 1 << 20

var runAccessionPattern = regexp.MustCompile(`^[SED]RR\d+$`)

// ErrNoRunColumn is returned when the table header has no run accession column
var ErrNoRunColumn = errors.New("run table has no run accession column")

// IsRunAccession reports whether s looks like an SRA/ENA/DDBJ run accession
func IsRunAccession(s string) bool {
	return runAccessionPattern.MatchString(s)
}

// ParseRunTableFile opens path and parses it with ParseRunTable
func ParseRunTableFile(path string) ([]*model.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run table: %w", err)
	}
	defer f.Close()
	return ParseRunTable(f)
}

// ParseRunTable reads a tab- or comma-separated run table and returns runs in
// table order. Rows whose run column is not a run accession (blank lines,
// repeated headers) are skipped; duplicates keep their first occurrence.
func ParseRunTable(r io.Reader) ([]*model.Run, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read run table: %w", err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, nil
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read run table header: %w", err)
	}
	cols := indexColumns(header)
	runIdx := findColumn(cols, RunColumns)
	if runIdx < 0 {
		return nil, ErrNoRunColumn
	}

	expIdx := findColumn(cols, ExperimentColumns)
	sampleIdx := findColumn(cols, SampleColumns)
	layoutIdx := findColumn(cols, LayoutColumns)
	spotsIdx := findColumn(cols, SpotsColumns)
	bytesIdx := findColumn(cols, BytesColumns)
	sizeMBIdx := findColumn(cols, SizeMBColumns)

	var runs []*model.Run
	seen := make(map[string]struct{})
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read run table: %w", err)
		}

		acc := field(rec, runIdx)
		if !IsRunAccession(acc) {
			continue
		}
		if _, dup := seen[acc]; dup {
			continue
		}
		seen[acc] = struct{}{}

		run := &model.Run{
			Accession:  acc,
			Experiment: field(rec, expIdx),
			Sample:     field(rec, sampleIdx),
			Layout:     strings.ToUpper(field(rec, layoutIdx)),
			Spots:      parseInt(field(rec, spotsIdx)),
			Bytes:      parseInt(field(rec, bytesIdx)),
		}
		if run.Bytes == 0 {
			run.Bytes = parseInt(field(rec, sizeMBIdx)) * bytesPerMB
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// detectDelimiter picks tab when the first line contains one
func detectDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.IndexByte(line, '\t') >= 0 {
		return '\t'
	}
	return ','
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func findColumn(cols map[string]int, names []string) int {
	for _, name := range names {
		if i, ok := cols[name]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
