package command

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molluscomics/seqfetch/internal/model"
)

func renderScript(t *testing.T, opts Options, runs map[string][]string) string {
	t.Helper()
	rec := testRecord()
	plan := NewGenerator(opts).Plan(rec, rec.BioProjects, runs)
	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, plan))
	return buf.String()
}

// bashSyntaxCheck runs `bash -n` over script when bash is available.
func bashSyntaxCheck(t *testing.T, script string) {
	t.Helper()
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	path := filepath.Join(t.TempDir(), "fetch.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	out, err := exec.Command(bash, "-n", path).CombinedOutput()
	require.NoError(t, err, "bash -n: %s\n%s", out, script)
}

func countLines(script, prefix string) int {
	n := 0
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			n++
		}
	}
	return n
}

func TestWriteScriptResolved(t *testing.T) {
	runs := map[string][]string{"PRJNA1": runList(5), "PRJNA2": runList(2)}
	script := renderScript(t, Options{OutputDir: "/out", MaxRuns: 3, Threads: 2}, runs)

	assert.True(t, strings.HasPrefix(script, ScriptShebang+"\n"))
	assert.Contains(t, script, ScriptStrict)
	assert.Equal(t, 2, countLines(script, "pysradb metadata"))
	// 3 capped runs of PRJNA1 plus 2 runs of PRJNA2
	assert.Equal(t, 5, countLines(script, "if ! fasterq-dump"))
	assert.Equal(t, 5, countLines(script, "fastq-dump SRR"))
	assert.Contains(t, script, "if ! fasterq-dump SRR100 --split-files --threads 2 --outdir /out/wgbs-test/PRJNA1/SRR100; then\n"+
		"  fastq-dump SRR100 --split-files --gzip --outdir /out/wgbs-test/PRJNA1/SRR100\nfi\n")
	assert.Contains(t, script, "# PRJNA1: 3 run(s) from an earlier metadata table")
	assert.NotContains(t, script, "/out/wgbs-test/PRJNA1/SRR103")
	assert.NotContains(t, script, "\x00")

	bashSyntaxCheck(t, script)
}

func TestWriteScriptUnresolvedLoop(t *testing.T) {
	script := renderScript(t, Options{OutputDir: "/data/my runs", MaxRuns: 4, Prefetch: true, Compress: true}, nil)

	assert.Equal(t, 2, countLines(script, "mapfile -t runs"))
	assert.Contains(t, script, "awk -v max=4 ")
	assert.Contains(t, script, `prefetch "$run" --output-directory '/data/my runs/wgbs-test/PRJNA1'`)
	assert.Contains(t, script, `--outdir '/data/my runs/wgbs-test/PRJNA1/'"$run"; then`)
	assert.Contains(t, script, `    pigz -p 1 '/data/my runs/wgbs-test/PRJNA1/'"$run"/*.fastq`)
	assert.Contains(t, script, `    fastq-dump "$run" --split-files --gzip --outdir '/data/my runs/wgbs-test/PRJNA1/'"$run"`)
	assert.Contains(t, script, `for tool in pysradb prefetch pigz; do`)
	assert.NotContains(t, script, "\x00")

	bashSyntaxCheck(t, script)
}

func TestWriteScriptCompressResolved(t *testing.T) {
	script := renderScript(t, Options{OutputDir: "/out", Compress: true, Threads: 3},
		map[string][]string{"PRJNA1": {"SRR1"}, "PRJNA2": {}})

	assert.Equal(t, 1, countLines(script, "pigz -p 3 /out/wgbs-test/PRJNA1/SRR1/*.fastq"))
	assert.Equal(t, 1, countLines(script, "if fasterq-dump"))
	assert.Equal(t, 1, countLines(script, "else"))
	bashSyntaxCheck(t, script)
}

func TestWriteScriptMultipleDatasets(t *testing.T) {
	g := NewGenerator(Options{OutputDir: "/out"})
	first := testRecord()
	second := model.DatasetRecord{
		ID:          "rrbs-test",
		Method:      model.MethodRRBS,
		BioProjects: []string{"PRJNA3"},
		Size:        model.SizeRange{LowGB: 40, HighGB: 80},
		Samples:     model.CountRange{Low: 20, High: 30},
		Description: "Environmental Stress RRBS",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf,
		g.Plan(first, first.BioProjects, nil),
		g.Plan(second, second.BioProjects, map[string][]string{"PRJNA3": {"SRR7"}}),
	))
	script := buf.String()

	assert.Equal(t, 1, strings.Count(script, ScriptShebang))
	assert.Contains(t, script, "# datasets: wgbs-test rrbs-test\n")
	assert.Contains(t, script, "# estimated total size: up to 82 GB\n")
	assert.Contains(t, script, "echo 'Estimated total size: up to 82 GB'\n")
	assert.Contains(t, script, "# ==== rrbs-test\n# Environmental Stress RRBS\n# method: RRBS\n# estimated size: 40-80 GB\n# estimated samples: 20-30\n")
	assert.Equal(t, 3, countLines(script, "pysradb metadata"))
	assert.Less(t, strings.Index(script, "# ==== wgbs-test"), strings.Index(script, "# ==== rrbs-test"))

	assert.Contains(t, script, "if ! command_exists fasterq-dump && ! command_exists fastq-dump; then")
	assert.Less(t, strings.Index(script, "command_exists fasterq-dump"), strings.Index(script, "pysradb metadata"))
	assert.Contains(t, script, "find /out/wgbs-test /out/rrbs-test -name '*.fastq*' -type f")
	assert.Contains(t, script, "du -sh /out/wgbs-test /out/rrbs-test")

	bashSyntaxCheck(t, script)
}

func TestWriteScriptNoPlans(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteScript(&buf), ErrNoPlans)
	assert.Empty(t, buf.String())
}

func TestWriteScriptRunsWithFallback(t *testing.T) {
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}

	// Stub tools: the primary dump always fails, the fallback records its call.
	bin := t.TempDir()
	out := t.TempDir()
	stubs := map[string]string{
		"pysradb":      "#!/bin/sh\nexit 0\n",
		"fasterq-dump": "#!/bin/sh\nexit 1\n",
		"fastq-dump":   "#!/bin/sh\necho \"$1\" >> \"$SEQFETCH_CALLS\"\n",
	}
	for name, body := range stubs {
		require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte(body), 0o755))
	}

	rec := testRecord()
	plan := NewGenerator(Options{OutputDir: out}).Plan(rec, []string{"PRJNA1"}, map[string][]string{"PRJNA1": {"SRR1", "SRR2"}})
	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, plan))
	path := filepath.Join(t.TempDir(), "fetch.sh")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o755))

	calls := filepath.Join(t.TempDir(), "calls")
	cmd := exec.Command(bash, path)
	cmd.Env = append(os.Environ(), "PATH="+bin+string(os.PathListSeparator)+os.Getenv("PATH"), "SEQFETCH_CALLS="+calls)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", output)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Equal(t, "SRR1\nSRR2\n", string(data))
	assert.Contains(t, string(output), "Total FASTQ files:")
}

func TestWriteScriptRunListFromTable(t *testing.T) {
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	if _, err := exec.LookPath("awk"); err != nil {
		t.Skip("awk not available")
	}

	dir := t.TempDir()
	table := filepath.Join(dir, "metadata.tsv")
	body := "study_accession\trun_accession\nSRP1\tSRR1\nSRP1\tSRR2\nSRP1\tSRR2\nSRP1\tSRR3\n"
	require.NoError(t, os.WriteFile(table, []byte(body), 0o644))

	out, err := exec.Command(bash, "-c", runListPipeline(table, 2)).Output()
	require.NoError(t, err)
	assert.Equal(t, "SRR1\nSRR2\n", string(out))

	out, err = exec.Command(bash, "-c", runListPipeline(table, 0)).Output()
	require.NoError(t, err)
	assert.Equal(t, "SRR1\nSRR2\nSRR3\n", string(out))
}
