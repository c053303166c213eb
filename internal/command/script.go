package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/molluscomics/seqfetch/internal/model"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// Script constants
const (
	ScriptShebang   = "#!/usr/bin/env bash"
	ScriptStrict    = "set -euo pipefail"
	scriptRunVar    = `"$run"`
	scriptRunsArray = "runs"
	sraToolsURL     = "https://github.com/ncbi/sra-tools"
)

// ErrNoPlans is returned when a script is requested for no dataset
var ErrNoPlans = errors.New("no datasets to script")

// WriteScript emits one bash script equivalent to executing plans in order.
// Resolved projects get one block per run; unresolved ones read the run table
// written by the metadata step. A failed dump is retried with the fallback
// tool.
func WriteScript(w io.Writer, plans ...*Plan) error {
	if len(plans) == 0 {
		return ErrNoPlans
	}
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	opts := plans[0].Options
	ids := make([]string, 0, len(plans))
	for _, plan := range plans {
		ids = append(ids, plan.Dataset.ID)
	}
	total := UpperGB(plans)

	p("%s\n", ScriptShebang)
	p("# datasets: %s\n", strings.Join(ids, " "))
	p("# estimated total size: up to %g GB\n", total)
	if opts.MaxRuns > 0 {
		p("# max runs per bioproject: %d\n", opts.MaxRuns)
	}
	p("%s\n\n", ScriptStrict)
	writeToolCheck(bw, opts)
	p("echo \"Started at: $(date)\"\n")

	for _, plan := range plans {
		writeDataset(bw, plan)
	}

	layout := platform.NewLayout(opts.OutputDir)
	dirs := make([]string, 0, len(ids))
	for _, id := range ids {
		dirs = append(dirs, shellescape.Quote(layout.DatasetDir(id)))
	}
	p("\necho \"Finished at: $(date)\"\n")
	p("echo %s\n", shellescape.Quote(fmt.Sprintf("Estimated total size: up to %g GB", total)))
	p("echo 'Verifying downloads...'\n")
	p("find %s -name '*%s*' -type f 2>/dev/null | wc -l | xargs echo 'Total FASTQ files:' || true\n",
		strings.Join(dirs, " "), platform.FastqExtension)
	p("du -sh %s 2>/dev/null | sort -h || true\n", strings.Join(dirs, " "))
	return bw.Flush()
}

// writeToolCheck stops the script early when a needed tool is missing. Either
// dump tool is enough.
func writeToolCheck(w io.Writer, opts Options) {
	tools := []string{shellescape.Quote(opts.Tools.Metadata)}
	if opts.Prefetch {
		tools = append(tools, shellescape.Quote(opts.Tools.Prefetch))
	}
	if opts.Compress {
		tools = append(tools, shellescape.Quote(opts.Tools.Compress))
	}

	fmt.Fprint(w, "command_exists() {\n  command -v \"$1\" >/dev/null 2>&1\n}\n")
	fmt.Fprintf(w, "for tool in %s; do\n", strings.Join(tools, " "))
	fmt.Fprint(w, "  if ! command_exists \"$tool\"; then\n    echo \"Error: $tool not found on PATH\" >&2\n    exit 1\n  fi\ndone\n")
	fmt.Fprintf(w, "if ! command_exists %s && ! command_exists %s; then\n",
		shellescape.Quote(opts.Tools.Dump), shellescape.Quote(opts.Tools.Fallback))
	fmt.Fprintf(w, "  echo %s >&2\n  exit 1\nfi\n",
		shellescape.Quote("Error: SRA Toolkit not found. Install sra-tools: "+sraToolsURL))
}

func writeDataset(bw *bufio.Writer, plan *Plan) {
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	rec := plan.Dataset
	p("\n# ==== %s\n", rec.ID)
	if rec.Description != "" {
		p("# %s\n", strings.Join(strings.Fields(rec.Description), " "))
	}
	p("# method: %s\n", rec.Method)
	p("# estimated size: %s\n", rec.Size)
	p("# estimated samples: %s\n", rec.Samples)
	p("# bioprojects: %s\n", strings.Join(rec.BioProjects, " "))
	p("echo %s\n", shellescape.Quote("Starting dataset "+rec.ID))

	for _, pp := range plan.Projects {
		if pp.Resolved {
			p("\n# %s: %d run(s) from an earlier metadata table\n", pp.Accession, pp.Invocations(model.StepDump))
		} else {
			p("\n# %s\n", pp.Accession)
		}
		writeMkdir(bw, "", pp.Metadata.Dirs, "")
		p("%s\n", pp.Metadata.String())

		if pp.Resolved {
			for i, cmds := range pp.PerRun {
				p("\n# %s\n", pp.Runs[i])
				writeRun(bw, "", plan.Options, cmds, pp.Fallback[i], "")
			}
			continue
		}

		p("mapfile -t %s < <(%s)\n", scriptRunsArray, runListPipeline(pp.Metadata.Output, plan.Options.MaxRuns))
		p("for run in ${%s[@]+\"${%s[@]}\"}; do\n", scriptRunsArray, scriptRunsArray)
		for i, cmds := range pp.PerRun {
			writeRun(bw, "  ", plan.Options, cmds, pp.Fallback[i], scriptRunVar)
		}
		p("done\n")
	}
}

// writeRun emits the commands of one run. expr is the shell word substituted
// for a templated run, empty for a known run.
func writeRun(w io.Writer, indent string, opts Options, cmds []Command, fallback Command, expr string) {
	render := func(c Command) string {
		if expr == "" {
			return c.String()
		}
		return c.Render(expr)
	}

	for _, c := range cmds {
		writeMkdir(w, indent, c.Dirs, expr)
		if c.Step != model.StepDump {
			fmt.Fprintf(w, "%s%s\n", indent, render(c))
			continue
		}
		if !opts.Compress {
			fmt.Fprintf(w, "%sif ! %s; then\n", indent, render(c))
			fmt.Fprintf(w, "%s  %s\n", indent, render(fallback))
			fmt.Fprintf(w, "%sfi\n", indent)
			continue
		}
		dir := c.Output
		if expr != "" {
			dir = renderArg(dir, expr)
		}
		// fastq-dump already writes gzipped files.
		fmt.Fprintf(w, "%sif %s; then\n", indent, render(c))
		fmt.Fprintf(w, "%s  %s\n", indent, CompressLine(opts, dir))
		fmt.Fprintf(w, "%selse\n", indent)
		fmt.Fprintf(w, "%s  %s\n", indent, render(fallback))
		fmt.Fprintf(w, "%sfi\n", indent)
	}
}

func writeMkdir(w io.Writer, indent string, dirs []string, expr string) {
	for _, d := range dirs {
		word := shellescape.Quote(d)
		if expr != "" {
			word = renderArg(d, expr)
		}
		fmt.Fprintf(w, "%smkdir -p %s\n", indent, word)
	}
}

// CompressLine compresses every FASTQ in dir; dir is either a plain path or
// an already rendered shell word.
func CompressLine(opts Options, dir string) string {
	if !strings.Contains(dir, scriptRunVar) {
		dir = shellescape.Quote(dir)
	}
	var b strings.Builder
	b.WriteString(shellescape.Quote(opts.Tools.Compress))
	if opts.Tools.Compress == platform.PigzCommand {
		fmt.Fprintf(&b, " -p %d", opts.Threads)
	}
	fmt.Fprintf(&b, " %s/*%s", dir, platform.FastqExtension)
	return b.String()
}

// runListPipeline prints distinct run accessions from a pysradb or runinfo
// table, stopping after max when max > 0.
func runListPipeline(table string, max int) string {
	prog := `NR==1{FS=(index($0,"\t")?"\t":","); $0=$0; for(i=1;i<=NF;i++) if($i=="run_accession"||$i=="Run") c=i; next} ` +
		`c && $c ~ /^[SED]RR[0-9]+$/ && !seen[$c]++ {print $c; if (max && ++n >= max) exit}`
	return fmt.Sprintf("awk -v max=%d %s %s", max, shellescape.Quote(prog), shellescape.Quote(table))
}
