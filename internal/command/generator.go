package command

import (
	"strconv"

	"github.com/molluscomics/seqfetch/internal/model"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// Tools names the executables the generator emits.
type Tools struct {
	Metadata string
	Prefetch string
	Dump     string
	// Fallback replaces Dump for a run whose dump failed. It writes gzipped
	// FASTQ itself.
	Fallback string
	Compress string
}

// DefaultTools returns the stock executable names.
func DefaultTools() Tools {
	return Tools{
		Metadata: platform.PysradbCommand,
		Prefetch: platform.PrefetchCommand,
		Dump:     platform.FasterqDumpCommand,
		Fallback: platform.FastqDumpCommand,
		Compress: platform.PigzCommand,
	}
}

// Options controls generation.
type Options struct {
	OutputDir string
	// MaxRuns caps the runs fetched per BioProject; 0 means no cap.
	MaxRuns int
	// Threads is passed straight through to the dump and compress tools.
	Threads  int
	Prefetch bool
	Compress bool
	Tools    Tools
}

// Generator turns a dataset selection into commands.
type Generator struct {
	opts   Options
	layout platform.Layout
}

// NewGenerator returns a generator; zero tool names fall back to defaults.
func NewGenerator(opts Options) *Generator {
	def := DefaultTools()
	if opts.Tools.Metadata == "" {
		opts.Tools.Metadata = def.Metadata
	}
	if opts.Tools.Prefetch == "" {
		opts.Tools.Prefetch = def.Prefetch
	}
	if opts.Tools.Dump == "" {
		opts.Tools.Dump = def.Dump
	}
	if opts.Tools.Fallback == "" {
		opts.Tools.Fallback = def.Fallback
	}
	if opts.Tools.Compress == "" {
		opts.Tools.Compress = def.Compress
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.MaxRuns < 0 {
		opts.MaxRuns = 0
	}
	return &Generator{opts: opts, layout: platform.NewLayout(opts.OutputDir)}
}

// Options returns the effective options.
func (g *Generator) Options() Options {
	return g.opts
}

// Layout returns the output tree layout.
func (g *Generator) Layout() platform.Layout {
	return g.layout
}

// MetadataCommand fetches the run table of one BioProject.
func (g *Generator) MetadataCommand(dataset, bioproject string) Command {
	out := g.layout.MetadataPath(dataset, bioproject)
	return Command{
		Step:       model.StepMetadata,
		Dataset:    dataset,
		BioProject: bioproject,
		Name:       g.opts.Tools.Metadata,
		Args:       []string{"metadata", bioproject, "--detailed", "--saveto", out},
		Dirs:       []string{g.layout.ProjectDir(dataset, bioproject)},
		Output:     out,
	}
}

// RunCommands fetches one run. run may be RunPlaceholder.
func (g *Generator) RunCommands(dataset, bioproject, run string) []Command {
	projectDir := g.layout.ProjectDir(dataset, bioproject)
	runDir := g.layout.RunDir(dataset, bioproject, run)
	threads := strconv.Itoa(g.opts.Threads)

	var cmds []Command
	source := run
	if g.opts.Prefetch {
		cmds = append(cmds, Command{
			Step:       model.StepPrefetch,
			Dataset:    dataset,
			BioProject: bioproject,
			Run:        run,
			Name:       g.opts.Tools.Prefetch,
			Args:       []string{run, "--output-directory", projectDir},
			Dirs:       []string{projectDir},
			Output:     runDir,
		})
		// prefetch leaves <projectDir>/<run>/<run>.sra; dump from that copy.
		source = runDir
	}
	cmds = append(cmds, Command{
		Step:       model.StepDump,
		Dataset:    dataset,
		BioProject: bioproject,
		Run:        run,
		Name:       g.opts.Tools.Dump,
		Args:       []string{source, "--split-files", "--threads", threads, "--outdir", runDir},
		Dirs:       []string{runDir},
		Output:     runDir,
	})
	return cmds
}

// FallbackCommand dumps one run with the older fastq-dump, gzipping as it
// writes. run may be RunPlaceholder.
func (g *Generator) FallbackCommand(dataset, bioproject, run string) Command {
	runDir := g.layout.RunDir(dataset, bioproject, run)
	return Command{
		Step:       model.StepDump,
		Dataset:    dataset,
		BioProject: bioproject,
		Run:        run,
		Name:       g.opts.Tools.Fallback,
		Args:       []string{run, "--split-files", "--gzip", "--outdir", runDir},
		Dirs:       []string{runDir},
		Output:     runDir,
	}
}

// CompressCommand gzips files in place; the files are listed after the dump.
func (g *Generator) CompressCommand(dataset, bioproject, run string, files []string) Command {
	args := []string{}
	if g.opts.Tools.Compress == platform.PigzCommand {
		args = append(args, "-p", strconv.Itoa(g.opts.Threads))
	}
	args = append(args, files...)
	return Command{
		Step:       model.StepCompress,
		Dataset:    dataset,
		BioProject: bioproject,
		Run:        run,
		Name:       g.opts.Tools.Compress,
		Args:       args,
		Output:     g.layout.RunDir(dataset, bioproject, run),
	}
}

// CapRuns keeps at most max runs in order; max <= 0 keeps all.
func CapRuns(runs []string, max int) []string {
	if max <= 0 || len(runs) <= max {
		return runs
	}
	return runs[:max]
}

// ProjectPlan is the commands for one BioProject.
type ProjectPlan struct {
	Accession string
	Metadata  Command
	// Runs is nil when the run table is not available yet.
	Runs     []string
	Resolved bool
	// PerRun holds the commands for each entry of Runs, or a single
	// templated entry when Resolved is false.
	PerRun [][]Command
	// Fallback holds the fallback dump for each entry of PerRun.
	Fallback []Command
}

// Invocations counts the per-run commands of the given step.
func (p ProjectPlan) Invocations(step model.StepKind) int {
	n := 0
	for _, cmds := range p.PerRun {
		for _, c := range cmds {
			if c.Step == step {
				n++
			}
		}
	}
	return n
}

// UpperGB returns the summed upper size estimate of plans in gigabytes.
func UpperGB(plans []*Plan) float64 {
	var total float64
	for _, p := range plans {
		total += p.Dataset.Size.HighGB
	}
	return total
}

// Plan is the full command sequence for a selection.
type Plan struct {
	Dataset  model.DatasetRecord
	Options  Options
	Projects []ProjectPlan
}

// Commands flattens the plan in execution order; templated commands are
// included as-is.
func (p *Plan) Commands() []Command {
	var out []Command
	for _, pp := range p.Projects {
		out = append(out, pp.Metadata)
		for _, cmds := range pp.PerRun {
			out = append(out, cmds...)
		}
	}
	return out
}

// Plan builds the plan for the selected BioProjects. runs maps a BioProject to
// its known run accessions; projects missing from runs get a templated entry.
func (g *Generator) Plan(rec model.DatasetRecord, bioprojects []string, runs map[string][]string) *Plan {
	plan := &Plan{Dataset: rec, Options: g.opts}
	for _, acc := range bioprojects {
		pp := ProjectPlan{
			Accession: acc,
			Metadata:  g.MetadataCommand(rec.ID, acc),
		}
		if known, ok := runs[acc]; ok {
			pp.Resolved = true
			pp.Runs = CapRuns(known, g.opts.MaxRuns)
			for _, run := range pp.Runs {
				pp.PerRun = append(pp.PerRun, g.RunCommands(rec.ID, acc, run))
				pp.Fallback = append(pp.Fallback, g.FallbackCommand(rec.ID, acc, run))
			}
		} else {
			pp.PerRun = [][]Command{g.RunCommands(rec.ID, acc, RunPlaceholder)}
			pp.Fallback = []Command{g.FallbackCommand(rec.ID, acc, RunPlaceholder)}
		}
		plan.Projects = append(plan.Projects, pp)
	}
	return plan
}
