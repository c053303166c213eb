package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/config"
	"github.com/molluscomics/seqfetch/internal/fetch"
	"github.com/molluscomics/seqfetch/internal/model"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// ScriptFilePermissions is the mode of a script written with --file
const ScriptFilePermissions = 0o755

// selectionFlags holds the flags shared by fetch and script
type selectionFlags struct {
	bioproject string
	output     string
	maxRuns    int
	threads    int
	prefetch   bool
	compress   bool
	dryRun     bool
	keepGoing  bool
	scriptFile string
}

var sel selectionFlags

// fetchCmd retrieves a dataset
var fetchCmd = &cobra.Command{
	Use:   "fetch <dataset>",
	Short: "Fetch metadata and reads for a dataset",
	Long: `Runs, for each BioProject of the dataset, the metadata command that writes
<output>/<dataset>/<bioproject>/metadata.tsv, then fasterq-dump for every run
listed there (at most --max-runs per BioProject). Runs whose FASTQ files are
already in their directory are skipped; a failed fasterq-dump is retried with
fastq-dump --gzip. The catalog entry is saved as <output>/<dataset>/dataset_info.json.

--threads is passed to fasterq-dump and pigz; commands themselves run one at
a time. With --dry-run nothing is executed and no directory is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

// scriptCmd writes a bash script instead of executing
var scriptCmd = &cobra.Command{
	Use:   "script <dataset> [dataset...]",
	Short: "Write a bash script that fetches one or more datasets",
	Long: `Emits the same commands fetch would run as one bash script covering every
named dataset. Runs already listed in an existing metadata table get explicit
commands; otherwise the script reads the run list from the table its metadata
command writes. A failed fasterq-dump is retried with fastq-dump --gzip.

The script checks for the SRA Toolkit before doing anything and ends by
counting the FASTQ files it produced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func addSelectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&sel.bioproject, "bioproject", "b", "", "Restrict to one BioProject of the dataset")
	f.StringVarP(&sel.output, "output", "o", "", "Output directory")
	f.IntVarP(&sel.maxRuns, "max-runs", "n", 0, "Maximum runs per BioProject (0: no limit)")
	f.IntVarP(&sel.threads, "threads", "t", config.DefaultThreads, "Threads passed to fasterq-dump and pigz")
	f.BoolVar(&sel.prefetch, "prefetch", false, "Run prefetch before fasterq-dump")
	f.BoolVar(&sel.compress, "compress", false, "Compress FASTQ output after each run")
}

// applySelectionFlags overlays the flags that were set explicitly on s
func applySelectionFlags(cmd *cobra.Command, s *config.Settings) {
	f := cmd.Flags()
	if f.Changed("output") {
		s.SetOutputDir(sel.output)
	}
	if f.Changed("max-runs") {
		s.SetMaxRuns(sel.maxRuns)
	}
	if f.Changed("threads") {
		s.SetThreads(sel.threads)
	}
	if f.Changed("prefetch") {
		s.Prefetch = sel.prefetch
	}
	if f.Changed("compress") {
		s.Compress = sel.compress
	}
	if f.Changed("keep-going") {
		s.KeepGoing = sel.keepGoing
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	// Unknown selections fail before tools are checked or anything runs.
	if _, _, err := cat.Select(args[0], sel.bioproject); err != nil {
		return err
	}
	if !sel.dryRun {
		if err := requireTools(settings.RequiredTools()); err != nil {
			return err
		}
		if err := attachLogFile(settings.LogPath()); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := command.NewGenerator(settings.GeneratorOptions())
	svc := fetch.NewService(cat, gen, fetch.NewExecExecutor(logger), logger, fetch.Options{
		DryRun:    sel.dryRun,
		KeepGoing: settings.KeepGoing,
		Out:       cmd.OutOrStdout(),
	})
	svc.SetUpdateCallback(func(task *model.FetchTask) {
		if !task.Status.IsFinished() || task.Status == model.TaskStatusSkipped {
			return
		}
		fields := []zap.Field{
			zap.String("task", task.Label()),
			zap.String("step", string(task.Step)),
			zap.String("status", string(task.Status)),
			zap.String("elapsed", task.GetDurationString()),
		}
		if task.Step.IsPerRun() {
			fields = append(fields, zap.String("output", task.OutputPath))
		}
		logger.Info("Step finished", fields...)
	})

	report, err := svc.Fetch(ctx, args[0], sel.bioproject)
	if report != nil && !report.DryRun {
		printReport(cmd.ErrOrStderr(), report)
	}
	if err != nil && ctx.Err() != nil {
		logger.Warn("Fetch interrupted")
		return ctx.Err()
	}
	return err
}

func requireTools(names []string) error {
	var errs []error
	for _, name := range names {
		path, err := platform.LookupTool(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("Resolved tool", zap.String("name", name), zap.String("path", path))
	}
	return errors.Join(errs...)
}

func printReport(w io.Writer, r *fetch.Report) {
	fmt.Fprintf(w, "%s: %d BioProject(s), %d run(s) fetched, %d already present, %s on disk in %s\n",
		r.Dataset.ID, len(r.Projects), r.RunsFetched(), r.RunsSkipped(),
		humanize.Bytes(uint64(max(r.Bytes, 0))), r.Duration().Round(time.Second))
	if listed := r.ListedBytes(); listed > 0 {
		fmt.Fprintf(w, "  %s listed in metadata tables\n", humanize.Bytes(uint64(listed)))
	}
	if len(r.Compressions) > 0 {
		fmt.Fprintf(w, "  %d of %d run(s) compressed\n", r.Compressed(), len(r.Compressions))
	}
	for _, t := range r.Failed() {
		fmt.Fprintf(w, "  %s %s: %s\n", t.Status, t.Label(), t.LastError)
	}
}

func runScript(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	if sel.bioproject != "" && len(args) > 1 {
		return errors.New("--bioproject needs exactly one dataset")
	}

	gen := command.NewGenerator(settings.GeneratorOptions())
	plans := make([]*command.Plan, 0, len(args))
	commands := 0
	for _, id := range args {
		rec, accessions, err := cat.Select(id, sel.bioproject)
		if err != nil {
			return err
		}
		plan := gen.Plan(rec, accessions, knownRuns(gen, rec.ID, accessions))
		commands += len(plan.Commands())
		plans = append(plans, plan)
	}

	if sel.scriptFile == "" {
		return command.WriteScript(cmd.OutOrStdout(), plans...)
	}

	f, err := os.OpenFile(sel.scriptFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, ScriptFilePermissions)
	if err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	if err := command.WriteScript(f, plans...); err != nil {
		_ = f.Close()
		return fmt.Errorf("write script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	logger.Info("Script written",
		zap.String("path", sel.scriptFile),
		zap.Strings("datasets", args),
		zap.Int("commands", commands),
		zap.Float64("estimated_gb", command.UpperGB(plans)),
	)
	return nil
}

// knownRuns reads run tables left by earlier fetches; missing or unreadable
// tables leave the BioProject to be resolved by the script itself.
func knownRuns(gen *command.Generator, dataset string, accessions []string) map[string][]string {
	runs := make(map[string][]string)
	for _, acc := range accessions {
		path := gen.Layout().MetadataPath(dataset, acc)
		if !platform.FileExists(path) {
			continue
		}
		parsed, err := platform.ParseRunTableFile(path)
		if err != nil {
			logger.Warn("Ignoring run table", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, r := range parsed {
			runs[acc] = append(runs[acc], r.Accession)
		}
	}
	return runs
}
