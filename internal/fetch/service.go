package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/molluscomics/seqfetch/internal/catalog"
	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/compress"
	"github.com/molluscomics/seqfetch/internal/model"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// TaskIDPrefix prefixes fetch task ids
const TaskIDPrefix = "task-"

// DryRunRunPlaceholder is printed for runs that are not known yet
const DryRunRunPlaceholder = "<run>"

// DatasetInfoPermissions is the mode of the dataset_info.json file
const DatasetInfoPermissions = 0o644

// Options controls a Service
type Options struct {
	// DryRun prints commands to Out without creating directories or executing.
	DryRun bool
	// KeepGoing continues with the next run or BioProject after a failure.
	KeepGoing bool
	Out       io.Writer
}

// Service executes fetch plans one command at a time
type Service struct {
	catalog    *catalog.Catalog
	gen        *command.Generator
	exec       Executor
	compressor *compress.Service
	logger     *zap.Logger
	opts       Options

	tasks        map[string]*model.FetchTask
	order        []string
	compressions []string
	tasksMutex   sync.RWMutex
	onUpdate     func(*model.FetchTask)
}

// NewService creates a new fetch service
func NewService(cat *catalog.Catalog, gen *command.Generator, exec Executor, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	s := &Service{
		catalog: cat,
		gen:     gen,
		exec:    exec,
		logger:  logger,
		opts:    opts,
		tasks:   make(map[string]*model.FetchTask),
	}
	if gen.Options().Compress {
		s.compressor = compress.NewService(gen, exec, logger)
		s.compressor.SetUpdateCallback(s.onCompressUpdate)
	}
	return s
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.FetchTask)) {
	s.onUpdate = callback
}

// GetTask returns a task by ID
func (s *Service) GetTask(id string) (*model.FetchTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[id]
	return task, exists
}

// GetAllTasks returns all tasks in creation order
func (s *Service) GetAllTasks() []*model.FetchTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]*model.FetchTask, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks
}

// GetCompressionTasks returns the compression tasks of this service in
// creation order
func (s *Service) GetCompressionTasks() []*model.CompressionTask {
	if s.compressor == nil {
		return nil
	}
	s.tasksMutex.RLock()
	ids := append([]string(nil), s.compressions...)
	s.tasksMutex.RUnlock()

	tasks := make([]*model.CompressionTask, 0, len(ids))
	for _, id := range ids {
		if task, ok := s.compressor.GetTask(id); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// Fetch selects datasetID (optionally narrowed to one BioProject) and runs the
// metadata step and the capped per-run steps for each selected BioProject.
// An unknown selection fails before anything is created or executed.
func (s *Service) Fetch(ctx context.Context, datasetID, bioproject string) (*Report, error) {
	rec, accessions, err := s.catalog.Select(datasetID, bioproject)
	if err != nil {
		return nil, err
	}

	report := &Report{Dataset: rec, DryRun: s.opts.DryRun, OutputDir: s.gen.Layout().Root, StartedAt: time.Now()}
	s.logger.Info("Fetching dataset",
		zap.String("dataset", rec.ID),
		zap.String("method", rec.Method.String()),
		zap.Strings("bioprojects", accessions),
		zap.Int("max_runs", s.gen.Options().MaxRuns),
		zap.Bool("dry_run", s.opts.DryRun),
	)

	if !s.opts.DryRun {
		if err := s.writeDatasetInfo(rec); err != nil {
			s.finishReport(report)
			return report, err
		}
	}

	var errs []error
	for _, acc := range accessions {
		project := model.NewProject(rec.ID, acc)
		report.Projects = append(report.Projects, project)

		err := s.fetchProject(ctx, project)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			s.finishReport(report)
			return report, ctx.Err()
		}
		if !s.opts.KeepGoing {
			s.finishReport(report)
			return report, err
		}
		errs = append(errs, err)
	}

	s.finishReport(report)
	if !s.opts.DryRun {
		if size, err := platform.DirSize(s.gen.Layout().DatasetDir(rec.ID)); err == nil {
			report.Bytes = size
		}
	}
	return report, errors.Join(errs...)
}

func (s *Service) finishReport(report *Report) {
	report.finish(s.GetAllTasks(), s.GetCompressionTasks())
}

// writeDatasetInfo records the catalog entry next to the fetched data
func (s *Service) writeDatasetInfo(rec model.DatasetRecord) error {
	path := s.gen.Layout().DatasetInfoPath(rec.ID)
	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset info: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), DatasetInfoPermissions); err != nil {
		return fmt.Errorf("write dataset info: %w", err)
	}
	s.logger.Debug("Wrote dataset info", zap.String("path", path))
	return nil
}

// fetchProject runs the metadata step, resolves runs and fetches them
func (s *Service) fetchProject(ctx context.Context, project *model.Project) error {
	meta := s.gen.MetadataCommand(project.DatasetID, project.Accession)
	project.MetadataPath = meta.Output
	if s.opts.DryRun {
		fmt.Fprintf(s.opts.Out, "# %s/%s\n", project.DatasetID, project.Accession)
	}

	project.UpdateStatus(model.ProjectStatusFetching)
	if err := s.runCommand(ctx, meta); err != nil {
		project.Error = err.Error()
		project.UpdateStatus(model.ProjectStatusError)
		return fmt.Errorf("%s: metadata: %w", project.Accession, err)
	}

	if err := s.resolveRuns(project); err != nil {
		project.Error = err.Error()
		project.UpdateStatus(model.ProjectStatusError)
		return fmt.Errorf("%s: %w", project.Accession, err)
	}

	if project.Status == model.ProjectStatusUnresolved {
		for _, c := range s.gen.RunCommands(project.DatasetID, project.Accession, command.RunPlaceholder) {
			fmt.Fprintln(s.opts.Out, c.Render(DryRunRunPlaceholder))
		}
		if s.compressor != nil {
			fmt.Fprintln(s.opts.Out, command.CompressLine(s.gen.Options(),
				s.gen.Layout().ProjectDir(project.DatasetID, project.Accession)+"/"+DryRunRunPlaceholder))
		}
		return nil
	}

	runs := command.CapRuns(project.RunAccessions(), s.gen.Options().MaxRuns)
	paired := 0
	for _, r := range project.Runs {
		if r.IsPaired() {
			paired++
		}
	}
	s.logger.Info("Resolved runs",
		zap.String("bioproject", project.Accession),
		zap.Int("listed", len(project.Runs)),
		zap.Int("paired", paired),
		zap.Int("selected", len(runs)),
		zap.Int64("listed_bytes", project.TotalBytes()),
	)

	var errs []error
	for _, run := range runs {
		err := s.fetchRun(ctx, project, run)
		if err == nil {
			continue
		}
		if ctx.Err() != nil || !s.opts.KeepGoing {
			project.Error = err.Error()
			project.UpdateStatus(model.ProjectStatusError)
			return err
		}
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		project.Error = err.Error()
		project.UpdateStatus(model.ProjectStatusError)
		return err
	}
	project.UpdateStatus(model.ProjectStatusCompleted)
	return nil
}

// resolveRuns reads the run table written by the metadata step. In dry-run
// mode a missing table leaves the project unresolved.
func (s *Service) resolveRuns(project *model.Project) error {
	if s.opts.DryRun && !platform.FileExists(project.MetadataPath) {
		project.UpdateStatus(model.ProjectStatusUnresolved)
		return nil
	}
	runs, err := platform.ParseRunTableFile(project.MetadataPath)
	if err != nil {
		return err
	}
	for _, r := range runs {
		project.AddRun(r)
	}
	if len(project.Runs) == 0 {
		s.logger.Warn("No runs found for BioProject",
			zap.String("bioproject", project.Accession),
			zap.String("table", project.MetadataPath),
		)
	}
	project.UpdateStatus(model.ProjectStatusResolved)
	return nil
}

// fetchRun runs the per-run commands for one run accession. A run whose
// reads are already in its directory is skipped.
func (s *Service) fetchRun(ctx context.Context, project *model.Project, run string) error {
	runDir := s.gen.Layout().RunDir(project.DatasetID, project.Accession, run)
	existing, err := platform.ExistingReads(runDir, run)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", project.Accession, run, err)
	}
	if len(existing) > 0 {
		s.skipRun(project, run, existing)
		return nil
	}

	gzipped := false
	for _, c := range s.gen.RunCommands(project.DatasetID, project.Accession, run) {
		err := s.runCommand(ctx, c)
		if err != nil && c.Step == model.StepDump && ctx.Err() == nil {
			err = s.runFallback(ctx, project, run, err)
			gzipped = err == nil
		}
		if err != nil {
			return fmt.Errorf("%s/%s: %w", project.Accession, run, err)
		}
	}
	// The fallback writes gzipped reads itself.
	if s.compressor == nil || gzipped {
		return nil
	}
	if s.opts.DryRun {
		fmt.Fprintln(s.opts.Out, s.compressor.Describe(project.DatasetID, project.Accession, run))
		return nil
	}
	task, err := s.compressor.CompressRun(ctx, project.DatasetID, project.Accession, run)
	if task != nil {
		s.tasksMutex.Lock()
		s.compressions = append(s.compressions, task.ID)
		s.tasksMutex.Unlock()
	}
	if err != nil {
		return fmt.Errorf("%s/%s: compress: %w", project.Accession, run, err)
	}
	return nil
}

// skipRun records the per-run steps of run as skipped
func (s *Service) skipRun(project *model.Project, run string, files []string) {
	s.logger.Info("Reads already present, skipping run",
		zap.String("bioproject", project.Accession),
		zap.String("run", run),
		zap.Int("files", len(files)),
	)
	if s.opts.DryRun {
		fmt.Fprintf(s.opts.Out, "# %s: reads already present\n", run)
	}
	for _, c := range s.gen.RunCommands(project.DatasetID, project.Accession, run) {
		s.finishTask(s.addTask(c), model.TaskStatusSkipped, nil)
	}
}

// runFallback retries a failed dump with the fallback tool
func (s *Service) runFallback(ctx context.Context, project *model.Project, run string, cause error) error {
	c := s.gen.FallbackCommand(project.DatasetID, project.Accession, run)
	s.logger.Warn("Dump failed, retrying",
		zap.String("run", run),
		zap.String("tool", c.Name),
		zap.Error(cause),
	)
	if err := s.runCommand(ctx, c); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errors.Join(cause, err)
	}
	return nil
}

// onCompressUpdate logs finished compression tasks
func (s *Service) onCompressUpdate(task *model.CompressionTask) {
	if !task.Status.IsFinished() {
		return
	}
	s.logger.Debug("Compression finished",
		zap.String("run", task.Run),
		zap.String("status", string(task.Status)),
		zap.Int("files", len(task.Inputs)),
		zap.String("error", task.LastError),
	)
}

// runCommand records a task for c and executes it, or prints it in dry-run mode
func (s *Service) runCommand(ctx context.Context, c command.Command) error {
	task := s.addTask(c)

	if s.opts.DryRun {
		fmt.Fprintln(s.opts.Out, c.String())
		s.finishTask(task, model.TaskStatusSkipped, nil)
		return nil
	}

	if err := ctx.Err(); err != nil {
		s.finishTask(task, model.TaskStatusStopped, err)
		return err
	}

	for _, dir := range c.Dirs {
		if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
			err = fmt.Errorf("create %s: %w", dir, err)
			s.finishTask(task, model.TaskStatusError, err)
			return err
		}
	}

	s.tasksMutex.Lock()
	task.Status = model.TaskStatusRunning
	task.StartedAt = time.Now()
	s.tasksMutex.Unlock()
	s.notifyUpdate(task)

	err := s.exec.Execute(ctx, c)
	switch {
	case err == nil:
		s.finishTask(task, model.TaskStatusCompleted, nil)
	case ctx.Err() != nil:
		s.finishTask(task, model.TaskStatusStopped, ctx.Err())
		return ctx.Err()
	default:
		s.finishTask(task, model.TaskStatusError, err)
	}
	return err
}

func (s *Service) addTask(c command.Command) *model.FetchTask {
	task := &model.FetchTask{
		ID:         generateTaskID(),
		DatasetID:  c.Dataset,
		BioProject: c.BioProject,
		Run:        c.Run,
		Step:       c.Step,
		Command:    c.String(),
		Status:     model.TaskStatusPending,
		OutputPath: c.Output,
	}
	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	s.tasksMutex.Unlock()
	return task
}

func (s *Service) finishTask(task *model.FetchTask, status model.TaskStatus, err error) {
	s.tasksMutex.Lock()
	task.Status = status
	task.FinishedAt = time.Now()
	if err != nil {
		task.LastError = err.Error()
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			task.ExitCode = exitErr.Code
		}
	}
	s.tasksMutex.Unlock()

	if status == model.TaskStatusError {
		s.logger.Error("Command failed",
			zap.String("task", task.Label()),
			zap.String("cmd", task.Command),
			zap.Error(err),
		)
	}
	s.notifyUpdate(task)
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task *model.FetchTask) {
	if s.onUpdate != nil {
		s.onUpdate(task)
	}
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	return TaskIDPrefix + uuid.NewString()
}
