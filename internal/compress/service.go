package compress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/model"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// TaskIDPrefix prefixes compression task ids
const TaskIDPrefix = "compress-"

// ErrNoInputs is returned when a run directory holds no uncompressed FASTQ
var ErrNoInputs = errors.New("no FASTQ files to compress")

// Runner executes one external command
type Runner interface {
	Execute(ctx context.Context, cmd command.Command) error
}

// Service gzips the FASTQ files of fetched runs, one invocation per run
type Service struct {
	gen        *command.Generator
	runner     Runner
	logger     *zap.Logger
	tasks      map[string]*model.CompressionTask
	tasksMutex sync.RWMutex
	onUpdate   func(*model.CompressionTask)
}

// NewService creates a new compression service
func NewService(gen *command.Generator, runner Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:    gen,
		runner: runner,
		logger: logger,
		tasks:  make(map[string]*model.CompressionTask),
	}
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.CompressionTask)) {
	s.onUpdate = callback
}

// CompressRun compresses the FASTQ files the dump step left in the run directory
func (s *Service) CompressRun(ctx context.Context, dataset, bioproject, run string) (*model.CompressionTask, error) {
	dir := s.gen.Layout().RunDir(dataset, bioproject, run)

	task := &model.CompressionTask{
		ID:        generateTaskID(),
		Run:       run,
		Status:    model.TaskStatusPending,
		StartedAt: time.Now(),
	}
	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	s.tasksMutex.Unlock()

	files, err := platform.ListFastq(dir)
	if err != nil {
		s.setTaskError(task, err)
		return task, err
	}
	if len(files) == 0 {
		err := fmt.Errorf("%s: %w", dir, ErrNoInputs)
		s.setTaskError(task, err)
		return task, err
	}

	s.tasksMutex.Lock()
	task.Inputs = files
	task.Status = model.TaskStatusRunning
	s.tasksMutex.Unlock()
	s.notifyUpdate(task)

	cmd := s.gen.CompressCommand(dataset, bioproject, run, files)
	s.logger.Info("Compressing reads", zap.String("run", run), zap.Int("files", len(files)))

	err = s.runner.Execute(ctx, cmd)

	s.tasksMutex.Lock()
	switch {
	case ctx.Err() != nil:
		task.Status = model.TaskStatusStopped
		task.LastError = ctx.Err().Error()
	case err != nil:
		task.Status = model.TaskStatusError
		task.LastError = err.Error()
	default:
		task.Status = model.TaskStatusCompleted
	}
	task.FinishedAt = time.Now()
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
	if ctx.Err() != nil {
		return task, ctx.Err()
	}
	return task, err
}

// Describe returns the command line a dry run would execute for run
func (s *Service) Describe(dataset, bioproject, run string) string {
	return command.CompressLine(s.gen.Options(), s.gen.Layout().RunDir(dataset, bioproject, run))
}

// GetTask returns a compression task by ID
func (s *Service) GetTask(taskID string) (*model.CompressionTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[taskID]
	return task, exists
}

// setTaskError sets an error state for a task
func (s *Service) setTaskError(task *model.CompressionTask, err error) {
	s.tasksMutex.Lock()
	task.Status = model.TaskStatusError
	task.LastError = err.Error()
	task.FinishedAt = time.Now()
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task *model.CompressionTask) {
	if s.onUpdate != nil {
		s.onUpdate(task)
	}
}

// generateTaskID generates a unique, time-ordered task ID
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
