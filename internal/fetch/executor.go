package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// DefaultWaitDelay is the grace period between interrupt and kill on cancellation
const DefaultWaitDelay = 10 * time.Second

// ExitError reports a non-zero exit status from an external tool
type ExitError struct {
	Tool string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecExecutor runs commands as child processes, logging their output
type ExecExecutor struct {
	logger    *zap.Logger
	waitDelay time.Duration
}

// NewExecExecutor creates an executor that logs tool output through logger
func NewExecExecutor(logger *zap.Logger) *ExecExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecExecutor{logger: logger, waitDelay: DefaultWaitDelay}
}

// Execute runs cmd to completion. Output lines are logged; stderr at info
// level since the SRA tools report progress there.
func (e *ExecExecutor) Execute(ctx context.Context, c command.Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.waitDelay

	log := e.logger.With(zap.String("tool", c.Name), zap.String("step", string(c.Step)))
	if c.BioProject != "" {
		log = log.With(zap.String("bioproject", c.BioProject))
	}
	if c.Run != "" {
		log = log.With(zap.String("run", c.Run))
	}
	log.Debug("Starting command", zap.String("cmd", c.String()))

	// Wait owns the copying, so WaitDelay also bounds pipes held open by
	// grandchildren.
	stdout := newLineLogger(func(line string) { log.Debug(line) })
	stderr := newLineLogger(func(line string) { log.Info(line) })
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", platform.ErrToolMissing, c.Name)
		}
		return fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Tool: c.Name, Code: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("%s: %w", c.Name, err)
}

// MaxLogLine bounds a buffered output line; longer lines are logged in pieces
const MaxLogLine = 64 * 1024

// lineLogger is an io.Writer that hands each line to emit. Lines end at \n
// or at a bare \r, which progress meters use to redraw a line in place.
type lineLogger struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func newLineLogger(emit func(string)) *lineLogger {
	return &lineLogger{emit: emit}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			w.buf = append(w.buf, p...)
			break
		}
		w.buf = append(w.buf, p[:i]...)
		w.flushLocked()
		p = p[i+1:]
	}
	for len(w.buf) >= MaxLogLine {
		rest := append([]byte(nil), w.buf[MaxLogLine:]...)
		w.buf = w.buf[:MaxLogLine]
		w.flushLocked()
		w.buf = rest
	}
	return n, nil
}

// Flush emits a trailing line that had no terminator
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *lineLogger) flushLocked() {
	if line := strings.TrimSpace(string(w.buf)); line != "" {
		w.emit(line)
	}
	w.buf = w.buf[:0]
}
