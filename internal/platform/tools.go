package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Default executable names
const (
	FasterqDumpCommand = "fasterq-dump"
	FastqDumpCommand   = "fastq-dump"
	PrefetchCommand    = "prefetch"
	PysradbCommand     = "pysradb"
	PigzCommand        = "pigz"
	GzipCommand        = "gzip"
)

// DefaultVersionTimeout bounds a --version query
const DefaultVersionTimeout = 10 * time.Second

// ErrToolMissing is returned when a required binary is not on PATH
var ErrToolMissing = errors.New("tool not found on PATH")

// ToolStatus describes one resolved executable
type ToolStatus struct {
	Name     string
	Path     string
	Version  string
	Required bool
	Err      error
}

// Found reports whether the executable was resolved
func (t ToolStatus) Found() bool {
	return t.Err == nil && t.Path != ""
}

// LookupTool resolves name on PATH; name may also be an absolute path
func LookupTool(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrToolMissing)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	return path, nil
}

// QueryVersion runs `<path> --version` and returns the first non-empty line
func QueryVersion(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, DefaultVersionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// CheckTools resolves every name, probing versions for those found
func CheckTools(ctx context.Context, names []string, required map[string]bool) []ToolStatus {
	out := make([]ToolStatus, 0, len(names))
	for _, name := range names {
		st := ToolStatus{Name: name, Required: required[name]}
		st.Path, st.Err = LookupTool(name)
		if st.Err == nil {
			st.Version = QueryVersion(ctx, st.Path)
		}
		out = append(out, st)
	}
	return out
}

// MissingRequired joins the errors of required tools that were not found
func MissingRequired(statuses []ToolStatus) error {
	var errs []error
	for _, st := range statuses {
		if st.Required && !st.Found() {
			errs = append(errs, st.Err)
		}
	}
	return errors.Join(errs...)
}
