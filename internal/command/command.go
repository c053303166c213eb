// Package command builds the external invocations for a dataset selection:
// one metadata fetch per BioProject followed by capped per-run fetches. It
// never executes anything; see package fetch for that.
package command

import (
	"strings"

	"github.com/alessio/shellescape"

	"github.com/molluscomics/seqfetch/internal/model"
)

// RunPlaceholder stands in for a run accession that is not known yet.
const RunPlaceholder = "\x00run\x00"

// Command is one external invocation.
type Command struct {
	Step       model.StepKind
	Dataset    string
	BioProject string
	Run        string

	Name string
	Args []string

	// Dirs must exist before the command runs.
	Dirs []string
	// Output is the file or directory the command produces.
	Output string
}

// Argv returns the executable followed by its arguments.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String renders the command as a shell-quoted line.
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Argv())
}

// IsTemplate reports whether the command still refers to an unknown run.
func (c Command) IsTemplate() bool {
	for _, a := range c.Argv() {
		if strings.Contains(a, RunPlaceholder) {
			return true
		}
	}
	return false
}

// Render quotes every argument and substitutes expr (already shell syntax,
// e.g. `"$run"`) for the run placeholder.
func (c Command) Render(expr string) string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, a := range c.Argv() {
		parts = append(parts, renderArg(a, expr))
	}
	return strings.Join(parts, " ")
}

// WithRun returns a copy with the placeholder replaced by run.
func (c Command) WithRun(run string) Command {
	out := c
	out.Run = run
	out.Args = replaceAll(c.Args, run)
	out.Dirs = replaceAll(c.Dirs, run)
	out.Output = strings.ReplaceAll(c.Output, RunPlaceholder, run)
	return out
}

func renderArg(arg, expr string) string {
	if !strings.Contains(arg, RunPlaceholder) {
		return shellescape.Quote(arg)
	}
	pieces := strings.Split(arg, RunPlaceholder)
	var b strings.Builder
	for i, p := range pieces {
		if p != "" {
			b.WriteString(shellescape.Quote(p))
		}
		if i < len(pieces)-1 {
			b.WriteString(expr)
		}
	}
	return b.String()
}

func replaceAll(in []string, run string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ReplaceAll(s, RunPlaceholder, run)
	}
	return out
}
