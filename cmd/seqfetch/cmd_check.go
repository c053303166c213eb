package main

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/molluscomics/seqfetch/internal/platform"
)

// checkCmd reports which external tools are available
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that pysradb and the SRA Toolkit are on PATH",
	Args:  cobra.NoArgs,
	RunE:  checkTools,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "seqfetch %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func checkTools(cmd *cobra.Command, args []string) error {
	required := make(map[string]bool)
	for _, name := range settings.RequiredTools() {
		required[name] = true
	}
	statuses := platform.CheckTools(cmd.Context(), settings.AllTools(), required)

	out := cmd.OutOrStdout()
	for _, st := range statuses {
		need := "optional"
		if st.Required {
			need = "required"
		}
		if !st.Found() {
			fmt.Fprintf(out, "%s %-14s %-8s not found\n", missingStyle.Render("MISSING"), st.Name, need)
			continue
		}
		detail := st.Path
		if st.Version != "" {
			detail += "  " + st.Version
		}
		fmt.Fprintf(out, "%s %-14s %-8s %s\n", okStyle.Width(7).Render("OK"), st.Name, need, detail)
	}
	// Missing tools only fail fetch itself.
	if err := platform.MissingRequired(statuses); err != nil {
		fmt.Fprintf(out, "\nfetch needs: %v\n", err)
	}
	return nil
}
