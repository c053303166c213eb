package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/molluscomics/seqfetch/internal/catalog"
	"github.com/molluscomics/seqfetch/internal/config"
	"github.com/molluscomics/seqfetch/internal/logging"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

// Exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

var (
	// Global flags
	configPath  string
	catalogPath string
	logFile     string
	verbose     bool

	settings *config.Settings
	logger   *zap.Logger
	closeLog func()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "seqfetch",
	Short: "Fetch public Pacific oyster sequencing datasets from SRA",
	Long: `seqfetch knows a fixed catalog of Crassostrea gigas sequencing datasets
(WGBS, RRBS, MeDIP-seq, targeted bisulfite and mixed studies) and turns a
dataset name into the pysradb and SRA Toolkit commands that retrieve it.

Commands run one at a time. Use --dry-run to print them, or the script
subcommand to write a bash script for a cluster job.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		s, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if catalogPath != "" {
			s.Catalog = catalogPath
		}
		if logFile != "" {
			s.LogFile = logFile
		}
		applySelectionFlags(cmd, s)
		settings = s

		// The log file is attached by fetch once the selection is known to be
		// valid; other subcommands log to the console only.
		l, cleanup, err := logging.New(logging.Options{
			Verbose: verbose,
			Console: cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger, closeLog = l, cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/seqfetch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Dataset catalog YAML (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file (default: <output>/seqfetch.log)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	addSelectionFlags(fetchCmd)
	fetchCmd.Flags().BoolVar(&sel.dryRun, "dry-run", false, "Print commands without executing them")
	fetchCmd.Flags().BoolVar(&sel.keepGoing, "keep-going", false, "Continue with the next run after a failure")

	addSelectionFlags(scriptCmd)
	scriptCmd.Flags().StringVarP(&sel.scriptFile, "file", "f", "", "Write the script to a file instead of stdout")

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the catalog as JSON")
	listCmd.Flags().StringVarP(&listMethod, "method", "m", "", "Only list datasets of this method (WGBS, RRBS, MeDIP-seq, Targeted, Mixed)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	os.Exit(run(os.Stderr))
}

// run executes the root command and maps its error to an exit code
func run(stderr io.Writer) int {
	err := rootCmd.Execute()
	closeLogger()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "interrupted")
		} else {
			fmt.Fprintln(stderr, "Error:", err)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitError
	}
}

func closeLogger() {
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
}

// attachLogFile tees the current logger into the JSON log file at path
func attachLogFile(path string) error {
	l, cleanup, err := logging.WithFile(logger, path)
	if err != nil {
		return err
	}
	prev := closeLog
	logger = l
	closeLog = func() {
		cleanup()
		if prev != nil {
			prev()
		}
	}
	return nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if settings != nil && settings.Catalog != "" {
		return catalog.LoadFile(settings.Catalog)
	}
	return catalog.Default()
}
