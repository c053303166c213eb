package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/platform"
)

// Environment variable names
const (
	EnvPrefix      = "SEQFETCH_"
	EnvOutputDir   = EnvPrefix + "OUTPUT_DIR"
	EnvMaxRuns     = EnvPrefix + "MAX_RUNS"
	EnvThreads     = EnvPrefix + "THREADS"
	EnvPrefetch    = EnvPrefix + "PREFETCH"
	EnvCompress    = EnvPrefix + "COMPRESS"
	EnvKeepGoing   = EnvPrefix + "KEEP_GOING"
	EnvCatalog     = EnvPrefix + "CATALOG"
	EnvLogFile     = EnvPrefix + "LOG_FILE"
	EnvMetadataBin = EnvPrefix + "PYSRADB"
	EnvPrefetchBin = EnvPrefix + "PREFETCH_BIN"
	EnvDumpBin     = EnvPrefix + "FASTERQ_DUMP"
	EnvFallbackBin = EnvPrefix + "FASTQ_DUMP"
	EnvCompressBin = EnvPrefix + "COMPRESSOR"
)

// Default values
const (
	DefaultThreads     = 4
	DefaultMaxRuns     = 0
	MinThreads         = 1
	MaxThreads         = 64
	ConfigDirName      = "seqfetch"
	ConfigFileName     = "config.yaml"
	DefaultFallbackDir = "seqdata"
)

// ToolSettings names the external executables
type ToolSettings struct {
	Metadata string `yaml:"metadata"`
	Prefetch string `yaml:"prefetch"`
	Dump     string `yaml:"dump"`
	Fallback string `yaml:"fallback"`
	Compress string `yaml:"compress"`
}

// Settings holds the tool configuration
type Settings struct {
	OutputDir string       `yaml:"output_dir"`
	MaxRuns   int          `yaml:"max_runs"`
	Threads   int          `yaml:"threads"`
	Prefetch  bool         `yaml:"prefetch"`
	Compress  bool         `yaml:"compress"`
	KeepGoing bool         `yaml:"keep_going"`
	Catalog   string       `yaml:"catalog"`
	LogFile   string       `yaml:"log_file"`
	Tools     ToolSettings `yaml:"tools"`
}

// Defaults returns the built-in settings
func Defaults() *Settings {
	out, err := platform.GetDefaultOutputDir()
	if err != nil {
		out = DefaultFallbackDir
	}
	def := command.DefaultTools()
	return &Settings{
		OutputDir: out,
		MaxRuns:   DefaultMaxRuns,
		Threads:   DefaultThreads,
		Tools: ToolSettings{
			Metadata: def.Metadata,
			Prefetch: def.Prefetch,
			Dump:     def.Dump,
			Fallback: def.Fallback,
			Compress: def.Compress,
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/seqfetch/config.yaml or the OS equivalent
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ConfigDirName, ConfigFileName)
}

// LoadDotEnv loads .env from the working directory when present
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load builds settings from defaults, the config file and the environment.
// An empty path uses DefaultConfigPath and tolerates its absence; an explicit
// path must exist.
func Load(path string) (*Settings, error) {
	s := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := s.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	s.normalize()
	return s, s.Validate()
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from SEQFETCH_* variables
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str(EnvOutputDir, &s.OutputDir)
	str(EnvCatalog, &s.Catalog)
	str(EnvLogFile, &s.LogFile)
	str(EnvMetadataBin, &s.Tools.Metadata)
	str(EnvPrefetchBin, &s.Tools.Prefetch)
	str(EnvDumpBin, &s.Tools.Dump)
	str(EnvFallbackBin, &s.Tools.Fallback)
	str(EnvCompressBin, &s.Tools.Compress)

	return errors.Join(
		num(EnvMaxRuns, &s.MaxRuns),
		num(EnvThreads, &s.Threads),
		flag(EnvPrefetch, &s.Prefetch),
		flag(EnvCompress, &s.Compress),
		flag(EnvKeepGoing, &s.KeepGoing),
	)
}

// SetThreads sets the parallelism hint, clamped to [MinThreads, MaxThreads]
func (s *Settings) SetThreads(n int) {
	if n < MinThreads {
		n = MinThreads
	}
	if n > MaxThreads {
		n = MaxThreads
	}
	s.Threads = n
}

// SetMaxRuns sets the per-BioProject run cap; negative values mean no cap
func (s *Settings) SetMaxRuns(n int) {
	if n < 0 {
		n = 0
	}
	s.MaxRuns = n
}

// SetOutputDir sets the output root, expanding a leading ~
func (s *Settings) SetOutputDir(dir string) {
	s.OutputDir = expandHome(dir)
}

func (s *Settings) normalize() {
	s.SetThreads(s.Threads)
	s.SetMaxRuns(s.MaxRuns)
	s.SetOutputDir(s.OutputDir)
	s.Catalog = expandHome(s.Catalog)
	s.LogFile = expandHome(s.LogFile)
}

// Validate checks settings that cannot be clamped
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.OutputDir) == "" {
		return errors.New("output directory is empty")
	}
	t := s.Tools
	if t.Metadata == "" || t.Dump == "" || t.Fallback == "" || t.Prefetch == "" || t.Compress == "" {
		return errors.New("tool names must not be empty")
	}
	return nil
}

// LogPath returns the configured log file or the one inside the output tree
func (s *Settings) LogPath() string {
	if s.LogFile != "" {
		return s.LogFile
	}
	return platform.NewLayout(s.OutputDir).LogPath()
}

// GeneratorOptions maps settings onto command generation options
func (s *Settings) GeneratorOptions() command.Options {
	return command.Options{
		OutputDir: s.OutputDir,
		MaxRuns:   s.MaxRuns,
		Threads:   s.Threads,
		Prefetch:  s.Prefetch,
		Compress:  s.Compress,
		Tools: command.Tools{
			Metadata: s.Tools.Metadata,
			Prefetch: s.Tools.Prefetch,
			Dump:     s.Tools.Dump,
			Fallback: s.Tools.Fallback,
			Compress: s.Tools.Compress,
		},
	}
}

// RequiredTools lists the executables a fetch with these settings invokes
func (s *Settings) RequiredTools() []string {
	tools := []string{s.Tools.Metadata, s.Tools.Dump}
	if s.Prefetch {
		tools = append(tools, s.Tools.Prefetch)
	}
	if s.Compress {
		tools = append(tools, s.Tools.Compress)
	}
	return tools
}

// AllTools lists every configured executable
func (s *Settings) AllTools() []string {
	return []string{s.Tools.Metadata, s.Tools.Prefetch, s.Tools.Dump, s.Tools.Fallback, s.Tools.Compress}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
