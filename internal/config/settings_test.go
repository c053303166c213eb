package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		EnvOutputDir, EnvMaxRuns, EnvThreads, EnvPrefetch, EnvCompress, EnvKeepGoing,
		EnvCatalog, EnvLogFile, EnvMetadataBin, EnvPrefetchBin, EnvDumpBin, EnvFallbackBin, EnvCompressBin,
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	s := Defaults()

	assert.NotEmpty(t, s.OutputDir)
	assert.Equal(t, DefaultThreads, s.Threads)
	assert.Equal(t, DefaultMaxRuns, s.MaxRuns)
	assert.False(t, s.Prefetch)
	assert.False(t, s.Compress)
	assert.Equal(t, "pysradb", s.Tools.Metadata)
	assert.Equal(t, "fasterq-dump", s.Tools.Dump)
	assert.Equal(t, "fastq-dump", s.Tools.Fallback)
	require.NoError(t, s.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThreads, s.Threads)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: /data/oyster
max_runs: 2
threads: 8
prefetch: true
tools:
  dump: /opt/sra/bin/fasterq-dump
`), 0o644))

	t.Setenv(EnvThreads, "16")
	t.Setenv(EnvCompress, "true")
	t.Setenv(EnvKeepGoing, "1")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/oyster", s.OutputDir)
	assert.Equal(t, 2, s.MaxRuns)
	assert.Equal(t, 16, s.Threads)
	assert.True(t, s.Prefetch)
	assert.True(t, s.Compress)
	assert.True(t, s.KeepGoing)
	assert.Equal(t, "/opt/sra/bin/fasterq-dump", s.Tools.Dump)
	assert.Equal(t, "pysradb", s.Tools.Metadata)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: [1, 2"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestApplyEnvInvalidValues(t *testing.T) {
	s := Defaults()
	err := s.ApplyEnv(envMap(map[string]string{
		EnvThreads:  "many",
		EnvPrefetch: "sometimes",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvThreads)
	assert.Contains(t, err.Error(), EnvPrefetch)
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.ApplyEnv(envMap(map[string]string{
		EnvOutputDir: "   ",
		EnvMaxRuns:   "",
	})))
	assert.Equal(t, Defaults().OutputDir, s.OutputDir)
	assert.Equal(t, DefaultMaxRuns, s.MaxRuns)
}

func TestSetThreadsClamps(t *testing.T) {
	s := Defaults()

	s.SetThreads(0)
	assert.Equal(t, MinThreads, s.Threads)

	s.SetThreads(1000)
	assert.Equal(t, MaxThreads, s.Threads)

	s.SetThreads(12)
	assert.Equal(t, 12, s.Threads)
}

func TestSetMaxRuns(t *testing.T) {
	s := Defaults()

	s.SetMaxRuns(-3)
	assert.Equal(t, 0, s.MaxRuns)

	s.SetMaxRuns(5)
	assert.Equal(t, 5, s.MaxRuns)
}

func TestSetOutputDirExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := Defaults()
	s.SetOutputDir("~/oyster")
	assert.Equal(t, filepath.Join(home, "oyster"), s.OutputDir)

	s.SetOutputDir("/abs/path")
	assert.Equal(t, "/abs/path", s.OutputDir)
}

func TestValidate(t *testing.T) {
	s := Defaults()
	s.OutputDir = ""
	assert.Error(t, s.Validate())

	s = Defaults()
	s.Tools.Dump = ""
	assert.Error(t, s.Validate())
}

func TestLogPath(t *testing.T) {
	s := Defaults()
	s.OutputDir = "/data/oyster"
	assert.Equal(t, filepath.Join("/data/oyster", "seqfetch.log"), s.LogPath())

	s.LogFile = "/var/log/seqfetch.log"
	assert.Equal(t, "/var/log/seqfetch.log", s.LogPath())
}

func TestGeneratorOptions(t *testing.T) {
	s := Defaults()
	s.OutputDir = "/data"
	s.MaxRuns = 3
	s.Threads = 6
	s.Compress = true
	s.Tools.Compress = "gzip"

	opts := s.GeneratorOptions()
	assert.Equal(t, "/data", opts.OutputDir)
	assert.Equal(t, 3, opts.MaxRuns)
	assert.Equal(t, 6, opts.Threads)
	assert.True(t, opts.Compress)
	assert.Equal(t, "gzip", opts.Tools.Compress)
	assert.Equal(t, "fastq-dump", opts.Tools.Fallback)
}

func TestRequiredTools(t *testing.T) {
	s := Defaults()
	assert.Equal(t, []string{"pysradb", "fasterq-dump"}, s.RequiredTools())

	s.Prefetch = true
	s.Compress = true
	assert.Equal(t, []string{"pysradb", "fasterq-dump", "prefetch", "pigz"}, s.RequiredTools())
	assert.Len(t, s.AllTools(), 5)
	assert.Contains(t, s.AllTools(), "fastq-dump")
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvMaxRuns+"=7\n"), 0o644))
	// godotenv does not override variables that are already set
	require.NoError(t, os.Unsetenv(EnvMaxRuns))
	require.NoError(t, LoadDotEnv(path))

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, s.MaxRuns)
}
