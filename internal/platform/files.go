package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Output tree names
const (
	MetadataFileName = "metadata.tsv"
	DatasetInfoName  = "dataset_info.json"
	LogFileName      = "seqfetch.log"
	DefaultDirName   = "oyster-seqdata"
	FastqExtension   = ".fastq"
	GzipExtension    = ".gz"
)

// Layout maps datasets, BioProjects and runs onto the output tree:
//
//	<root>/<dataset>/dataset_info.json
//	<root>/<dataset>/<bioproject>/metadata.tsv
//	<root>/<dataset>/<bioproject>/<run>/<run>_1.fastq
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// DatasetDir returns the directory for a dataset
func (l Layout) DatasetDir(dataset string) string {
	return filepath.Join(l.Root, dataset)
}

// DatasetInfoPath returns where the catalog record of a dataset is written
func (l Layout) DatasetInfoPath(dataset string) string {
	return filepath.Join(l.DatasetDir(dataset), DatasetInfoName)
}

// ProjectDir returns the directory for a BioProject under a dataset
func (l Layout) ProjectDir(dataset, bioproject string) string {
	return filepath.Join(l.Root, dataset, bioproject)
}

// MetadataPath returns where the metadata step writes its run table
func (l Layout) MetadataPath(dataset, bioproject string) string {
	return filepath.Join(l.ProjectDir(dataset, bioproject), MetadataFileName)
}

// RunDir returns the directory holding the reads of one run
func (l Layout) RunDir(dataset, bioproject, run string) string {
	return filepath.Join(l.ProjectDir(dataset, bioproject), run)
}

// LogPath returns the log file location
func (l Layout) LogPath() string {
	return filepath.Join(l.Root, LogFileName)
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetDefaultOutputDir returns the default output root under the user's home
func GetDefaultOutputDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultDirName), nil
}

// FileExists reports whether path names an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListFastq returns uncompressed FASTQ files in dir, sorted by name
func ListFastq(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), FastqExtension) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ExistingReads returns the FASTQ files of run already in dir, compressed or
// not, sorted by name. Both <run>.fastq and split <run>_N.fastq names match.
func ExistingReads(dir, run string) ([]string, error) {
	var files []string
	for _, pattern := range []string{run + FastqExtension + "*", run + "_*" + FastqExtension + "*"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if FileExists(m) {
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// DirSize sums the sizes of regular files under dir
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
