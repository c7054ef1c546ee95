package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// OutputSuffix is inserted between the base name and the extension of every output file.
const OutputSuffix = "-min"

// EligibleSuffixes are the name suffixes picked up from the input directory.
// The match is case-sensitive unless Options.CaseInsensitive is set, so
// "PHOTO.JPG" and "photo.jpeg" are skipped by default.
var EligibleSuffixes = []string{".jpg", ".png", ".gif"}

// IsEligible reports whether a file name ends with one of EligibleSuffixes.
func IsEligible(name string, caseInsensitive bool) bool {
	if caseInsensitive {
		name = strings.ToLower(name)
	}
	for _, suffix := range EligibleSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// NewSourceImage splits a file name into base and extension.
func NewSourceImage(dir, name string) SourceImage {
	ext := filepath.Ext(name)
	return SourceImage{
		Path:      filepath.Join(dir, name),
		Name:      name,
		Base:      strings.TrimSuffix(name, ext),
		Extension: strings.TrimPrefix(ext, "."),
	}
}

// OutputPath returns where the compressed copy of src is written.
func OutputPath(outputDir string, src SourceImage) string {
	return filepath.Join(outputDir, src.OutputName())
}

// Discover lists the eligible non-directory entries directly inside dir, sorted by name.
func Discover(fs afero.Fs, dir string, caseInsensitive bool) ([]SourceImage, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []SourceImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !IsEligible(entry.Name(), caseInsensitive) {
			continue
		}
		files = append(files, NewSourceImage(dir, entry.Name()))
	}
	return files, nil
}

// checkDirectory returns an InvalidDirectoryError unless path is an existing directory.
func checkDirectory(fs afero.Fs, which DirectoryRole, path string) error {
	if path == "" {
		return &InvalidDirectoryError{Which: which, Path: path, Err: fmt.Errorf("path is empty")}
	}
	info, err := fs.Stat(path)
	if err != nil {
		return &InvalidDirectoryError{Which: which, Path: path, Err: err}
	}
	if !info.IsDir() {
		return &InvalidDirectoryError{Which: which, Path: path}
	}
	return nil
}
