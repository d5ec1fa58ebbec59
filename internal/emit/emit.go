// Package emit writes generated scenarios to disk: one document file per
// scenario plus an optional CSV manifest naming the arm chosen for every
// sweep.
package emit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/vecnet/vecnet.openmalaria/internal/experiment"
)

const (
	// DefaultFilePattern names scenario files by their 1-based index.
	DefaultFilePattern = "scenario%d.xml"
	// DefaultManifestFile is the CSV manifest written next to the scenarios.
	DefaultManifestFile = "manifest.csv"
)

// Options controls where and how scenarios are written.
type Options struct {
	Dir string
	// FilePattern is a fmt pattern with exactly one %d verb.
	FilePattern string
	// ManifestFile is the CSV manifest name inside Dir; empty disables it.
	ManifestFile string
	// Sweeps lists the manifest columns; it is sorted on use.
	Sweeps []string
}

// Writer writes scenarios into a directory. It is not safe for
// concurrent use.
type Writer struct {
	dir          string
	pattern      string
	sweeps       []string
	manifestPath string
	manifest     *os.File
	csv          *csv.Writer
	files        []string
}

// ValidatePattern checks that pattern formats an index into a plain file
// name.
func ValidatePattern(pattern string) error {
	if strings.Count(pattern, "%d") != 1 || strings.Count(pattern, "%") != 1 {
		return fmt.Errorf("file pattern %q must contain exactly one %%d verb", pattern)
	}
	name := fmt.Sprintf(pattern, 1)
	if name != filepath.Base(name) {
		return fmt.Errorf("file pattern %q must not contain path separators", pattern)
	}
	return nil
}

// NewWriter creates the output directory and, when requested, the
// manifest file with its header row.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("emit: output directory is required")
	}
	pattern := opts.FilePattern
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	if err := ValidatePattern(pattern); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("emit: creating directory %s: %w", opts.Dir, err)
	}

	sweeps := slices.Clone(opts.Sweeps)
	slices.Sort(sweeps)
	w := &Writer{dir: opts.Dir, pattern: pattern, sweeps: sweeps}

	if opts.ManifestFile != "" {
		w.manifestPath = filepath.Join(opts.Dir, opts.ManifestFile)
		f, err := os.Create(w.manifestPath)
		if err != nil {
			return nil, fmt.Errorf("emit: creating manifest: %w", err)
		}
		w.manifest = f
		w.csv = csv.NewWriter(f)
		header := append([]string{"file", "seed"}, sweeps...)
		if err := w.csv.Write(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("emit: writing manifest header: %w", err)
		}
	}
	return w, nil
}

// Write stores one scenario and returns the path of its file.
func (w *Writer) Write(sc *experiment.Scenario) (string, error) {
	name := fmt.Sprintf(w.pattern, sc.Index)
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(sc.Document), 0o644); err != nil {
		return "", fmt.Errorf("emit: writing %s: %w", name, err)
	}
	w.files = append(w.files, path)

	if w.csv != nil {
		row := make([]string, 0, 2+len(w.sweeps))
		seed := ""
		if sc.Seed != 0 {
			seed = strconv.Itoa(sc.Seed)
		}
		row = append(row, name, seed)
		for _, sweep := range w.sweeps {
			row = append(row, sc.Parameters[sweep])
		}
		if err := w.csv.Write(row); err != nil {
			return "", fmt.Errorf("emit: writing manifest row: %w", err)
		}
	}
	return path, nil
}

// Files returns the paths written so far.
func (w *Writer) Files() []string { return slices.Clone(w.files) }

// ManifestPath returns the manifest path, or "" when disabled.
func (w *Writer) ManifestPath() string { return w.manifestPath }

// Close flushes and closes the manifest.
func (w *Writer) Close() error {
	if w.csv == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.manifest.Close()
	w.csv = nil
	if flushErr != nil {
		return fmt.Errorf("emit: flushing manifest: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("emit: closing manifest: %w", closeErr)
	}
	return nil
}
