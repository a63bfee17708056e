// Package scan finds the final JPEG of each observation in a capture tree.
package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/astrogalery/astrogalery/internal/cache"
)

// Directories that hold tooling or generated output rather than captures.
var skipDirs = map[string]struct{}{
	"site":        {},
	".git":        {},
	"__pycache__": {},
	".venv":       {},
	"venv":        {},
	"cache":       {},
}

const thumbSuffix = "_thn.jpg"

// Candidate is one final image and its companions on disk.
type Candidate struct {
	JPGPath        string
	ThumbPath      string // "" when no thumbnail sits next to the image
	ObservationDir string
}

// Stem returns the image file name without extension.
func (c Candidate) Stem() string {
	base := filepath.Base(c.JPGPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Options tune discovery.
type Options struct {
	// Exclude lists extra directories to prune, typically the output and
	// cache locations when they live under the root.
	Exclude []string
}

// Discover walks root and returns final images in path order. Sub-frame
// folders (*_sub, *-sub) and thumbnails are skipped.
func Discover(root string, opts Options) ([]Candidate, error) {
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	var out []Candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && skipDir(path, d.Name(), excluded) {
				return fs.SkipDir
			}
			return nil
		}

		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, thumbSuffix) {
			return nil
		}

		c := Candidate{
			JPGPath:        path,
			ObservationDir: filepath.Dir(path),
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if thumb := filepath.Join(c.ObservationDir, stem+thumbSuffix); cache.Exists(thumb) {
			c.ThumbPath = thumb
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].JPGPath < out[j].JPGPath })
	return out, nil
}

func skipDir(path, name string, excluded map[string]struct{}) bool {
	if _, ok := skipDirs[name]; ok {
		return true
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, "_sub") || strings.HasSuffix(lower, "-sub") {
		return true
	}
	if abs, err := filepath.Abs(path); err == nil {
		if _, ok := excluded[abs]; ok {
			return true
		}
	}
	return false
}
