package engine

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// batchExtensions are the file extensions picked up from directories.
var batchExtensions = map[string]bool{
	".oml": true,
	".los": true,
	".mod": true,
}

// IsBatchFile reports whether path is a model file processed in batches.
func IsBatchFile(path string) bool {
	return batchExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover lists model files under dir recursively, sorted. Hidden
// directories are skipped. A non-empty pattern filters base names.
func Discover(dir, pattern string) ([]string, error) {
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsBatchFile(path) {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover models in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
