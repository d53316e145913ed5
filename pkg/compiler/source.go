package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extensions are the file extensions recognised as model files.
var Extensions = []string{".oml", ".los", ".mod", ".txt"}

// IsModelFile reports whether path has a model file extension.
func IsModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ResolveSource interprets a command-line argument as either a model file
// or inline model text. Multi-line text is always inline; a single line is
// a path when it has a model extension or names an existing file. The
// returned path is empty for inline text.
func ResolveSource(arg string) (source, path string, err error) {
	if strings.ContainsAny(arg, "\r\n") {
		return arg, "", nil
	}
	candidate := strings.TrimSpace(arg)
	info, statErr := os.Stat(candidate)
	switch {
	case statErr == nil && !info.IsDir():
	case IsModelFile(candidate):
		if errors.Is(statErr, fs.ErrNotExist) {
			return "", "", fmt.Errorf("model file %s does not exist", candidate)
		}
		if statErr == nil {
			return "", "", fmt.Errorf("%s is a directory", candidate)
		}
		return "", "", statErr
	default:
		return arg, "", nil
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		return "", "", fmt.Errorf("failed to read model file: %w", err)
	}
	return string(data), candidate, nil
}
