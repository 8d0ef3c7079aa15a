// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stdin is the path that reads from standard input.
const Stdin = "-"

var inputExts = map[string]struct{}{".json": {}, ".ndjson": {}, ".jsonl": {}}

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading. A context that is already done
// short-circuits without touching the filesystem.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if l.path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Expand returns the input files for path. A directory yields its *.json,
// *.ndjson and *.jsonl files in lexical order (not recursive); anything else
// is returned as-is.
func Expand(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is empty")
	}
	if path == Stdin {
		return []string{Stdin}, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := inputExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no .json/.ndjson/.jsonl files in %s", path)
	}
	return out, nil
}
