package saas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileExporter writes payloads to a directory as run-<runID>.json.
type FileExporter struct {
	dir string
}

// NewFileExporter creates an exporter writing into dir.
func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{dir: dir}
}

// Path returns the file a run's payload is written to.
func (e *FileExporter) Path(runID string) string {
	return filepath.Join(e.dir, "run-"+runID+".json")
}

// Export writes p and returns the file path. The payload replaces any earlier
// file atomically, so a crash never leaves a truncated payload behind.
func (e *FileExporter) Export(p Payload) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %s: %w", e.dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run %s: %w", p.RunID, err)
	}

	path := e.Path(p.RunID)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write export file %s: %w", path, err)
	}

	return path, nil
}
