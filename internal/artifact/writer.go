package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"

	"informer/internal/logger"
	"informer/internal/types"
)

const FileName = "decision.json"

var (
	ErrArtifactExists = errors.New("decision artifact already exists with different content")
	ErrInvalidRunID   = errors.New("invalid run id")

	runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

// Writer persists one decision artifact per run id under dir/<run_id>/.
type Writer struct {
	dir       string
	overwrite bool
}

func NewWriter(dir string, overwrite bool) *Writer {
	return &Writer{dir: dir, overwrite: overwrite}
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Path(runID string) string {
	return filepath.Join(w.dir, runID, FileName)
}

// Encode renders rec exactly as it is written to disk.
func Encode(rec types.RunRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores rec atomically. Re-writing identical bytes is a no-op; a
// different payload for an existing run id fails with ErrArtifactExists
// unless the writer was built with overwrite.
func (w *Writer) Write(ctx context.Context, rec types.RunRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	runID := strings.TrimSpace(rec.RunID)
	if !runIDPattern.MatchString(runID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, rec.RunID)
	}
	data, err := Encode(rec)
	if err != nil {
		return "", fmt.Errorf("encode decision artifact: %w", err)
	}
	path := w.Path(runID)
	if existing, err := os.ReadFile(path); err == nil {
		if bytes.Equal(existing, data) {
			logger.Debugf("[artifact] %s unchanged", path)
			return path, nil
		}
		if !w.overwrite {
			return "", fmt.Errorf("%w: %s", ErrArtifactExists, path)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read existing artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	// temp file in the same dir, fsync, rename: readers see old or new bytes
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	logger.Infof("[artifact] wrote %s", path)
	return path, nil
}

// Read loads the artifact for runID.
func (w *Writer) Read(runID string) (types.RunRecord, error) {
	var rec types.RunRecord
	if !runIDPattern.MatchString(runID) {
		return rec, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	data, err := os.ReadFile(w.Path(runID))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode artifact %s: %w", runID, err)
	}
	return rec, nil
}
