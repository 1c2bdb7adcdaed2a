package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"informer/internal/types"
)

func record(runID string, action types.Action) types.RunRecord {
	asOf := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	return types.RunRecord{
		RunID:       runID,
		AsOf:        asOf,
		TradeDateNY: types.TradeDateNY(asOf),
		Symbols:     []string{"AAPL"},
		Decision:    types.Decision{Action: action, Reason: types.ReasonNoCandidates, Targets: []float64{}, Audit: []types.AuditEntry{}},
		Trace:       []types.StageTrace{},
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, false)
	ctx := context.Background()

	path, err := w.Write(ctx, record("run-1", types.ActionNoTrade))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", FileName), path)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = w.Write(ctx, record("run-1", types.ActionNoTrade))
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteRejectsDifferentPayload(t *testing.T) {
	w := NewWriter(t.TempDir(), false)
	ctx := context.Background()
	_, err := w.Write(ctx, record("run-2", types.ActionNoTrade))
	require.NoError(t, err)

	_, err = w.Write(ctx, record("run-2", types.ActionNotReady))
	assert.ErrorIs(t, err, ErrArtifactExists)

	rec, err := w.Read("run-2")
	require.NoError(t, err)
	assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
}

func TestWriteOverwrite(t *testing.T) {
	w := NewWriter(t.TempDir(), true)
	ctx := context.Background()
	_, err := w.Write(ctx, record("run-3", types.ActionNoTrade))
	require.NoError(t, err)
	_, err = w.Write(ctx, record("run-3", types.ActionNotReady))
	require.NoError(t, err)
	rec, err := w.Read("run-3")
	require.NoError(t, err)
	assert.Equal(t, types.ActionNotReady, rec.Decision.Action)
	assert.Equal(t, "2025-01-02", rec.TradeDateNY)
}

func TestWriteRejectsPathTraversal(t *testing.T) {
	w := NewWriter(t.TempDir(), false)
	_, err := w.Write(context.Background(), record("../escape", types.ActionNoTrade))
	assert.ErrorIs(t, err, ErrInvalidRunID)
}

func TestTradeDateNY(t *testing.T) {
	// 03:00 UTC is still the previous evening in New York
	assert.Equal(t, "2025-01-01", types.TradeDateNY(time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)))
}

func TestOverwriteReplacesFileInPlace(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, true)
	ctx := context.Background()

	path, err := w.Write(ctx, record("run-1", types.ActionNoTrade))
	require.NoError(t, err)
	_, err = w.Write(ctx, record("run-1", types.ActionNotReady))
	require.NoError(t, err)

	assert.FileExists(t, path)
	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec, err := w.Read("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.ActionNotReady, rec.Decision.Action)
}
