package decisionhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"informer/internal/artifact"
	"informer/internal/store"
	"informer/internal/store/model"
	"informer/internal/store/tradelock"
	"informer/internal/types"
)

type mockRuns struct{ mock.Mock }

func (m *mockRuns) FindByRunID(ctx context.Context, runID string) (*model.RunModel, error) {
	args := m.Called(runID)
	row, _ := args.Get(0).(*model.RunModel)
	return row, args.Error(1)
}

func (m *mockRuns) List(ctx context.Context, q store.RunQuery) ([]model.RunModel, error) {
	args := m.Called(q)
	rows, _ := args.Get(0).([]model.RunModel)
	return rows, args.Error(1)
}

type mockArtifacts struct{ mock.Mock }

func (m *mockArtifacts) Read(runID string) (types.RunRecord, error) {
	args := m.Called(runID)
	return args.Get(0).(types.RunRecord), args.Error(1)
}

type mockLocks struct{ mock.Mock }

func (m *mockLocks) Holder(ctx context.Context, date string) (tradelock.Holder, bool, error) {
	args := m.Called(date)
	return args.Get(0).(tradelock.Holder), args.Bool(1), args.Error(2)
}

func record(runID string) types.RunRecord {
	return types.RunRecord{
		RunID:       runID,
		AsOf:        time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC),
		TradeDateNY: "2025-03-14",
		Symbols:     []string{"AAPL"},
		Decision:    types.Decision{Action: types.ActionNoTrade, Reason: types.ReasonNoCandidates, Targets: []float64{}, Audit: []types.AuditEntry{}},
		Trace:       []types.StageTrace{},
	}
}

func serve(t *testing.T, cfg ServerConfig, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	w := serve(t, ServerConfig{Artifacts: &mockArtifacts{}}, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewServerNeedsASource(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestDecisionFromArtifact(t *testing.T) {
	arts := &mockArtifacts{}
	arts.On("Read", "run-1").Return(record("run-1"), nil)
	w := serve(t, ServerConfig{Artifacts: arts}, "/api/decisions/run-1")

	require.Equal(t, http.StatusOK, w.Code)
	var got types.RunRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, types.ActionNoTrade, got.Decision.Action)
}

func TestDecisionFallsBackToRunLog(t *testing.T) {
	arts := &mockArtifacts{}
	arts.On("Read", "run-2").Return(types.RunRecord{}, fmt.Errorf("open: %w", os.ErrNotExist))
	row, err := store.NewRunModel(record("run-2"), "")
	require.NoError(t, err)
	runs := &mockRuns{}
	runs.On("FindByRunID", "run-2").Return(row, nil)
	runs.On("FindByRunID", "run-3").Return(nil, store.ErrNotFound)
	arts.On("Read", "run-3").Return(types.RunRecord{}, os.ErrNotExist)

	w := serve(t, ServerConfig{Artifacts: arts, Runs: runs}, "/api/decisions/run-2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run-2"`)

	w = serve(t, ServerConfig{Artifacts: arts, Runs: runs}, "/api/decisions/run-3")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecisionInvalidRunID(t *testing.T) {
	arts := &mockArtifacts{}
	arts.On("Read", "bad!id").Return(types.RunRecord{}, artifact.ErrInvalidRunID)
	w := serve(t, ServerConfig{Artifacts: arts}, "/api/decisions/bad!id")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunsListing(t *testing.T) {
	runs := &mockRuns{}
	runs.On("List", store.RunQuery{TradeDateNY: "2025-03-14", Action: "TRADE", Limit: 500, Offset: 0}).
		Return([]model.RunModel{{RunID: "run-1", Action: "TRADE", Symbol: "AAPL", Shares: 25, TradeDateNY: "2025-03-14"}}, nil)

	w := serve(t, ServerConfig{Runs: runs}, "/api/runs?date=2025-03-14&action=TRADE&limit=9999")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs  []RunSummary `json:"runs"`
		Limit int          `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 500, body.Limit)
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "AAPL", body.Runs[0].Symbol)
	runs.AssertExpectations(t)
}

func TestRunsWithoutStore(t *testing.T) {
	w := serve(t, ServerConfig{Artifacts: &mockArtifacts{}}, "/api/runs")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTradeLock(t *testing.T) {
	locks := &mockLocks{}
	locks.On("Holder", "2025-03-14").Return(tradelock.Holder{TradeDateNY: "2025-03-14", RunID: "run-1", Symbol: "AAPL"}, true, nil)
	locks.On("Holder", "2025-03-15").Return(tradelock.Holder{}, false, nil)
	cfg := ServerConfig{Artifacts: &mockArtifacts{}, Locks: locks}

	w := serve(t, cfg, "/api/trade-lock/2025-03-14")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"locked":true`)
	assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)

	w = serve(t, cfg, "/api/trade-lock/2025-03-15")
	assert.JSONEq(t, `{"trade_date_ny":"2025-03-15","locked":false}`, w.Body.String())
}
