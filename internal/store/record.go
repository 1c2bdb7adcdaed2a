package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"informer/internal/store/model"
	"informer/internal/types"
)

// NewRunModel flattens rec into a run log row.
func NewRunModel(rec types.RunRecord, artifactPath string) (*model.RunModel, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", rec.RunID, err)
	}
	return &model.RunModel{
		RunID:        rec.RunID,
		AsOfUnix:     rec.AsOf.Unix(),
		TradeDateNY:  rec.TradeDateNY,
		Profile:      rec.Profile,
		Action:       string(rec.Decision.Action),
		Reason:       string(rec.Decision.Reason),
		Symbol:       rec.Decision.Symbol,
		Shares:       rec.Decision.Shares,
		ArtifactPath: artifactPath,
		RecordJSON:   datatypes.JSON(raw),
	}, nil
}

// DecodeRun returns the record stored in m.
func DecodeRun(m *model.RunModel) (types.RunRecord, error) {
	var rec types.RunRecord
	if m == nil {
		return rec, ErrNotFound
	}
	if err := json.Unmarshal(m.RecordJSON, &rec); err != nil {
		return rec, fmt.Errorf("decode run %s: %w", m.RunID, err)
	}
	return rec, nil
}

// NewForwardTestModel builds the forward-test row for rec; the first target
// is the graded one.
func NewForwardTestModel(rec types.RunRecord) (*model.ForwardTestModel, error) {
	d := rec.Decision
	targets := d.Targets
	if targets == nil {
		targets = []float64{}
	}
	raw, err := json.Marshal(targets)
	if err != nil {
		return nil, err
	}
	return &model.ForwardTestModel{
		RunID:       rec.RunID,
		TradeDateNY: rec.TradeDateNY,
		Action:      string(d.Action),
		Symbol:      d.Symbol,
		Entry:       d.Entry,
		Stop:        d.Stop,
		Targets:     datatypes.JSON(raw),
		Shares:      d.Shares,
		Confidence:  d.Confidence,
	}, nil
}
