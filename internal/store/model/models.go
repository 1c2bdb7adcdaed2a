package model

import (
	"gorm.io/datatypes"
)

// RunModel maps to 'decision_runs': one row per run id, holding the full
// record as JSON plus the columns the read API filters on.
type RunModel struct {
	ID           int64          `gorm:"column:id;primaryKey"`
	RunID        string         `gorm:"column:run_id;uniqueIndex"`
	AsOfUnix     int64          `gorm:"column:as_of;index"`
	TradeDateNY  string         `gorm:"column:trade_date_ny;index"`
	Profile      string         `gorm:"column:profile"`
	Action       string         `gorm:"column:action;index"`
	Reason       string         `gorm:"column:reason"`
	Symbol       string         `gorm:"column:symbol"`
	Shares       int64          `gorm:"column:shares"`
	ArtifactPath string         `gorm:"column:artifact_path"`
	RecordJSON   datatypes.JSON `gorm:"column:record_json;type:TEXT"`
	CreatedAt    int64          `gorm:"column:created_at;autoCreateTime"`
}

func (RunModel) TableName() string { return "decision_runs" }

// ForwardTestModel maps to 'forward_tests'. The outcome columns stay empty
// until an outcome is logged for the run; re-saving the plan keeps them.
type ForwardTestModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	RunID       string         `gorm:"column:run_id;uniqueIndex"`
	TradeDateNY string         `gorm:"column:trade_date_ny;index"`
	Action      string         `gorm:"column:action"`
	Symbol      string         `gorm:"column:symbol"`
	Entry       float64        `gorm:"column:entry"`
	Stop        float64        `gorm:"column:stop"`
	Targets     datatypes.JSON `gorm:"column:targets;type:TEXT"`
	Shares      int64          `gorm:"column:shares"`
	Confidence  float64        `gorm:"column:confidence"`

	Outcome         string   `gorm:"column:outcome"`
	FillEntry       *float64 `gorm:"column:fill_entry"`
	ExitPrice       *float64 `gorm:"column:exit_price"`
	RealizedR       *float64 `gorm:"column:realized_r"`
	DurationSeconds *int64   `gorm:"column:duration_seconds"`
	Notes           string   `gorm:"column:notes"`
	OutcomeAt       int64    `gorm:"column:outcome_at"`

	CreatedAt int64 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt int64 `gorm:"column:updated_at;autoUpdateTime"`
}

func (ForwardTestModel) TableName() string { return "forward_tests" }
