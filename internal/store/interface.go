package store

import (
	"context"
	"errors"

	"informer/internal/store/model"
)

var ErrNotFound = errors.New("record not found")

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	// Runs returns the run log repository within this transaction.
	Runs() RunRepository
	// ForwardTests returns the forward-test repository within this transaction.
	ForwardTests() ForwardTestRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// RunQuery filters the run log. Zero values mean "any".
type RunQuery struct {
	TradeDateNY string
	Action      string
	Symbol      string
	Limit       int
	Offset      int
}

// RunRepository persists one row per decision run.
type RunRepository interface {
	// Save inserts or replaces the row for run.RunID.
	Save(ctx context.Context, run *model.RunModel) error
	FindByRunID(ctx context.Context, runID string) (*model.RunModel, error)
	List(ctx context.Context, q RunQuery) ([]model.RunModel, error)
}

// ForwardTestQuery selects forward-test rows by inclusive NY trade date
// range. Empty bounds are open.
type ForwardTestQuery struct {
	From   string
	To     string
	Action string
}

// ForwardTestRepository records decisions for later grading.
type ForwardTestRepository interface {
	// Save upserts the planned trade for row.RunID, keeping logged outcomes.
	Save(ctx context.Context, row *model.ForwardTestModel) error
	FindByRunID(ctx context.Context, runID string) (*model.ForwardTestModel, error)
	// SaveOutcome writes only the outcome columns of an existing row.
	SaveOutcome(ctx context.Context, row *model.ForwardTestModel) error
	// List returns rows ordered by trade date, then insertion.
	List(ctx context.Context, q ForwardTestQuery) ([]model.ForwardTestModel, error)
}
