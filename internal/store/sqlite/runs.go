package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"informer/internal/store"
	"informer/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepo(db *gorm.DB) *runRepository {
	return &runRepository{db: db}
}

// Save inserts the run or replaces the row with the same run id.
func (r *runRepository) Save(ctx context.Context, run *model.RunModel) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(run).Error
}

func (r *runRepository) FindByRunID(ctx context.Context, runID string) (*model.RunModel, error) {
	var run model.RunModel
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: run %s", store.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs newest first.
func (r *runRepository) List(ctx context.Context, q store.RunQuery) ([]model.RunModel, error) {
	var runs []model.RunModel
	tx := r.db.WithContext(ctx).Model(&model.RunModel{})
	if v := strings.TrimSpace(q.TradeDateNY); v != "" {
		tx = tx.Where("trade_date_ny = ?", v)
	}
	if v := strings.TrimSpace(q.Action); v != "" {
		tx = tx.Where("action = ?", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(q.Symbol); v != "" {
		tx = tx.Where("symbol = ?", strings.ToUpper(v))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if err := tx.Order("as_of DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
