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

type forwardTestRepository struct {
	db *gorm.DB
}

func NewForwardTestRepo(db *gorm.DB) *forwardTestRepository {
	return &forwardTestRepository{db: db}
}

// Save keeps graded outcome columns when the same run is recorded again.
func (r *forwardTestRepository) Save(ctx context.Context, row *model.ForwardTestModel) error {
	if row == nil {
		return errors.New("forward test row cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trade_date_ny", "action", "symbol", "entry", "stop", "targets", "shares", "confidence", "updated_at",
		}),
	}).Create(row).Error
}

func (r *forwardTestRepository) FindByRunID(ctx context.Context, runID string) (*model.ForwardTestModel, error) {
	var row model.ForwardTestModel
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: forward test %s", store.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *forwardTestRepository) SaveOutcome(ctx context.Context, row *model.ForwardTestModel) error {
	if row == nil {
		return errors.New("forward test row cannot be nil")
	}
	res := r.db.WithContext(ctx).Model(&model.ForwardTestModel{}).
		Where("run_id = ?", row.RunID).
		Select("outcome", "fill_entry", "exit_price", "realized_r", "duration_seconds", "notes", "outcome_at").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: forward test %s", store.ErrNotFound, row.RunID)
	}
	return nil
}

func (r *forwardTestRepository) List(ctx context.Context, q store.ForwardTestQuery) ([]model.ForwardTestModel, error) {
	var rows []model.ForwardTestModel
	tx := r.db.WithContext(ctx).Model(&model.ForwardTestModel{})
	if v := strings.TrimSpace(q.From); v != "" {
		tx = tx.Where("trade_date_ny >= ?", v)
	}
	if v := strings.TrimSpace(q.To); v != "" {
		tx = tx.Where("trade_date_ny <= ?", v)
	}
	if v := strings.TrimSpace(q.Action); v != "" {
		tx = tx.Where("action = ?", strings.ToUpper(v))
	}
	if err := tx.Order("trade_date_ny ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
