package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payguard/backend/internal/model"
)

// ReputationRepository 信誉分数据访问接口
type ReputationRepository interface {
	// Get 不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, employeeID string) (*model.Reputation, error)
	ListByIDs(ctx context.Context, employeeIDs []string) ([]model.Reputation, error)
	// Save 按 employee_id upsert
	Save(ctx context.Context, rep *model.Reputation) error
	SaveAll(ctx context.Context, reps []model.Reputation) error
}

// ── Reputation Repository 实现 ──

type reputationRepo struct {
	db *gorm.DB
}

func NewReputationRepo(db *gorm.DB) ReputationRepository {
	return &reputationRepo{db: db}
}

func (r *reputationRepo) Get(ctx context.Context, employeeID string) (*model.Reputation, error) {
	var rep model.Reputation
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		First(&rep).Error
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reputationRepo) ListByIDs(ctx context.Context, employeeIDs []string) ([]model.Reputation, error) {
	var reps []model.Reputation
	if len(employeeIDs) == 0 {
		return reps, nil
	}
	err := r.db.WithContext(ctx).
		Where("employee_id IN ?", employeeIDs).
		Find(&reps).Error
	return reps, err
}

func (r *reputationRepo) Save(ctx context.Context, rep *model.Reputation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}},
			UpdateAll: true,
		}).
		Create(rep).Error
}

func (r *reputationRepo) SaveAll(ctx context.Context, reps []model.Reputation) error {
	if len(reps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}},
			UpdateAll: true,
		}).
		Create(&reps).Error
}
