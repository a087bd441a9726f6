package repository

import (
	"context"

	"gorm.io/gorm"

	"payguard/backend/internal/model"
	pkgerrors "payguard/backend/pkg/errors"
)

// AnomalyFilter 异常台账查询条件（空字段不过滤）
type AnomalyFilter struct {
	CompanyID  string
	EmployeeID string
	Status     string
}

// AnomalyRepository 异常台账数据访问接口
// 记录只追加；Update 仅允许修改处理相关字段
type AnomalyRepository interface {
	BatchCreate(ctx context.Context, records []model.AnomalyRecord) error
	GetByID(ctx context.Context, id string) (*model.AnomalyRecord, error)
	// List 按 detected_at 倒序返回
	List(ctx context.Context, filter AnomalyFilter) ([]model.AnomalyRecord, error)
	Update(ctx context.Context, record *model.AnomalyRecord) error
}

// ── Anomaly Repository 实现 ──

type anomalyRepo struct {
	db *gorm.DB
}

func NewAnomalyRepo(db *gorm.DB) AnomalyRepository {
	return &anomalyRepo{db: db}
}

func (r *anomalyRepo) BatchCreate(ctx context.Context, records []model.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *anomalyRepo) GetByID(ctx context.Context, id string) (*model.AnomalyRecord, error) {
	var rec model.AnomalyRecord
	err := r.db.WithContext(ctx).
		Where("anomaly_id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *anomalyRepo) List(ctx context.Context, filter AnomalyFilter) ([]model.AnomalyRecord, error) {
	var records []model.AnomalyRecord
	db := r.db.WithContext(ctx).Model(&model.AnomalyRecord{})
	if filter.CompanyID != "" {
		db = db.Where("company_id = ?", filter.CompanyID)
	}
	if filter.EmployeeID != "" {
		db = db.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("detected_at DESC").Find(&records).Error
	return records, err
}

func (r *anomalyRepo) Update(ctx context.Context, record *model.AnomalyRecord) error {
	oldVersion := record.Version
	result := r.db.WithContext(ctx).
		Model(record).
		Where("anomaly_id = ? AND version = ?", record.AnomalyID, oldVersion).
		Updates(map[string]interface{}{
			"status":                record.Status,
			"resolved_at":           record.ResolvedAt,
			"resolved_by":           record.ResolvedBy,
			"remediation_reference": record.RemediationReference,
			"version":               oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	record.Version = oldVersion + 1
	return nil
}
