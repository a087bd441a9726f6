package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"payguard/backend/internal/model"
)

// EmployeeRepository 员工数据访问接口
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*model.Employee, error)
	ListByCompany(ctx context.Context, companyID string) ([]model.Employee, error)
	AssignSchedule(ctx context.Context, employeeID, scheduleID string) error
}

// WorkScheduleRepository 工作班表数据访问接口
type WorkScheduleRepository interface {
	Create(ctx context.Context, ws *model.WorkSchedule) error
	ListByCompany(ctx context.Context, companyID string) ([]model.WorkSchedule, error)
}

// TimeEntryRepository 工时记录数据访问接口
type TimeEntryRepository interface {
	// ListByCompany since 为 nil 时返回全部记录
	ListByCompany(ctx context.Context, companyID string, since *time.Time) ([]model.TimeEntry, error)
}

// PayCycleRepository 发薪周期数据访问接口
type PayCycleRepository interface {
	ListByCompany(ctx context.Context, companyID string) ([]model.PayCycle, error)
}

// ── Employee Repository 实现 ──

type employeeRepo struct {
	db *gorm.DB
}

func NewEmployeeRepo(db *gorm.DB) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
	var emp model.Employee
	err := r.db.WithContext(ctx).
		Preload("Schedule").
		Where("employee_id = ?", id).
		First(&emp).Error
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) ListByCompany(ctx context.Context, companyID string) ([]model.Employee, error) {
	var emps []model.Employee
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("name ASC").
		Find(&emps).Error
	return emps, err
}

func (r *employeeRepo) AssignSchedule(ctx context.Context, employeeID, scheduleID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("employee_id = ?", employeeID).
		Updates(map[string]interface{}{
			"schedule_id": scheduleID,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ── WorkSchedule Repository 实现 ──

type workScheduleRepo struct {
	db *gorm.DB
}

func NewWorkScheduleRepo(db *gorm.DB) WorkScheduleRepository {
	return &workScheduleRepo{db: db}
}

func (r *workScheduleRepo) Create(ctx context.Context, ws *model.WorkSchedule) error {
	return r.db.WithContext(ctx).Create(ws).Error
}

func (r *workScheduleRepo) ListByCompany(ctx context.Context, companyID string) ([]model.WorkSchedule, error) {
	var list []model.WorkSchedule
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Find(&list).Error
	return list, err
}

// ── TimeEntry Repository 实现 ──

type timeEntryRepo struct {
	db *gorm.DB
}

func NewTimeEntryRepo(db *gorm.DB) TimeEntryRepository {
	return &timeEntryRepo{db: db}
}

func (r *timeEntryRepo) ListByCompany(ctx context.Context, companyID string, since *time.Time) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	db := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if since != nil {
		db = db.Where("entry_date >= ?", *since)
	}
	err := db.Order("entry_date ASC, clock_in ASC").Find(&entries).Error
	return entries, err
}

// ── PayCycle Repository 实现 ──

type payCycleRepo struct {
	db *gorm.DB
}

func NewPayCycleRepo(db *gorm.DB) PayCycleRepository {
	return &payCycleRepo{db: db}
}

func (r *payCycleRepo) ListByCompany(ctx context.Context, companyID string) ([]model.PayCycle, error) {
	var cycles []model.PayCycle
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("period_end ASC").
		Find(&cycles).Error
	return cycles, err
}
