package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	// 薪酬系统数据（扫描输入）
	Employee     EmployeeRepository
	WorkSchedule WorkScheduleRepository
	TimeEntry    TimeEntryRepository
	PayCycle     PayCycleRepository

	// 检测输出
	Anomaly    AnomalyRepository
	Reputation ReputationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Employee:     NewEmployeeRepo(db),
		WorkSchedule: NewWorkScheduleRepo(db),
		TimeEntry:    NewTimeEntryRepo(db),
		PayCycle:     NewPayCycleRepo(db),
		Anomaly:      NewAnomalyRepo(db),
		Reputation:   NewReputationRepo(db),
	}
}
