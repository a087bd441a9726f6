package model

import "time"

// 发薪周期状态
const (
	PayCycleStatusScheduled = "scheduled"
	PayCycleStatusExecuted  = "executed"
)

// PayCycle 发薪周期，对应 pay_cycles
type PayCycle struct {
	PayCycleID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pay_cycle_id"`
	CompanyID   string    `gorm:"type:uuid;not null;index"                       json:"company_id"`
	PeriodStart time.Time `gorm:"type:date;not null"                             json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null"                             json:"period_end"`
	Status      string    `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"` // scheduled | executed
	BaseModel
}

// TableName 指定表名
func (PayCycle) TableName() string { return "pay_cycles" }
