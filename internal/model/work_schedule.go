package model

// 班表来源
const (
	ScheduleSourceManual = "manual"
	ScheduleSourceICS    = "ics"
)

// WorkSchedule 工作班表，对应 work_schedules
type WorkSchedule struct {
	ScheduleID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	CompanyID  string `gorm:"type:uuid;not null;index"                       json:"company_id"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	StartTime  string `gorm:"type:time;not null"                             json:"start_time"`
	EndTime    string `gorm:"type:time;not null"                             json:"end_time"`
	Source     string `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"` // manual | ics
	BaseModel
}

// TableName 指定表名
func (WorkSchedule) TableName() string { return "work_schedules" }
