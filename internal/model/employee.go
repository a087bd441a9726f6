package model

// 计薪方式
const (
	PayTypeYearly = "yearly"
	PayTypeDaily  = "daily"
	PayTypeHourly = "hourly"
)

// Employee 员工表，对应 employees（由薪酬系统维护，此处只读）
type Employee struct {
	EmployeeID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"employee_id"`
	CompanyID  string  `gorm:"type:uuid;not null;index"                       json:"company_id"`
	Name       string  `gorm:"type:varchar(100);not null"                     json:"name"`
	PayType    string  `gorm:"type:varchar(20);not null;default:'hourly'"     json:"pay_type"` // yearly | daily | hourly
	PayRate    int64   `gorm:"not null;default:0"                             json:"pay_rate"` // 最小货币单位
	ScheduleID *string `gorm:"type:uuid"                                      json:"schedule_id,omitempty"`
	BaseModel

	// 关联
	Schedule *WorkSchedule `gorm:"foreignKey:ScheduleID;references:ScheduleID" json:"schedule,omitempty"`
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }
