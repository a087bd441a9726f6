package model

import "time"

// TimeEntry 工时打卡记录，对应 time_entries
type TimeEntry struct {
	TimeEntryID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"time_entry_id"`
	EmployeeID  string     `gorm:"type:uuid;not null;index"                       json:"employee_id"`
	CompanyID   string     `gorm:"type:uuid;not null;index"                       json:"company_id"`
	EntryDate   time.Time  `gorm:"type:date;not null"                             json:"entry_date"`
	ClockIn     *time.Time `json:"clock_in,omitempty"`
	ClockOut    *time.Time `json:"clock_out,omitempty"` // 为空表示未下班打卡
	BaseModel
}

// TableName 指定表名
func (TimeEntry) TableName() string { return "time_entries" }
