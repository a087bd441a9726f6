package dto

// ImportScheduleResponse 班表 ICS 导入结果
type ImportScheduleResponse struct {
	ScheduleID string `json:"schedule_id"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	EventCount int    `json:"event_count"` // 参与统计的 VEVENT 数量
}
