package dto

import "time"

// ── 扫描 ──

// ScanRequest 触发扫描请求；company_id 为空时取 Token 中的公司
type ScanRequest struct {
	CompanyID     string `json:"company_id" binding:"omitempty,uuid"`
	ReferenceDate string `json:"reference_date" binding:"omitempty,datetime=2006-01-02"`
}

// ScanResult 扫描结果
type ScanResult struct {
	ScannedEntries   int               `json:"scanned_entries"`
	TotalAnomalies   int               `json:"total_anomalies"`
	RemediationCount int               `json:"remediation_count"`
	ReviewCount      int               `json:"review_count"`
	NewAnomalies     []AnomalyResponse `json:"new_anomalies"`
}

// ── 台账 ──

// AnomalyListRequest 台账查询参数
// Page 为 0 时返回全部记录，否则按 PageSize 分页
type AnomalyListRequest struct {
	EmployeeID string `form:"employee_id" binding:"omitempty"`
	Status     string `form:"status" binding:"omitempty,oneof=pending_review rebalance_triggered confirmed review_dismissed"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// AnomalyURI 路径中的异常 ID
type AnomalyURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ResolveAnomalyRequest 人工处理请求
type ResolveAnomalyRequest struct {
	Resolution string `json:"resolution" binding:"required,oneof=confirmed review_dismissed"`
}

// RemediationRequest 回补凭证回填请求（如结算交易号）
type RemediationRequest struct {
	Reference string `json:"reference" binding:"required,max=200"`
}

// FeatureSnapshotResponse 检出时的特征快照
type FeatureSnapshotResponse struct {
	ClockInHour       float64 `json:"clock_in_hour"`
	ClockOutHour      float64 `json:"clock_out_hour"`
	ShiftHours        float64 `json:"shift_hours"`
	DaysSincePayDay   float64 `json:"days_since_pay_day"`
	DaysUntilPayDay   float64 `json:"days_until_pay_day"`
	OccupationCode    int     `json:"occupation_code"`
	PayRate           int64   `json:"pay_rate"`
	DayOfWeek         int     `json:"day_of_week"`
	ScheduleDeviation float64 `json:"schedule_deviation"`
	IsWeekend         bool    `json:"is_weekend"`
}

// AnomalyResponse 异常记录
type AnomalyResponse struct {
	AnomalyID             string                  `json:"anomaly_id"`
	CompanyID             string                  `json:"company_id"`
	EmployeeID            string                  `json:"employee_id"`
	TimeEntryID           string                  `json:"time_entry_id"`
	DetectedAt            time.Time               `json:"detected_at"`
	Severity              string                  `json:"severity"`
	Status                string                  `json:"status"`
	Action                string                  `json:"action"`
	Score                 float64                 `json:"score"`
	ReputationAtDetection int                     `json:"reputation_at_detection"`
	Features              FeatureSnapshotResponse `json:"features"`
	Reasons               []string                `json:"reasons"`
	ResolvedAt            *time.Time              `json:"resolved_at,omitempty"`
	ResolvedBy            *string                 `json:"resolved_by,omitempty"`
	RemediationReference  *string                 `json:"remediation_reference,omitempty"`
}

// SummaryResponse 台账概览
type SummaryResponse struct {
	TotalAnomalies        int               `json:"total_anomalies"`
	PendingReview         int               `json:"pending_review"`
	RemediationsTriggered int               `json:"remediations_triggered"`
	AvgReputation         float64           `json:"avg_reputation"` // 被标记员工的平均信誉分
	BySeverity            map[string]int    `json:"by_severity"`
	Recent                []AnomalyResponse `json:"recent"` // 最近 20 条
}

// ── 事件 ──

// AnomalyEvent 发布到 Kafka 的异常事件，供资金回补组件消费
type AnomalyEvent struct {
	AnomalyID             string    `json:"anomaly_id"`
	CompanyID             string    `json:"company_id"`
	EmployeeID            string    `json:"employee_id"`
	TimeEntryID           string    `json:"time_entry_id"`
	Severity              string    `json:"severity"`
	Action                string    `json:"action"`
	Status                string    `json:"status"`
	Score                 float64   `json:"score"`
	ReputationAtDetection int       `json:"reputation_at_detection"`
	Reasons               []string  `json:"reasons"`
	DetectedAt            time.Time `json:"detected_at"`
}
