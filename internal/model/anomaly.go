package model

import "time"

// 异常状态
const (
	AnomalyStatusPendingReview      = "pending_review"
	AnomalyStatusRebalanceTriggered = "rebalance_triggered"
	AnomalyStatusConfirmed          = "confirmed"
	AnomalyStatusReviewDismissed    = "review_dismissed"
)

// 处置动作
const (
	ActionAutoRebalance = "auto_rebalance"
	ActionManualReview  = "manual_review"
)

// 严重程度
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// AnomalyRecord 异常台账，对应 anomaly_records（只追加，仅处理字段可更新）
type AnomalyRecord struct {
	AnomalyID             string          `gorm:"type:uuid;primaryKey"                   json:"anomaly_id"`
	CompanyID             string          `gorm:"type:uuid;not null;index"               json:"company_id"`
	EmployeeID            string          `gorm:"type:uuid;not null;index"               json:"employee_id"`
	TimeEntryID           string          `gorm:"type:uuid;not null"                     json:"time_entry_id"`
	DetectedAt            time.Time       `gorm:"not null;index"                         json:"detected_at"`
	Severity              string          `gorm:"type:varchar(10);not null"              json:"severity"`
	Status                string          `gorm:"type:varchar(30);not null;index"        json:"status"`
	Action                string          `gorm:"type:varchar(30);not null"              json:"action"`
	Score                 float64         `gorm:"type:numeric(5,3);not null"             json:"score"`
	ReputationAtDetection int             `gorm:"not null"                               json:"reputation_at_detection"`
	Features              FeatureSnapshot `gorm:"type:jsonb;not null"                    json:"features"`
	Reasons               StringArray     `gorm:"type:text[];not null"                   json:"reasons"`
	ResolvedAt            *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy            *string         `gorm:"type:varchar(64)"                       json:"resolved_by,omitempty"`
	RemediationReference  *string         `gorm:"type:varchar(200)"                      json:"remediation_reference,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (AnomalyRecord) TableName() string { return "anomaly_records" }

// IsResolved 是否已人工处理
func (a *AnomalyRecord) IsResolved() bool {
	return a.Status == AnomalyStatusConfirmed || a.Status == AnomalyStatusReviewDismissed
}
