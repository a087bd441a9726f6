package dto

import "time"

// ReputationResponse 员工信誉分
type ReputationResponse struct {
	EmployeeID     string    `json:"employee_id"`
	Score          int       `json:"score"`
	UpdatedAt      time.Time `json:"updated_at"`
	AnomalyCount   int       `json:"anomaly_count"`
	ConfirmedCount int       `json:"confirmed_count"`
}

// ReputationSnapshotItem 导入/导出快照中的一条记录
type ReputationSnapshotItem struct {
	EmployeeID     string     `json:"employee_id" binding:"required"`
	Score          int        `json:"score" binding:"min=0,max=100"`
	UpdatedAt      *time.Time `json:"updated_at"`
	AnomalyCount   int        `json:"anomaly_count" binding:"min=0"`
	ConfirmedCount int        `json:"confirmed_count" binding:"min=0"`
}

// ReputationImportRequest 信誉快照导入请求
type ReputationImportRequest struct {
	Reputations []ReputationSnapshotItem `json:"reputations" binding:"required,dive"`
}

// ReputationImportResponse 导入结果
type ReputationImportResponse struct {
	ImportedCount int `json:"imported_count"`
}
