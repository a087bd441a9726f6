package model

import "time"

// Reputation 员工信誉分，对应 employee_reputations
type Reputation struct {
	EmployeeID     string    `gorm:"type:uuid;primaryKey"      json:"employee_id"`
	Score          int       `gorm:"type:smallint;not null"    json:"score"` // 0-100
	UpdatedAt      time.Time `gorm:"not null"                  json:"updated_at"`
	AnomalyCount   int       `gorm:"not null;default:0"        json:"anomaly_count"`
	ConfirmedCount int       `gorm:"not null;default:0"        json:"confirmed_count"`
}

// TableName 指定表名
func (Reputation) TableName() string { return "employee_reputations" }
