package handler

import "payguard/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Anomaly      *AnomalyHandler
	Reputation   *ReputationHandler
	Export       *ExportHandler
	WorkSchedule *WorkScheduleHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Anomaly:      NewAnomalyHandler(svc.Anomaly),
		Reputation:   NewReputationHandler(svc.Reputation),
		Export:       NewExportHandler(svc.Export),
		WorkSchedule: NewWorkScheduleHandler(svc.WorkSchedule),
	}
}
