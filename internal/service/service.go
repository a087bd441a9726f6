package service

import (
	"go.uber.org/zap"

	"payguard/backend/config"
	"payguard/backend/internal/repository"
	"payguard/backend/pkg/kafka"
	"payguard/backend/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Reputation   ReputationService
	Anomaly      AnomalyService
	Export       ExportService
	WorkSchedule WorkScheduleService
}

// NewService 创建 Service 聚合
// locker 为 nil 时扫描只做进程内串行化
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	publisher kafka.Publisher,
	locker ScanLocker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	reputation := NewReputationService(repo, logger)
	return &Service{
		Reputation:   reputation,
		Anomaly:      NewAnomalyService(cfg, repo, reputation, publisher, locker, m, logger),
		Export:       NewExportService(repo, logger),
		WorkSchedule: NewWorkScheduleService(repo, logger),
	}
}
