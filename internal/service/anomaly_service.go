package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payguard/backend/config"
	"payguard/backend/internal/detector"
	"payguard/backend/internal/dto"
	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
	pkgerrors "payguard/backend/pkg/errors"
	"payguard/backend/pkg/kafka"
	"payguard/backend/pkg/metrics"
	pkgredis "payguard/backend/pkg/redis"
)

// ── 异常检测模块业务错误 ──

var (
	ErrAnomalyNotFound           = errors.New("异常记录不存在")
	ErrInvalidResolution         = errors.New("处理结果只能是 confirmed 或 review_dismissed")
	ErrAnomalyAlreadyResolved    = errors.New("异常记录已处理")
	ErrScanInProgress            = errors.New("该公司已有扫描正在执行")
	ErrEmptyRemediationReference = errors.New("回补凭证不能为空")
)

// summaryRecentLimit 概览中最近异常的条数
const summaryRecentLimit = 20

// ScanInput 一次扫描的全部输入（由薪酬系统提供）
type ScanInput struct {
	CompanyID     string
	ReferenceDate time.Time
	Employees     []model.Employee
	TimeEntries   []model.TimeEntry
	PayCycles     []model.PayCycle
	Schedules     []model.WorkSchedule
}

// ScanLocker 跨实例扫描锁，由 pkg/redis.Client 实现
type ScanLocker interface {
	AcquireScanLock(ctx context.Context, companyID, token string, ttl time.Duration) error
	ReleaseScanLock(ctx context.Context, companyID, token string) error
}

// AnomalyService 异常检测与台账业务接口
//
// 设计说明：
//   - 每次扫描都在当批数据上重新训练孤立森林，森林不跨扫描保留
//   - Scan 与 ResolveAnomaly 共用一把进程内互斥锁，保证信誉分单写
//   - ScanCompany 额外持有 Redis 公司级锁；Redis 不可用时退化为进程内锁
//   - 新异常在释放进程内锁后发布到 Kafka，失败只记日志，不影响扫描结果
//   - 按 ID 操作台账时校验公司归属，跨公司一律视为不存在
type AnomalyService interface {
	Scan(ctx context.Context, in *ScanInput) (*dto.ScanResult, error)
	// ScanCompany 从薪酬数据表加载某公司的输入后执行 Scan
	ScanCompany(ctx context.Context, companyID string, referenceDate time.Time) (*dto.ScanResult, error)
	ListAnomalies(ctx context.Context, companyID string, req *dto.AnomalyListRequest) ([]dto.AnomalyResponse, error)
	ResolveAnomaly(ctx context.Context, companyID, anomalyID, resolution, resolverID string) (*dto.AnomalyResponse, error)
	AttachRemediationReference(ctx context.Context, companyID, anomalyID, reference string) (*dto.AnomalyResponse, error)
	GetSummary(ctx context.Context, companyID string) (*dto.SummaryResponse, error)
}

type anomalyService struct {
	cfg        *config.Config
	repo       *repository.Repository
	reputation ReputationService
	publisher  kafka.Publisher
	locker     ScanLocker
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu         sync.Mutex
	randSource func() detector.RandSource
	now        func() time.Time
}

// NewAnomalyService 创建 AnomalyService 实例
// locker 为 nil 时只使用进程内锁；publisher 为 nil 时不发布事件
func NewAnomalyService(
	cfg *config.Config,
	repo *repository.Repository,
	reputation ReputationService,
	publisher kafka.Publisher,
	locker ScanLocker,
	m *metrics.Metrics,
	logger *zap.Logger,
) AnomalyService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	s := &anomalyService{
		cfg:        cfg,
		repo:       repo,
		reputation: reputation,
		publisher:  publisher,
		locker:     locker,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if seed := cfg.Detector.Seed; seed != 0 {
		s.randSource = func() detector.RandSource { return detector.NewSeededRandSource(seed) }
	} else {
		s.randSource = detector.NewRandSource
	}
	return s
}

// ════════════════════════════════════════════════════════════
// Scan：特征提取 → 训练 → 打分 → 阈值 → 信誉/动作 → 落库
// ════════════════════════════════════════════════════════════

func (s *anomalyService) Scan(ctx context.Context, in *ScanInput) (*dto.ScanResult, error) {
	result, records, err := s.scanLocked(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publishAnomalies(ctx, records)
	return result, nil
}

// scanLocked 持有进程内锁执行扫描，返回已落库的新记录
func (s *anomalyService) scanLocked(ctx context.Context, in *ScanInput) (*dto.ScanResult, []model.AnomalyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result, records, err := s.scan(ctx, in)
	scanned := 0
	if result != nil {
		scanned = result.ScannedEntries
	}
	s.metrics.ScanFinished(time.Since(start), scanned, err)
	return result, records, err
}

func (s *anomalyService) scan(ctx context.Context, in *ScanInput) (*dto.ScanResult, []model.AnomalyRecord, error) {
	refDate := in.ReferenceDate
	if refDate.IsZero() {
		refDate = s.now()
	}

	// 1. 发薪日上下文只算一次
	pay := detector.ResolvePayDates(in.PayCycles, refDate)

	// 2. 特征提取：未知员工或未下班打卡的记录直接跳过
	employees := make(map[string]model.Employee, len(in.Employees))
	for _, e := range in.Employees {
		employees[e.EmployeeID] = e
	}
	schedules := make(map[string]*model.WorkSchedule, len(in.Schedules))
	for i := range in.Schedules {
		schedules[in.Schedules[i].ScheduleID] = &in.Schedules[i]
	}

	observations := make([]detector.Observation, 0, len(in.TimeEntries))
	for _, entry := range in.TimeEntries {
		emp, ok := employees[entry.EmployeeID]
		if !ok {
			continue
		}
		obs, ok := detector.Extract(entry, emp, detector.ScheduledStartHour(scheduleOf(emp, schedules)), pay)
		if !ok {
			continue
		}
		observations = append(observations, obs)
	}

	// 3. 空批次不训练，也不改动任何信誉分
	if len(observations) == 0 {
		s.logger.Info("扫描完成：无可用工时记录", zap.String("company_id", in.CompanyID))
		return &dto.ScanResult{NewAnomalies: []dto.AnomalyResponse{}}, nil, nil
	}

	// 4. 当批训练、当批打分
	vectors := make([]detector.Vector, len(observations))
	for i := range observations {
		vectors[i] = observations[i].Vector
	}
	forest := detector.NewForest(s.cfg.Detector.NumTrees, s.cfg.Detector.MaxSamples, s.randSource())
	forest.Fit(vectors)

	threshold := s.cfg.Detector.Threshold
	if threshold <= 0 {
		threshold = detector.DefaultThreshold
	}
	candidates, err := forest.Detect(vectors, threshold)
	if err != nil {
		return nil, nil, err
	}

	// 5. 逐个候选：扣分 → 决策 → 生成记录
	detectedAt := s.now()
	flagged := make(map[string]bool)
	records := make([]model.AnomalyRecord, 0, len(candidates))
	result := &dto.ScanResult{ScannedEntries: len(observations)}

	for _, c := range candidates {
		obs := observations[c.Index]

		rep, err := s.reputation.Penalize(ctx, obs.EmployeeID)
		if err != nil {
			return nil, nil, err
		}
		action := detector.DecideAction(rep.Score)
		if action == model.ActionAutoRebalance {
			result.RemediationCount++
		} else {
			result.ReviewCount++
		}

		records = append(records, model.AnomalyRecord{
			AnomalyID:             uuid.New().String(),
			CompanyID:             in.CompanyID,
			EmployeeID:            obs.EmployeeID,
			TimeEntryID:           obs.EntryID,
			DetectedAt:            detectedAt,
			Severity:              detector.Severity(c.Score),
			Status:                detector.StatusForAction(action),
			Action:                action,
			Score:                 detector.RoundScore(c.Score),
			ReputationAtDetection: rep.Score,
			Features:              obs.Snapshot(),
			Reasons:               model.StringArray(detector.Reasons(obs, c.Score)),
		})
		flagged[obs.EmployeeID] = true
	}

	if err := s.repo.Anomaly.BatchCreate(ctx, records); err != nil {
		s.logger.Error("写入异常台账失败", zap.Int("count", len(records)), zap.Error(err))
		return nil, nil, err
	}

	// 6. 本次未被标记的员工（含没有可用记录的员工）恢复信誉
	recovered := make(map[string]bool, len(in.Employees))
	for _, e := range in.Employees {
		if flagged[e.EmployeeID] || recovered[e.EmployeeID] {
			continue
		}
		if _, err := s.reputation.Recover(ctx, e.EmployeeID); err != nil {
			return nil, nil, err
		}
		recovered[e.EmployeeID] = true
	}

	// 7. 汇总 + 指标
	result.TotalAnomalies = len(records)
	result.NewAnomalies = make([]dto.AnomalyResponse, 0, len(records))
	for i := range records {
		result.NewAnomalies = append(result.NewAnomalies, toAnomalyResponse(&records[i]))
		s.metrics.AnomalyRecorded(records[i].Severity, records[i].Action)
	}

	s.logger.Info("扫描完成",
		zap.String("company_id", in.CompanyID),
		zap.Int("scanned_entries", result.ScannedEntries),
		zap.Int("anomalies", result.TotalAnomalies),
		zap.Int("auto_rebalance", result.RemediationCount),
		zap.Int("manual_review", result.ReviewCount),
		zap.Int("sample_size", forest.SampleSize()),
	)
	return result, records, nil
}

// publishAnomalies 发布新异常事件；失败不影响扫描
func (s *anomalyService) publishAnomalies(ctx context.Context, records []model.AnomalyRecord) {
	if len(records) == 0 {
		return
	}
	msgs := make([]kafka.Message, 0, len(records))
	for i := range records {
		r := &records[i]
		msgs = append(msgs, kafka.Message{
			Key: r.EmployeeID,
			Value: dto.AnomalyEvent{
				AnomalyID:             r.AnomalyID,
				CompanyID:             r.CompanyID,
				EmployeeID:            r.EmployeeID,
				TimeEntryID:           r.TimeEntryID,
				Severity:              r.Severity,
				Action:                r.Action,
				Status:                r.Status,
				Score:                 r.Score,
				ReputationAtDetection: r.ReputationAtDetection,
				Reasons:               []string(r.Reasons),
				DetectedAt:            r.DetectedAt,
			},
		})
	}
	if err := s.publisher.Publish(ctx, msgs...); err != nil {
		s.logger.Error("发布异常事件失败", zap.Int("count", len(msgs)), zap.Error(err))
	}
}

// ════════════════════════════════════════════════════════════
// ScanCompany：加载公司数据并扫描
// ════════════════════════════════════════════════════════════

func (s *anomalyService) ScanCompany(ctx context.Context, companyID string, referenceDate time.Time) (*dto.ScanResult, error) {
	if s.locker != nil {
		token := uuid.New().String()
		err := s.locker.AcquireScanLock(ctx, companyID, token, s.cfg.Scan.LockTTL)
		switch {
		case errors.Is(err, pkgredis.ErrLockHeld):
			return nil, ErrScanInProgress
		case err != nil:
			s.logger.Warn("扫描锁不可用，仅使用进程内锁", zap.String("company_id", companyID), zap.Error(err))
		default:
			defer func() {
				// 请求上下文可能已取消，释放锁使用独立上下文
				releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := s.locker.ReleaseScanLock(releaseCtx, companyID, token); err != nil {
					s.logger.Warn("释放扫描锁失败", zap.String("company_id", companyID), zap.Error(err))
				}
			}()
		}
	}

	in, err := s.loadScanInput(ctx, companyID, referenceDate)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, in)
}

func (s *anomalyService) loadScanInput(ctx context.Context, companyID string, referenceDate time.Time) (*ScanInput, error) {
	if referenceDate.IsZero() {
		referenceDate = s.now()
	}

	employees, err := s.repo.Employee.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("查询员工失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	schedules, err := s.repo.WorkSchedule.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("查询班表失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}

	var since *time.Time
	if days := s.cfg.Scan.WindowDays; days > 0 {
		t := referenceDate.AddDate(0, 0, -days)
		since = &t
	}
	entries, err := s.repo.TimeEntry.ListByCompany(ctx, companyID, since)
	if err != nil {
		s.logger.Error("查询工时记录失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	cycles, err := s.repo.PayCycle.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("查询发薪周期失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}

	return &ScanInput{
		CompanyID:     companyID,
		ReferenceDate: referenceDate,
		Employees:     employees,
		TimeEntries:   entries,
		PayCycles:     cycles,
		Schedules:     schedules,
	}, nil
}

// ════════════════════════════════════════════════════════════
// 台账查询与处理
// ════════════════════════════════════════════════════════════

func (s *anomalyService) ListAnomalies(ctx context.Context, companyID string, req *dto.AnomalyListRequest) ([]dto.AnomalyResponse, error) {
	filter := repository.AnomalyFilter{CompanyID: companyID}
	if req != nil {
		filter.EmployeeID = req.EmployeeID
		filter.Status = req.Status
	}

	records, err := s.repo.Anomaly.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询异常台账失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.AnomalyResponse, 0, len(records))
	for i := range records {
		result = append(result, toAnomalyResponse(&records[i]))
	}
	return result, nil
}

func (s *anomalyService) ResolveAnomaly(ctx context.Context, companyID, anomalyID, resolution, resolverID string) (*dto.AnomalyResponse, error) {
	if resolution != model.AnomalyStatusConfirmed && resolution != model.AnomalyStatusReviewDismissed {
		return nil, ErrInvalidResolution
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getAnomaly(ctx, companyID, anomalyID)
	if err != nil {
		return nil, err
	}
	if rec.IsResolved() {
		return nil, ErrAnomalyAlreadyResolved
	}

	// 确认先扣分再落台账；台账写入失败时恢复原信誉分，保证可以重试
	var previous *model.Reputation
	if resolution == model.AnomalyStatusConfirmed {
		if previous, err = s.reputation.Get(ctx, rec.EmployeeID); err != nil {
			return nil, err
		}
		if _, err := s.reputation.Confirm(ctx, rec.EmployeeID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	rec.Status = resolution
	rec.ResolvedAt = &now
	rec.ResolvedBy = &resolverID

	if err := s.repo.Anomaly.Update(ctx, rec); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新异常记录失败", zap.String("anomaly_id", anomalyID), zap.Error(err))
		}
		if previous != nil {
			s.restoreReputation(ctx, previous)
		}
		return nil, err
	}
	s.metrics.AnomalyResolved(resolution)

	s.logger.Info("异常已处理",
		zap.String("anomaly_id", anomalyID),
		zap.String("resolution", resolution),
		zap.String("resolver", resolverID),
	)
	resp := toAnomalyResponse(rec)
	return &resp, nil
}

// restoreReputation 回滚确认时的扣分；失败只能记日志
func (s *anomalyService) restoreReputation(ctx context.Context, previous *model.Reputation) {
	if err := s.repo.Reputation.Save(ctx, previous); err != nil {
		s.logger.Error("回滚信誉分失败",
			zap.String("employee_id", previous.EmployeeID),
			zap.Int("score", previous.Score),
			zap.Error(err),
		)
	}
}

func (s *anomalyService) AttachRemediationReference(ctx context.Context, companyID, anomalyID, reference string) (*dto.AnomalyResponse, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrEmptyRemediationReference
	}

	rec, err := s.getAnomaly(ctx, companyID, anomalyID)
	if err != nil {
		return nil, err
	}
	rec.RemediationReference = &reference

	if err := s.repo.Anomaly.Update(ctx, rec); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("回填回补凭证失败", zap.String("anomaly_id", anomalyID), zap.Error(err))
		}
		return nil, err
	}

	resp := toAnomalyResponse(rec)
	return &resp, nil
}

func (s *anomalyService) GetSummary(ctx context.Context, companyID string) (*dto.SummaryResponse, error) {
	records, err := s.repo.Anomaly.List(ctx, repository.AnomalyFilter{CompanyID: companyID})
	if err != nil {
		s.logger.Error("查询异常台账失败", zap.Error(err))
		return nil, err
	}

	summary := &dto.SummaryResponse{
		TotalAnomalies: len(records),
		BySeverity: map[string]int{
			model.SeverityLow:      0,
			model.SeverityMedium:   0,
			model.SeverityHigh:     0,
			model.SeverityCritical: 0,
		},
		Recent: make([]dto.AnomalyResponse, 0, summaryRecentLimit),
	}

	var flaggedIDs []string
	seen := make(map[string]bool)
	for i := range records {
		r := &records[i]
		if r.Status == model.AnomalyStatusPendingReview {
			summary.PendingReview++
		}
		if r.Action == model.ActionAutoRebalance {
			summary.RemediationsTriggered++
		}
		summary.BySeverity[r.Severity]++
		if i < summaryRecentLimit {
			summary.Recent = append(summary.Recent, toAnomalyResponse(r))
		}
		if !seen[r.EmployeeID] {
			seen[r.EmployeeID] = true
			flaggedIDs = append(flaggedIDs, r.EmployeeID)
		}
	}

	if len(flaggedIDs) > 0 {
		reps, err := reputationsOf(ctx, s.repo, flaggedIDs)
		if err != nil {
			s.logger.Error("查询信誉分失败", zap.Error(err))
			return nil, err
		}
		total := 0
		for _, r := range reps {
			total += r.Score
		}
		summary.AvgReputation = math.Round(float64(total)/float64(len(reps))*100) / 100
	}
	return summary, nil
}

// ── 辅助函数 ──

// getAnomaly 其他公司的记录同样返回 ErrAnomalyNotFound
func (s *anomalyService) getAnomaly(ctx context.Context, companyID, anomalyID string) (*model.AnomalyRecord, error) {
	rec, err := s.repo.Anomaly.GetByID(ctx, anomalyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnomalyNotFound
		}
		s.logger.Error("查询异常记录失败", zap.String("anomaly_id", anomalyID), zap.Error(err))
		return nil, err
	}
	if rec.CompanyID != companyID {
		return nil, ErrAnomalyNotFound
	}
	return rec, nil
}

// scheduleOf 员工的班表：优先使用预加载的关联，其次按 schedule_id 查输入集合
func scheduleOf(emp model.Employee, schedules map[string]*model.WorkSchedule) *model.WorkSchedule {
	if emp.Schedule != nil {
		return emp.Schedule
	}
	if emp.ScheduleID == nil {
		return nil
	}
	return schedules[*emp.ScheduleID]
}

func toAnomalyResponse(r *model.AnomalyRecord) dto.AnomalyResponse {
	f := r.Features
	reasons := make([]string, len(r.Reasons))
	copy(reasons, r.Reasons)
	return dto.AnomalyResponse{
		AnomalyID:             r.AnomalyID,
		CompanyID:             r.CompanyID,
		EmployeeID:            r.EmployeeID,
		TimeEntryID:           r.TimeEntryID,
		DetectedAt:            r.DetectedAt,
		Severity:              r.Severity,
		Status:                r.Status,
		Action:                r.Action,
		Score:                 r.Score,
		ReputationAtDetection: r.ReputationAtDetection,
		Features: dto.FeatureSnapshotResponse{
			ClockInHour:       f.ClockInHour,
			ClockOutHour:      f.ClockOutHour,
			ShiftHours:        f.ShiftHours,
			DaysSincePayDay:   f.DaysSincePayDay,
			DaysUntilPayDay:   f.DaysUntilPayDay,
			OccupationCode:    f.OccupationCode,
			PayRate:           f.PayRate,
			DayOfWeek:         f.DayOfWeek,
			ScheduleDeviation: f.ScheduleDeviation,
			IsWeekend:         f.IsWeekend,
		},
		Reasons:              reasons,
		ResolvedAt:           r.ResolvedAt,
		ResolvedBy:           r.ResolvedBy,
		RemediationReference: r.RemediationReference,
	}
}
