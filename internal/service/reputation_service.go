package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"payguard/backend/internal/detector"
	"payguard/backend/internal/dto"
	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
)

// ErrReputationForeignEmployee 导入快照中包含不属于本公司的员工
var ErrReputationForeignEmployee = errors.New("快照中包含不属于本公司的员工")

// ReputationService 员工信誉分业务接口
//
// 设计说明：
//   - 首次引用时按默认分 75 懒创建；只读查询不落库
//   - Penalize/Recover/Confirm 读-改-写，调用方负责串行化（见 anomalyService.mu）
//   - DecideAction 只比较 < 40 一个阈值
//   - GetMany/Export/Import 面向 API，只作用于调用方公司的员工
type ReputationService interface {
	Get(ctx context.Context, employeeID string) (*model.Reputation, error)
	// GetMany 批量查询；不属于该公司的员工 ID 直接忽略
	GetMany(ctx context.Context, companyID string, employeeIDs []string) ([]dto.ReputationResponse, error)
	Penalize(ctx context.Context, employeeID string) (*model.Reputation, error)
	Recover(ctx context.Context, employeeID string) (*model.Reputation, error)
	// Confirm 人工确认异常：确认数 +1，并再扣一次分
	Confirm(ctx context.Context, employeeID string) (*model.Reputation, error)
	DecideAction(ctx context.Context, employeeID string) (string, error)
	Export(ctx context.Context, companyID string) ([]dto.ReputationSnapshotItem, error)
	// Import 任一条目不属于该公司时整体拒绝
	Import(ctx context.Context, companyID string, req *dto.ReputationImportRequest) (*dto.ReputationImportResponse, error)
}

type reputationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReputationService 创建 ReputationService 实例
func NewReputationService(repo *repository.Repository, logger *zap.Logger) ReputationService {
	return &reputationService{repo: repo, logger: logger}
}

// ────────────────────── 查询 ──────────────────────

func (s *reputationService) Get(ctx context.Context, employeeID string) (*model.Reputation, error) {
	rep, err := s.repo.Reputation.Get(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultReputation(employeeID), nil
		}
		s.logger.Error("查询信誉分失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	return rep, nil
}

func (s *reputationService) GetMany(ctx context.Context, companyID string, employeeIDs []string) ([]dto.ReputationResponse, error) {
	members, err := s.companyMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		if members[id] {
			ids = append(ids, id)
		}
	}

	reps, err := reputationsOf(ctx, s.repo, ids)
	if err != nil {
		s.logger.Error("批量查询信誉分失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ReputationResponse, 0, len(reps))
	for i := range reps {
		result = append(result, toReputationResponse(&reps[i]))
	}
	return result, nil
}

// companyMembers 公司下的员工 ID 集合
func (s *reputationService) companyMembers(ctx context.Context, companyID string) (map[string]bool, error) {
	employees, err := s.repo.Employee.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("查询公司员工失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	members := make(map[string]bool, len(employees))
	for _, e := range employees {
		members[e.EmployeeID] = true
	}
	return members, nil
}

// ────────────────────── 更新 ──────────────────────

func (s *reputationService) Penalize(ctx context.Context, employeeID string) (*model.Reputation, error) {
	return s.mutate(ctx, employeeID, func(r *model.Reputation) {
		r.Score = detector.Penalize(r.Score)
		r.AnomalyCount++
	})
}

func (s *reputationService) Recover(ctx context.Context, employeeID string) (*model.Reputation, error) {
	return s.mutate(ctx, employeeID, func(r *model.Reputation) {
		r.Score = detector.Recover(r.Score)
	})
}

func (s *reputationService) Confirm(ctx context.Context, employeeID string) (*model.Reputation, error) {
	return s.mutate(ctx, employeeID, func(r *model.Reputation) {
		r.ConfirmedCount++
		r.Score = detector.Penalize(r.Score)
	})
}

func (s *reputationService) DecideAction(ctx context.Context, employeeID string) (string, error) {
	rep, err := s.Get(ctx, employeeID)
	if err != nil {
		return "", err
	}
	return detector.DecideAction(rep.Score), nil
}

// mutate 读取（或默认创建）→ 修改 → 保存
func (s *reputationService) mutate(ctx context.Context, employeeID string, fn func(r *model.Reputation)) (*model.Reputation, error) {
	rep, err := s.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	fn(rep)
	rep.UpdatedAt = time.Now().UTC()

	if err := s.repo.Reputation.Save(ctx, rep); err != nil {
		s.logger.Error("保存信誉分失败", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, err
	}
	return rep, nil
}

// ────────────────────── 快照导入导出 ──────────────────────

func (s *reputationService) Export(ctx context.Context, companyID string) ([]dto.ReputationSnapshotItem, error) {
	employees, err := s.repo.Employee.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("查询公司员工失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.EmployeeID)
	}

	// 只导出已落库的记录
	reps, err := s.repo.Reputation.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("导出信誉分失败", zap.Error(err))
		return nil, err
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].EmployeeID < reps[j].EmployeeID })

	items := make([]dto.ReputationSnapshotItem, 0, len(reps))
	for i := range reps {
		updated := reps[i].UpdatedAt
		items = append(items, dto.ReputationSnapshotItem{
			EmployeeID:     reps[i].EmployeeID,
			Score:          reps[i].Score,
			UpdatedAt:      &updated,
			AnomalyCount:   reps[i].AnomalyCount,
			ConfirmedCount: reps[i].ConfirmedCount,
		})
	}
	return items, nil
}

func (s *reputationService) Import(ctx context.Context, companyID string, req *dto.ReputationImportRequest) (*dto.ReputationImportResponse, error) {
	members, err := s.companyMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Reputations {
		if !members[item.EmployeeID] {
			return nil, fmt.Errorf("%w: %s", ErrReputationForeignEmployee, item.EmployeeID)
		}
	}

	now := time.Now().UTC()
	reps := make([]model.Reputation, 0, len(req.Reputations))
	for _, item := range req.Reputations {
		updated := now
		if item.UpdatedAt != nil {
			updated = item.UpdatedAt.UTC()
		}
		reps = append(reps, model.Reputation{
			EmployeeID:     item.EmployeeID,
			Score:          clampImportedScore(item.Score),
			UpdatedAt:      updated,
			AnomalyCount:   item.AnomalyCount,
			ConfirmedCount: item.ConfirmedCount,
		})
	}

	if err := s.repo.Reputation.SaveAll(ctx, reps); err != nil {
		s.logger.Error("导入信誉分失败", zap.Int("count", len(reps)), zap.Error(err))
		return nil, err
	}
	s.logger.Info("信誉分快照已导入", zap.Int("count", len(reps)))
	return &dto.ReputationImportResponse{ImportedCount: len(reps)}, nil
}

// ── 辅助函数 ──

// reputationsOf 按输入顺序返回信誉分，未落库的员工取默认值
func reputationsOf(ctx context.Context, repo *repository.Repository, employeeIDs []string) ([]model.Reputation, error) {
	reps, err := repo.Reputation.ListByIDs(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Reputation, len(reps))
	for _, r := range reps {
		byID[r.EmployeeID] = r
	}

	result := make([]model.Reputation, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		r, ok := byID[id]
		if !ok {
			r = *defaultReputation(id)
		}
		result = append(result, r)
	}
	return result, nil
}

func defaultReputation(employeeID string) *model.Reputation {
	return &model.Reputation{
		EmployeeID: employeeID,
		Score:      detector.ReputationDefault,
		UpdatedAt:  time.Now().UTC(),
	}
}

func clampImportedScore(v int) int {
	if v < detector.ReputationMin {
		return detector.ReputationMin
	}
	if v > detector.ReputationMax {
		return detector.ReputationMax
	}
	return v
}

func toReputationResponse(r *model.Reputation) dto.ReputationResponse {
	return dto.ReputationResponse{
		EmployeeID:     r.EmployeeID,
		Score:          r.Score,
		UpdatedAt:      r.UpdatedAt,
		AnomalyCount:   r.AnomalyCount,
		ConfirmedCount: r.ConfirmedCount,
	}
}
