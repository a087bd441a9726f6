package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
)

// ── 班表模块业务错误 ──

var (
	ErrEmployeeNotFound   = errors.New("员工不存在")
	ErrScheduleICSInvalid = errors.New("ICS 文件中没有可识别的班次")
	ErrInvalidTimezone    = errors.New("无效的时区")
)

// ImportScheduleParams 班表导入参数
type ImportScheduleParams struct {
	CompanyID  string // 调用方所属公司；为空时不校验
	EmployeeID string
	Name       string
	Timezone   string // IANA 时区，空值为 UTC
}

// WorkScheduleService 工作班表业务接口
//
// 设计说明：
//   - 班表主数据归薪酬系统所有，这里只提供从排班日历导入计划上班时间的入口
//   - 导入生成一条新班表并分配给员工，旧班表保留供历史记录引用
type WorkScheduleService interface {
	ImportICS(ctx context.Context, p ImportScheduleParams, reader io.Reader) (*dto.ImportScheduleResponse, error)
	ImportICSFromURL(ctx context.Context, p ImportScheduleParams, url string) (*dto.ImportScheduleResponse, error)
}

type workScheduleService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewWorkScheduleService 创建 WorkScheduleService 实例
func NewWorkScheduleService(repo *repository.Repository, logger *zap.Logger) WorkScheduleService {
	return &workScheduleService{repo: repo, logger: logger}
}

func (s *workScheduleService) ImportICSFromURL(ctx context.Context, p ImportScheduleParams, url string) (*dto.ImportScheduleResponse, error) {
	body, err := FetchICSContent(url)
	if err != nil {
		s.logger.Warn("获取 ICS 失败", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrScheduleICSInvalid, err)
	}
	defer body.Close()
	return s.ImportICS(ctx, p, body)
}

func (s *workScheduleService) ImportICS(ctx context.Context, p ImportScheduleParams, reader io.Reader) (*dto.ImportScheduleResponse, error) {
	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, ErrInvalidTimezone
		}
		loc = l
	}

	emp, err := s.repo.Employee.GetByID(ctx, p.EmployeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("查询员工失败", zap.String("employee_id", p.EmployeeID), zap.Error(err))
		return nil, err
	}
	if p.CompanyID != "" && emp.CompanyID != p.CompanyID {
		return nil, ErrEmployeeNotFound
	}

	shift, err := ParseScheduleICS(reader, loc)
	if err != nil {
		s.logger.Warn("解析班表 ICS 失败", zap.String("employee_id", p.EmployeeID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrScheduleICSInvalid, err)
	}

	name := p.Name
	if name == "" {
		name = emp.Name + " 班表"
	}
	ws := &model.WorkSchedule{
		ScheduleID: uuid.New().String(),
		CompanyID:  emp.CompanyID,
		Name:       name,
		StartTime:  shift.StartTime,
		EndTime:    shift.EndTime,
		Source:     model.ScheduleSourceICS,
	}
	if err := s.repo.WorkSchedule.Create(ctx, ws); err != nil {
		s.logger.Error("创建班表失败", zap.Error(err))
		return nil, err
	}
	if err := s.repo.Employee.AssignSchedule(ctx, emp.EmployeeID, ws.ScheduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		s.logger.Error("分配班表失败", zap.String("employee_id", emp.EmployeeID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("班表已导入",
		zap.String("employee_id", emp.EmployeeID),
		zap.String("schedule_id", ws.ScheduleID),
		zap.String("start_time", ws.StartTime),
		zap.Int("events", shift.EventCount),
	)
	return &dto.ImportScheduleResponse{
		ScheduleID: ws.ScheduleID,
		EmployeeID: emp.EmployeeID,
		Name:       ws.Name,
		StartTime:  ws.StartTime,
		EndTime:    ws.EndTime,
		EventCount: shift.EventCount,
	}, nil
}
