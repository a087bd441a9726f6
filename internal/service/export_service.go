package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoAnomalies  = errors.New("没有符合条件的异常记录")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 异常台账导出为 Excel (.xlsx)，供审计与财务线下核对
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Sheet "异常台账" 每行一条记录；Sheet "汇总" 按严重程度与状态计数
type ExportService interface {
	ExportAnomalies(ctx context.Context, companyID string, req *dto.AnomalyListRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var ledgerHeaders = []string{
	"检出时间", "员工", "工时记录", "严重程度", "分数", "状态", "动作",
	"检出时信誉分", "原因", "处理人", "处理时间", "回补凭证",
}

var severityOrder = []string{
	model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow,
}

var statusOrder = []string{
	model.AnomalyStatusPendingReview, model.AnomalyStatusRebalanceTriggered,
	model.AnomalyStatusConfirmed, model.AnomalyStatusReviewDismissed,
}

// ═══════════════════════════════════════════════════════════
// ExportAnomalies：导出异常台账为 Excel
// ═══════════════════════════════════════════════════════════
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportAnomalies(ctx context.Context, companyID string, req *dto.AnomalyListRequest) (*bytes.Buffer, string, error) {
	filter := repository.AnomalyFilter{CompanyID: companyID}
	if req != nil {
		filter.EmployeeID = req.EmployeeID
		filter.Status = req.Status
	}

	records, err := s.repo.Anomaly.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询异常台账失败", zap.Error(err))
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, "", ErrExportNoAnomalies
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "异常台账"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// 列宽
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "C", 38)
	f.SetColWidth(sheetName, "D", "H", 14)
	f.SetColWidth(sheetName, "I", "I", 60)
	f.SetColWidth(sheetName, "J", "L", 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	criticalStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})

	// 表头
	for i, h := range ledgerHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(ledgerHeaders)-1), 1), headerStyle)

	// 数据行（台账已按检出时间倒序）
	row := 2
	for i := range records {
		r := &records[i]
		values := []interface{}{
			r.DetectedAt.UTC().Format(time.RFC3339),
			r.EmployeeID,
			r.TimeEntryID,
			r.Severity,
			r.Score,
			r.Status,
			r.Action,
			r.ReputationAtDetection,
			strings.Join(r.Reasons, "; "),
			derefString(r.ResolvedBy),
			formatOptionalTime(r.ResolvedAt),
			derefString(r.RemediationReference),
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		if r.Severity == model.SeverityCritical {
			f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(ledgerHeaders)-1), row), criticalStyle)
		}
		row++
	}
	f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	// 汇总 Sheet
	if err := writeLedgerSummary(f, records, headerStyle); err != nil {
		s.logger.Error("写入汇总 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("anomaly_ledger_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}

// writeLedgerSummary 按严重程度 × 状态计数
func writeLedgerSummary(f *excelize.File, records []model.AnomalyRecord, headerStyle int) error {
	sheet := "汇总"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	counts := make(map[string]map[string]int)
	for _, r := range records {
		if counts[r.Severity] == nil {
			counts[r.Severity] = make(map[string]int)
		}
		counts[r.Severity][r.Status]++
	}

	f.SetColWidth(sheet, "A", "A", 14)
	f.SetColWidth(sheet, "B", colName(len(statusOrder)+1), 22)
	f.SetCellValue(sheet, "A1", "严重程度")
	for i, st := range statusOrder {
		f.SetCellValue(sheet, cell(colName(i+1), 1), st)
	}
	f.SetCellValue(sheet, cell(colName(len(statusOrder)+1), 1), "合计")
	f.SetCellStyle(sheet, "A1", cell(colName(len(statusOrder)+1), 1), headerStyle)

	for i, sev := range severityOrder {
		row := i + 2
		f.SetCellValue(sheet, cell("A", row), sev)
		total := 0
		for j, st := range statusOrder {
			n := counts[sev][st]
			total += n
			f.SetCellValue(sheet, cell(colName(j+1), row), n)
		}
		f.SetCellValue(sheet, cell(colName(len(statusOrder)+1), row), total)
	}
	return nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
