package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/service"
	pkgerrors "payguard/backend/pkg/errors"
	"payguard/backend/pkg/response"
)

// AnomalyHandler 异常检测模块 Handler
type AnomalyHandler struct {
	svc service.AnomalyService
}

// NewAnomalyHandler 创建 AnomalyHandler 实例
func NewAnomalyHandler(svc service.AnomalyService) *AnomalyHandler {
	return &AnomalyHandler{svc: svc}
}

// Scan 对当前公司执行一次异常扫描
// POST /api/v1/anomalies/scan
//
// body 可为空；reference_date 缺省为当天
func (h *AnomalyHandler) Scan(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	var req dto.ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 14000, err.Error())
			return
		}
	}
	// 只能扫描 Token 所属公司
	if req.CompanyID != "" && req.CompanyID != companyID {
		response.Forbidden(c, 10003, "无权扫描其他公司")
		return
	}

	var refDate time.Time
	if req.ReferenceDate != "" {
		refDate, _ = time.Parse("2006-01-02", req.ReferenceDate)
	}

	result, err := h.svc.ScanCompany(c.Request.Context(), companyID, refDate)
	if err != nil {
		handleAnomalyError(c, err)
		return
	}
	response.OK(c, result)
}

// defaultPageSize 台账分页默认每页条数
const defaultPageSize = 50

// ListAnomalies 查询异常台账
// GET /api/v1/anomalies?employee_id=xxx&status=pending_review&page=1&page_size=50
func (h *AnomalyHandler) ListAnomalies(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	var req dto.AnomalyListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 14000, err.Error())
		return
	}

	list, err := h.svc.ListAnomalies(c.Request.Context(), companyID, &req)
	if err != nil {
		handleAnomalyError(c, err)
		return
	}
	if req.Page == 0 {
		response.OK(c, list)
		return
	}

	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	start := (req.Page - 1) * pageSize
	if start > len(list) {
		start = len(list)
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	response.OKPage(c, list[start:end], int64(len(list)), req.Page, pageSize)
}

// GetSummary 台账概览
// GET /api/v1/anomalies/summary
func (h *AnomalyHandler) GetSummary(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	summary, err := h.svc.GetSummary(c.Request.Context(), companyID)
	if err != nil {
		handleAnomalyError(c, err)
		return
	}
	response.OK(c, summary)
}

// ResolveAnomaly 人工处理异常（确认或驳回）
// POST /api/v1/anomalies/:id/resolve
func (h *AnomalyHandler) ResolveAnomaly(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}
	anomalyID, ok := bindAnomalyID(c)
	if !ok {
		return
	}

	var req dto.ResolveAnomalyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14000, err.Error())
		return
	}

	resp, err := h.svc.ResolveAnomaly(c.Request.Context(), companyID, anomalyID, req.Resolution, userID)
	if err != nil {
		handleAnomalyError(c, err)
		return
	}
	response.OK(c, resp)
}

// AttachRemediation 回填资金回补凭证
// PUT /api/v1/anomalies/:id/remediation
func (h *AnomalyHandler) AttachRemediation(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}
	anomalyID, ok := bindAnomalyID(c)
	if !ok {
		return
	}

	var req dto.RemediationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14000, err.Error())
		return
	}

	resp, err := h.svc.AttachRemediationReference(c.Request.Context(), companyID, anomalyID, req.Reference)
	if err != nil {
		handleAnomalyError(c, err)
		return
	}
	response.OK(c, resp)
}

// bindAnomalyID 非 UUID 的 ID 不可能存在，直接按未找到处理
func bindAnomalyID(c *gin.Context) (string, bool) {
	var uri dto.AnomalyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.NotFound(c, 14004, service.ErrAnomalyNotFound.Error())
		return "", false
	}
	return uri.ID, true
}

// handleAnomalyError 统一异常模块错误映射
func handleAnomalyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidResolution):
		response.BadRequest(c, 14001, err.Error())
	case errors.Is(err, service.ErrEmptyRemediationReference):
		response.BadRequest(c, 14002, err.Error())
	case errors.Is(err, service.ErrAnomalyNotFound):
		response.NotFound(c, 14004, err.Error())
	case errors.Is(err, service.ErrAnomalyAlreadyResolved):
		response.Conflict(c, 14005, err.Error())
	case errors.Is(err, service.ErrScanInProgress):
		response.Conflict(c, 14006, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14007, err.Error())
	default:
		response.InternalError(c)
	}
}
