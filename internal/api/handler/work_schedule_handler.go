package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"payguard/backend/internal/service"
	"payguard/backend/pkg/response"
)

// WorkScheduleHandler 工作班表模块 Handler
type WorkScheduleHandler struct {
	svc service.WorkScheduleService
}

// NewWorkScheduleHandler 创建 WorkScheduleHandler 实例
func NewWorkScheduleHandler(svc service.WorkScheduleService) *WorkScheduleHandler {
	return &WorkScheduleHandler{svc: svc}
}

// ImportICS 从排班日历导入员工班表
// POST /api/v1/work-schedules/import
//
// multipart/form-data 字段：
//   - employee_id（必填）, name, timezone
//   - file: ICS 文件；或 url: ICS 订阅地址（二选一）
func (h *WorkScheduleHandler) ImportICS(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	p := service.ImportScheduleParams{
		CompanyID:  companyID,
		EmployeeID: c.PostForm("employee_id"),
		Name:       c.PostForm("name"),
		Timezone:   c.PostForm("timezone"),
	}
	if p.EmployeeID == "" {
		response.BadRequest(c, 12000, "employee_id 不能为空")
		return
	}

	// 尝试文件上传方式
	file, _, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		resp, err := h.svc.ImportICS(c.Request.Context(), p, file)
		if err != nil {
			handleWorkScheduleError(c, err)
			return
		}
		response.Created(c, resp)
		return
	}

	// 尝试 URL 方式
	icsURL := c.PostForm("url")
	if icsURL == "" {
		response.BadRequest(c, 12000, "请上传 ICS 文件或提供 ICS URL")
		return
	}
	resp, err := h.svc.ImportICSFromURL(c.Request.Context(), p, icsURL)
	if err != nil {
		handleWorkScheduleError(c, err)
		return
	}
	response.Created(c, resp)
}

// handleWorkScheduleError 统一班表模块错误映射
func handleWorkScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmployeeNotFound):
		response.NotFound(c, 12004, err.Error())
	case errors.Is(err, service.ErrScheduleICSInvalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12001, service.ErrScheduleICSInvalid.Error(), err.Error())
	case errors.Is(err, service.ErrInvalidTimezone):
		response.BadRequest(c, 12002, err.Error())
	default:
		response.InternalError(c)
	}
}
