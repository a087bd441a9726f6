package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/service"
	"payguard/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportAnomalies 导出异常台账
// GET /api/v1/anomalies/export?employee_id=xxx&status=xxx
func (h *ExportHandler) ExportAnomalies(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	var req dto.AnomalyListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 16100, err.Error())
		return
	}

	buf, filename, err := h.exportSvc.ExportAnomalies(c.Request.Context(), companyID, &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoAnomalies):
		response.NotFound(c, 16101, "没有符合条件的异常记录")
	default:
		response.InternalError(c)
	}
}
