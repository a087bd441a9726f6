package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/service"
	"payguard/backend/pkg/response"
)

// maxReputationQueryIDs 单次查询的员工数上限
const maxReputationQueryIDs = 500

// ReputationHandler 信誉分模块 Handler
type ReputationHandler struct {
	svc service.ReputationService
}

// NewReputationHandler 创建 ReputationHandler 实例
func NewReputationHandler(svc service.ReputationService) *ReputationHandler {
	return &ReputationHandler{svc: svc}
}

// GetReputations 批量查询信誉分
// GET /api/v1/reputations?employee_ids=a,b,c
func (h *ReputationHandler) GetReputations(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	var ids []string
	for _, id := range strings.Split(c.Query("employee_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		response.BadRequest(c, 13000, "employee_ids 不能为空")
		return
	}
	if len(ids) > maxReputationQueryIDs {
		response.BadRequest(c, 13001, "employee_ids 数量超出上限")
		return
	}

	reps, err := h.svc.GetMany(c.Request.Context(), companyID, ids)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, reps)
}

// ExportSnapshot 导出本公司员工的信誉分快照
// GET /api/v1/reputations/export
func (h *ReputationHandler) ExportSnapshot(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	items, err := h.svc.Export(c.Request.Context(), companyID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

// ImportSnapshot 导入信誉分快照（按员工覆盖）
// POST /api/v1/reputations/import
func (h *ReputationHandler) ImportSnapshot(c *gin.Context) {
	companyID, ok := MustGetCompanyID(c)
	if !ok {
		return
	}

	var req dto.ReputationImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13000, err.Error())
		return
	}

	resp, err := h.svc.Import(c.Request.Context(), companyID, &req)
	if err != nil {
		if errors.Is(err, service.ErrReputationForeignEmployee) {
			response.BadRequest(c, 13002, err.Error())
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, resp)
}
