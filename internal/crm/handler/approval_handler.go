package handler

import (
	"fmt"
	"net/http"

	"github.com/creative780/crm-backend/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ApprovalHandler 设计审批处理器
type ApprovalHandler struct {
	svc *service.ApprovalService
}

// NewApprovalHandler 创建设计审批处理器
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// ListPending 当前审批人的待办队列
// GET /api/approvals/pending/
// 默认取调用者身份，admin 可通过 reviewer 参数代查
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	reviewer := GetUserID(c)
	if override := c.Query("reviewer"); override != "" && c.GetString("user_role") == "admin" {
		reviewer = override
	}

	summaries, err := h.svc.ListPending(c.Request.Context(), reviewer)
	if err != nil {
		InternalError(c, "获取待审批列表失败: "+err.Error())
		return
	}
	Success(c, summaries)
}

// Respond 审批裁决
// POST /api/approvals/:id/respond/
func (h *ApprovalHandler) Respond(c *gin.Context) {
	var input service.RespondInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	approval, err := h.svc.Respond(c.Request.Context(), c.Param("id"), GetUserID(c), &input)
	if err != nil {
		FailFromError(c, err)
		return
	}

	Success(c, approval)
}

// GetApproval 审批详情
// GET /api/approvals/:id/
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	approval, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailFromError(c, err)
		return
	}
	Success(c, approval)
}

// Stats 审批状态统计
// GET /api/approvals/stats/
func (h *ApprovalHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		InternalError(c, "获取审批统计失败: "+err.Error())
		return
	}
	Success(c, stats)
}

// Export 导出审批历史xlsx
// GET /api/approvals/export/
func (h *ApprovalHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context())
	if err != nil {
		InternalError(c, "导出失败: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}
