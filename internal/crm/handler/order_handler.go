package handler

import (
	"github.com/creative780/crm-backend/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler 订单处理器
type OrderHandler struct {
	svc         *service.OrderService
	workflowSvc *service.WorkflowService
	approvalSvc *service.ApprovalService
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(svc *service.OrderService, workflowSvc *service.WorkflowService, approvalSvc *service.ApprovalService) *OrderHandler {
	return &OrderHandler{svc: svc, workflowSvc: workflowSvc, approvalSvc: approvalSvc}
}

// CreateOrder 创建订单
// POST /api/orders/
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input service.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.Create(c.Request.Context(), &input, GetUserID(c))
	if err != nil {
		FailFromError(c, err)
		return
	}

	Created(c, order)
}

// ListOrders 订单列表
// GET /api/orders/
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	orders, total, err := h.svc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取订单列表失败: "+err.Error())
		return
	}

	Success(c, ListResponse{
		Items: orders,
		Pagination: &Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// GetOrder 订单详情
// GET /api/orders/:id/
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailFromError(c, err)
		return
	}
	Success(c, order)
}

// RequestApproval 设计师提交设计稿送审
// POST /api/orders/:id/request-approval/
func (h *OrderHandler) RequestApproval(c *gin.Context) {
	var input service.SubmitApprovalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	approval, err := h.workflowSvc.SubmitForApproval(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		FailFromError(c, err)
		return
	}

	Created(c, approval)
}

// ListOrderApprovals 订单审批历史
// GET /api/orders/:id/approvals/
func (h *OrderHandler) ListOrderApprovals(c *gin.Context) {
	approvals, err := h.approvalSvc.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取审批历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": approvals})
}
