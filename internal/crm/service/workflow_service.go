package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"github.com/creative780/crm-backend/internal/crm/notify"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/creative780/crm-backend/internal/crm/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkflowService 设计审批工作流编排
// 唯一允许翻转订单行 design_ready 的组件
type WorkflowService struct {
	db           *gorm.DB
	orderRepo    *repository.OrderRepository
	approvalRepo *repository.ApprovalRepository
	fileSvc      *FileService
	dispatcher   notify.Dispatcher
	locks        *lineLocker
	logger       *zap.Logger
}

// NewWorkflowService 创建工作流服务
func NewWorkflowService(db *gorm.DB, orderRepo *repository.OrderRepository, approvalRepo *repository.ApprovalRepository, fileSvc *FileService, dispatcher notify.Dispatcher, locks *lineLocker, logger *zap.Logger) *WorkflowService {
	return &WorkflowService{
		db:           db,
		orderRepo:    orderRepo,
		approvalRepo: approvalRepo,
		fileSvc:      fileSvc,
		dispatcher:   dispatcher,
		locks:        locks,
		logger:       logger,
	}
}

// SubmitApprovalInput 设计师提交审批参数
type SubmitApprovalInput struct {
	OrderItemID   string          `json:"order_item_id"`
	Designer      string          `json:"designer" binding:"required"`
	SalesPerson   string          `json:"sales_person" binding:"required"`
	DesignFilesManifest entity.Manifest `json:"design_files_manifest"`
	ApprovalNotes string          `json:"approval_notes"`
}

// SubmitForApproval 设计师提交设计稿送审
// 约束：订单行需 design_need_custom，且当前没有 pending 记录
func (s *WorkflowService) SubmitForApproval(ctx context.Context, orderID string, input *SubmitApprovalInput) (*entity.DesignApproval, error) {
	if strings.TrimSpace(input.Designer) == "" || strings.TrimSpace(input.SalesPerson) == "" {
		return nil, fmt.Errorf("%w: designer and sales_person are required", ErrValidation)
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	item, err := s.resolveItem(order, input.OrderItemID)
	if err != nil {
		return nil, err
	}
	if !item.DesignNeedCustom {
		return nil, fmt.Errorf("%w: order line %s does not require custom design", ErrValidation, item.ID)
	}

	manifest, err := s.fileSvc.NormalizeManifest(ctx, input.DesignFilesManifest)
	if err != nil {
		return nil, err
	}

	approval := &entity.DesignApproval{
		ID:            uuid.New().String()[:32],
		OrderID:       order.ID,
		OrderItemID:   item.ID,
		Designer:      input.Designer,
		SalesPerson:   input.SalesPerson,
		Status:        entity.ApprovalStatusPending,
		DesignFilesManifest: manifest,
		ApprovalNotes: input.ApprovalNotes,
		SubmittedAt:   time.Now(),
	}

	// 行锁内做存在性检查和写入，防止并发提交产生两条 pending
	unlock := s.locks.Lock(item.ID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.approvalRepo.HasPendingForItem(tx, item.ID)
		if err != nil {
			return fmt.Errorf("check pending approval: %w", err)
		}
		if pending {
			return ErrConflict
		}
		if err := s.approvalRepo.Create(tx, approval); err != nil {
			return fmt.Errorf("create approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("design submitted for approval",
		zap.String("approval_id", approval.ID),
		zap.String("order_code", order.Code),
		zap.String("designer", approval.Designer),
		zap.String("sales_person", approval.SalesPerson),
	)

	// 通知失败不回滚已落库的审批记录
	go s.dispatcher.Dispatch(context.Background(), notify.Event{
		Type:       notify.EventApprovalRequested,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		ApprovalID: approval.ID,
		Recipient:  approval.SalesPerson,
	})
	go sse.PublishApprovalUpdate(order.ID, approval.ID, "requested")

	return approval, nil
}

// OnApprovalResolved 审批终态回调，在裁决事务内执行
// approved: 置订单行 design_ready；全部定制行就绪后推进订单状态
// rejected: 保持 design_ready=false，允许重新提交
func (s *WorkflowService) OnApprovalResolved(tx *gorm.DB, approval *entity.DesignApproval) error {
	if approval.Status != entity.ApprovalStatusApproved {
		return nil
	}

	if err := s.orderRepo.MarkItemDesignReady(tx, approval.OrderItemID, true); err != nil {
		return fmt.Errorf("mark item design_ready: %w", err)
	}

	awaiting, err := s.orderRepo.CountItemsAwaitingDesign(tx, approval.OrderID)
	if err != nil {
		return fmt.Errorf("count awaiting items: %w", err)
	}
	if awaiting == 0 {
		if err := s.orderRepo.UpdateStatus(tx, approval.OrderID, entity.OrderStatusDesignReady); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
	}
	return nil
}

// NotifyResolved 裁决落库后发通知（尽力而为）
func (s *WorkflowService) NotifyResolved(approval *entity.DesignApproval, orderCode string) {
	eventType := notify.EventDesignApproved
	action := "approved"
	if approval.Status == entity.ApprovalStatusRejected {
		eventType = notify.EventDesignRejected
		action = "rejected"
	}

	go s.dispatcher.Dispatch(context.Background(), notify.Event{
		Type:       eventType,
		OrderID:    approval.OrderID,
		OrderCode:  orderCode,
		ApprovalID: approval.ID,
		Recipient:  approval.Designer,
		Reason:     approval.RejectionReason,
	})
	go sse.PublishApprovalUpdate(approval.OrderID, approval.ID, action)
}

// LockLine 锁定订单行（裁决端与提交端共用同一把锁）
func (s *WorkflowService) LockLine(itemID string) func() {
	return s.locks.Lock(itemID)
}

// resolveItem 定位送审订单行；未指明行ID时取唯一的定制行
func (s *WorkflowService) resolveItem(order *entity.Order, itemID string) (*entity.OrderItem, error) {
	if itemID != "" {
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				return &order.Items[i], nil
			}
		}
		return nil, repository.ErrNotFound
	}

	var candidate *entity.OrderItem
	for i := range order.Items {
		if order.Items[i].DesignNeedCustom {
			if candidate != nil {
				return nil, fmt.Errorf("%w: order has multiple custom lines, order_item_id is required", ErrValidation)
			}
			candidate = &order.Items[i]
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: order has no line requiring custom design", ErrValidation)
	}
	return candidate, nil
}
