package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"github.com/creative780/crm-backend/internal/crm/notify"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 裁决动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ApprovalService 审批状态机与待办队列
// 状态：pending →（approve）approved | （reject）rejected，均为终态
type ApprovalService struct {
	db         *gorm.DB
	repo       *repository.ApprovalRepository
	workflow   *WorkflowService
	dispatcher notify.Dispatcher
	locks      *lineLocker
	logger     *zap.Logger
}

// NewApprovalService 创建审批服务
func NewApprovalService(db *gorm.DB, repo *repository.ApprovalRepository, workflow *WorkflowService, dispatcher notify.Dispatcher, locks *lineLocker, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		db:         db,
		repo:       repo,
		workflow:   workflow,
		dispatcher: dispatcher,
		locks:      locks,
		logger:     logger,
	}
}

// RespondInput 裁决参数
type RespondInput struct {
	Action          string `json:"action" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
}

// Respond 审批人裁决
// 仅指定审批人可调用；重复裁决返回 ErrInvalidState 而不是静默吞掉
func (s *ApprovalService) Respond(ctx context.Context, approvalID, reviewer string, input *RespondInput) (*entity.DesignApproval, error) {
	if input.Action != ActionApprove && input.Action != ActionReject {
		return nil, fmt.Errorf("%w: action must be approve or reject", ErrValidation)
	}
	if input.Action == ActionReject && strings.TrimSpace(input.RejectionReason) == "" {
		return nil, fmt.Errorf("%w: rejection_reason is required when rejecting", ErrValidation)
	}

	approval, err := s.repo.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval.SalesPerson != reviewer {
		return nil, ErrNotReviewer
	}
	if entity.IsTerminal(approval.Status) {
		return nil, fmt.Errorf("%w: current status is %s", ErrInvalidState, approval.Status)
	}

	targetStatus := entity.ApprovalStatusApproved
	reason := ""
	if input.Action == ActionReject {
		targetStatus = entity.ApprovalStatusRejected
		reason = input.RejectionReason
	}
	now := time.Now()

	// 与提交端共用行锁；状态 CAS 保证并发裁决只有先到者生效
	unlock := s.locks.Lock(approval.OrderItemID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := s.repo.ResolvePending(tx, approval.ID, targetStatus, reason, now)
		if err != nil {
			return fmt.Errorf("resolve approval: %w", err)
		}
		if !resolved {
			return fmt.Errorf("%w: approval already resolved", ErrInvalidState)
		}

		approval.Status = targetStatus
		approval.RejectionReason = reason
		approval.RespondedAt = &now

		return s.workflow.OnApprovalResolved(tx, approval)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval resolved",
		zap.String("approval_id", approval.ID),
		zap.String("status", approval.Status),
		zap.String("reviewer", reviewer),
	)

	orderCode, _ := s.orderCode(ctx, approval.OrderID)
	s.workflow.NotifyResolved(approval, orderCode)

	return approval, nil
}

// Get 审批详情
func (s *ApprovalService) Get(ctx context.Context, id string) (*entity.DesignApproval, error) {
	return s.repo.FindByID(ctx, id)
}

// ListPending 审批人的待办队列（submitted_at 升序）
func (s *ApprovalService) ListPending(ctx context.Context, reviewer string) ([]repository.PendingSummary, error) {
	return s.repo.ListPendingByReviewer(ctx, reviewer)
}

// ListByOrder 订单审批历史
func (s *ApprovalService) ListByOrder(ctx context.Context, orderID string) ([]entity.DesignApproval, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// Stats 按状态统计
func (s *ApprovalService) Stats(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// Export 导出审批历史为xlsx
func (s *ApprovalService) Export(ctx context.Context) (*excelize.File, string, error) {
	approvals, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list approvals: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Approvals"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := []string{"ID", "订单", "订单行", "设计师", "审批人", "状态", "驳回原因", "文件数", "提交时间", "裁决时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, a := range approvals {
		respondedAt := ""
		if a.RespondedAt != nil {
			respondedAt = a.RespondedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			a.ID, a.OrderID, a.OrderItemID, a.Designer, a.SalesPerson,
			a.Status, a.RejectionReason, len(a.DesignFilesManifest),
			a.SubmittedAt.Format("2006-01-02 15:04:05"), respondedAt,
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("design_approvals_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

// orderCode 读取订单编号供通知展示
func (s *ApprovalService) orderCode(ctx context.Context, orderID string) (string, error) {
	var code string
	err := s.db.WithContext(ctx).
		Model(&entity.Order{}).
		Select("code").
		Where("id = ?", orderID).
		Scan(&code).Error
	return code, err
}
