package repository

import (
	"context"
	"errors"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"gorm.io/gorm"
)

// ApprovalRepository 设计审批仓储
type ApprovalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository 创建设计审批仓储
func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// DB 返回底层连接（供服务层开启事务）
func (r *ApprovalRepository) DB() *gorm.DB {
	return r.db
}

// Create 在事务内创建审批记录
func (r *ApprovalRepository) Create(tx *gorm.DB, approval *entity.DesignApproval) error {
	return tx.Create(approval).Error
}

// FindByID 根据ID查找审批记录
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*entity.DesignApproval, error) {
	var approval entity.DesignApproval
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &approval, nil
}

// HasPendingForItem 订单行当前是否存在 pending 审批
func (r *ApprovalRepository) HasPendingForItem(tx *gorm.DB, itemID string) (bool, error) {
	var count int64
	err := tx.Model(&entity.DesignApproval{}).
		Where("order_item_id = ? AND status = ?", itemID, entity.ApprovalStatusPending).
		Count(&count).Error
	return count > 0, err
}

// ResolvePending 状态 CAS：pending → 终态，返回是否命中
// 未命中说明记录已被并发裁决或不存在
func (r *ApprovalRepository) ResolvePending(tx *gorm.DB, id, status, reason string, respondedAt time.Time) (bool, error) {
	result := tx.Model(&entity.DesignApproval{}).
		Where("id = ? AND status = ?", id, entity.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"rejection_reason": reason,
			"responded_at":     respondedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PendingSummary 待审批摘要（order_code/client_name 读取时联表，不冗余存储）
type PendingSummary struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	OrderCode       string          `json:"order_code"`
	ClientName      string          `json:"client_name"`
	OrderItemID     string          `json:"order_item_id"`
	Designer        string          `json:"designer"`
	SalesPerson     string          `json:"sales_person"`
	Status          string          `json:"approval_status" gorm:"column:status"`
	DesignFilesManifest entity.Manifest `json:"design_files_manifest"`
	ApprovalNotes   string          `json:"approval_notes"`
	FileCount       int             `json:"file_count" gorm:"-"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

// ListPendingByReviewer 审批人的待办队列，submitted_at 升序，时间相同按 id 保证稳定
func (r *ApprovalRepository) ListPendingByReviewer(ctx context.Context, reviewer string) ([]PendingSummary, error) {
	var summaries []PendingSummary
	err := r.db.WithContext(ctx).
		Table("design_approvals AS a").
		Select("a.id, a.order_id, o.code AS order_code, o.client_name, a.order_item_id, a.designer, a.sales_person, a.status, a.design_files_manifest, a.approval_notes, a.submitted_at").
		Joins("JOIN orders o ON o.id = a.order_id").
		Where("a.sales_person = ? AND a.status = ?", reviewer, entity.ApprovalStatusPending).
		Order("a.submitted_at ASC, a.id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].FileCount = len(summaries[i].DesignFilesManifest)
	}
	return summaries, nil
}

// ListByOrder 订单的审批历史（只追加，含终态记录）
func (r *ApprovalRepository) ListByOrder(ctx context.Context, orderID string) ([]entity.DesignApproval, error) {
	var approvals []entity.DesignApproval
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("submitted_at ASC, id ASC").
		Find(&approvals).Error
	return approvals, err
}

// ListAll 全部审批记录（导出用）
func (r *ApprovalRepository) ListAll(ctx context.Context) ([]entity.DesignApproval, error) {
	var approvals []entity.DesignApproval
	err := r.db.WithContext(ctx).
		Order("submitted_at ASC, id ASC").
		Find(&approvals).Error
	return approvals, err
}

// CountByStatus 按状态统计
func (r *ApprovalRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.DesignApproval{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{
		entity.ApprovalStatusPending:  0,
		entity.ApprovalStatusApproved: 0,
		entity.ApprovalStatusRejected: 0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
