package entity

import (
	"time"
)

// 审批状态常量
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// IsTerminal 是否终态（终态记录不再变更）
func IsTerminal(status string) bool {
	return status == ApprovalStatusApproved || status == ApprovalStatusRejected
}

// DesignApproval 设计审批记录
// 每条记录对应一次提交-裁决周期，只追加不删除；同一订单行最多一条 pending
type DesignApproval struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	OrderID         string     `json:"order_id" gorm:"size:32;not null;index"`
	OrderItemID     string     `json:"order_item_id" gorm:"size:32;not null;index"`
	Designer        string     `json:"designer" gorm:"size:64;not null"`
	SalesPerson     string     `json:"sales_person" gorm:"size:64;not null;index"`
	Status          string     `json:"approval_status" gorm:"column:status;size:20;not null;default:'pending';index"`
	DesignFilesManifest Manifest `json:"design_files_manifest" gorm:"type:jsonb"`
	ApprovalNotes   string     `json:"approval_notes" gorm:"type:text"`
	RejectionReason string     `json:"rejection_reason" gorm:"type:text"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	RespondedAt     *time.Time `json:"responded_at"`

	Order *Order `json:"-" gorm:"foreignKey:OrderID"`
}

func (DesignApproval) TableName() string {
	return "design_approvals"
}
