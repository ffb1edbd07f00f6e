package entity

import (
	"time"
)

// 订单状态常量
const (
	OrderStatusNew         = "new"
	OrderStatusInDesign    = "in_design"
	OrderStatusDesignReady = "design_ready"
	OrderStatusInProduction = "in_production"
	OrderStatusDelivered   = "delivered"
)

// Order 客户订单
type Order struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"order_code" gorm:"size:50;not null;uniqueIndex"`
	ClientName  string    `json:"client_name" gorm:"size:200;not null"`
	CompanyName string    `json:"company_name" gorm:"size:200"`
	Phone       string    `json:"phone" gorm:"size:50"`
	TRN         string    `json:"trn" gorm:"size:50"`
	Email       string    `json:"email" gorm:"size:200"`
	Address     string    `json:"address" gorm:"size:500"`
	Specs       string    `json:"specs" gorm:"type:text"`
	Urgency     string    `json:"urgency" gorm:"size:20;default:'Normal'"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'new'"`
	SalesPerson string    `json:"sales_person" gorm:"size:64"`
	Designer    string    `json:"assigned_designer" gorm:"size:64"`
	CreatedBy   string    `json:"created_by" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单行
// design_need_custom 为 true 时必须先走设计审批，approved 后才置 design_ready
type OrderItem struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID          string    `json:"order_id" gorm:"size:32;not null;index"`
	ProductID        string    `json:"product_id" gorm:"size:64"`
	Name             string    `json:"name" gorm:"size:200;not null"`
	SKU              string    `json:"sku" gorm:"size:64"`
	Attributes       StringMap `json:"attributes" gorm:"type:jsonb"`
	Quantity         int       `json:"quantity" gorm:"not null;default:1"`
	UnitPrice        float64   `json:"unit_price" gorm:"type:decimal(12,2);default:0"`
	DesignReady      bool      `json:"design_ready" gorm:"not null;default:false"`
	DesignNeedCustom bool      `json:"design_need_custom" gorm:"not null;default:false"`
	DesignFilesManifest Manifest `json:"design_files_manifest" gorm:"type:jsonb"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Order *Order `json:"-" gorm:"foreignKey:OrderID"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
