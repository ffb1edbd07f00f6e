package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService 订单服务
type OrderService struct {
	repo   *repository.OrderRepository
	logger *zap.Logger
}

// NewOrderService 创建订单服务
func NewOrderService(repo *repository.OrderRepository, logger *zap.Logger) *OrderService {
	return &OrderService{repo: repo, logger: logger}
}

// CreateOrderItemInput 订单行创建参数
type CreateOrderItemInput struct {
	ProductID        string           `json:"product_id"`
	Name             string           `json:"name" binding:"required"`
	SKU              string           `json:"sku"`
	Attributes       entity.StringMap `json:"attributes"`
	Quantity         int              `json:"quantity"`
	UnitPrice        float64          `json:"unit_price"`
	DesignReady      bool             `json:"design_ready"`
	DesignNeedCustom bool             `json:"design_need_custom"`
	DesignFilesManifest entity.Manifest `json:"design_files_manifest"`
}

// CreateOrderInput 订单创建参数
type CreateOrderInput struct {
	ClientName  string                 `json:"clientName" binding:"required"`
	CompanyName string                 `json:"companyName"`
	Phone       string                 `json:"phone"`
	TRN         string                 `json:"trn"`
	Email       string                 `json:"email"`
	Address     string                 `json:"address"`
	Specs       string                 `json:"specs"`
	Urgency     string                 `json:"urgency"`
	SalesPerson string                 `json:"salesPerson"`
	Items       []CreateOrderItemInput `json:"items"`
}

// Create 创建订单
func (s *OrderService) Create(ctx context.Context, input *CreateOrderInput, createdBy string) (*entity.Order, error) {
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}

	now := time.Now()
	order := &entity.Order{
		ID:          uuid.New().String()[:32],
		Code:        generateOrderCode(now),
		ClientName:  input.ClientName,
		CompanyName: input.CompanyName,
		Phone:       input.Phone,
		TRN:         input.TRN,
		Email:       input.Email,
		Address:     input.Address,
		Specs:       input.Specs,
		Urgency:     input.Urgency,
		Status:      entity.OrderStatusNew,
		SalesPerson: input.SalesPerson,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if order.Urgency == "" {
		order.Urgency = "Normal"
	}

	for _, item := range input.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		order.Items = append(order.Items, entity.OrderItem{
			ID:               uuid.New().String()[:32],
			OrderID:          order.ID,
			ProductID:        item.ProductID,
			Name:             item.Name,
			SKU:              item.SKU,
			Attributes:       item.Attributes,
			Quantity:         quantity,
			UnitPrice:        item.UnitPrice,
			DesignReady:      item.DesignReady,
			DesignNeedCustom: item.DesignNeedCustom,
			DesignFilesManifest: item.DesignFilesManifest,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_code", order.Code),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

// Get 获取订单详情
func (s *OrderService) Get(ctx context.Context, id string) (*entity.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// List 订单列表
func (s *OrderService) List(ctx context.Context, page, pageSize int) ([]entity.Order, int64, error) {
	offset := (page - 1) * pageSize
	return s.repo.List(ctx, offset, pageSize)
}

// generateOrderCode 生成订单编号 ORD-YYYYMMDD-XXXX
func generateOrderCode(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
