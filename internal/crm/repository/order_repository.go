package repository

import (
	"context"
	"errors"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"gorm.io/gorm"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单（含订单行）
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID 根据ID查找订单（含订单行）
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// List 订单列表（按创建时间倒序）
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// FindItem 根据订单和行ID查找订单行
func (r *OrderRepository) FindItem(ctx context.Context, orderID, itemID string) (*entity.OrderItem, error) {
	var item entity.OrderItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND order_id = ?", itemID, orderID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// MarkItemDesignReady 在事务内置订单行 design_ready
func (r *OrderRepository) MarkItemDesignReady(tx *gorm.DB, itemID string, ready bool) error {
	return tx.Model(&entity.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"design_ready": ready,
			"updated_at":   time.Now(),
		}).Error
}

// CountItemsAwaitingDesign 统计订单内尚未 design_ready 的定制行
func (r *OrderRepository) CountItemsAwaitingDesign(tx *gorm.DB, orderID string) (int64, error) {
	var count int64
	err := tx.Model(&entity.OrderItem{}).
		Where("order_id = ? AND design_need_custom = ? AND design_ready = ?", orderID, true, false).
		Count(&count).Error
	return count, err
}

// UpdateStatus 在事务内更新订单状态
func (r *OrderRepository) UpdateStatus(tx *gorm.DB, orderID, status string) error {
	return tx.Model(&entity.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
