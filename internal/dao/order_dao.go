package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/model"
)

type OrderDao struct {
	db *gorm.DB
}

func NewOrderDao(db *gorm.DB) *OrderDao {
	return &OrderDao{db: db}
}

func (d *OrderDao) InsertOrder(ctx context.Context, o *model.PaymentOrder) error {
	err := d.db.WithContext(ctx).Create(o).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return engine.ErrDuplicateKey
	}
	return err
}

func (d *OrderDao) GetOrder(ctx context.Context, orderID uint64) (*model.PaymentOrder, error) {
	var m model.PaymentOrder
	err := d.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (d *OrderDao) GetOrderByMerchant(ctx context.Context, mID uint64, mOrderID string) (*model.PaymentOrder, error) {
	var m model.PaymentOrder
	err := d.db.WithContext(ctx).Where("m_id = ? AND m_order_id = ?", mID, mOrderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (d *OrderDao) GetOrderVersion(ctx context.Context, orderID uint64) (uint32, error) {
	var ver uint32
	row := d.db.WithContext(ctx).Model(&model.PaymentOrder{}).
		Select("version").Where("order_id = ?", orderID).Row()
	if err := row.Scan(&ver); err != nil {
		return 0, err
	}
	return ver, nil
}

// UpdateOrderCAS 乐观锁更新：WHERE version 命中才写，写则 version+1；
// 带状态变更时迁移序号同步 +1
func (d *OrderDao) UpdateOrderCAS(ctx context.Context, o *model.PaymentOrder, updates map[string]interface{}) (bool, error) {
	set := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = o.Version + 1
	if _, ok := updates["status"]; ok {
		set["seq"] = o.Seq + 1
	}
	res := d.db.WithContext(ctx).Model(&model.PaymentOrder{}).
		Where("order_id = ? AND version = ?", o.OrderID, o.Version).
		Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAmbiguousOrders 扫描到期待查证的 AMBIGUOUS 订单（人工处理中的不碰）
func (d *OrderDao) ListAmbiguousOrders(ctx context.Context, now time.Time, limit int) ([]model.PaymentOrder, error) {
	var list []model.PaymentOrder
	err := d.db.WithContext(ctx).
		Where("status = ? AND manual_review = 0 AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			model.StatusAmbiguous, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListStuckSubmittedOrders 提交后迟迟无回调的订单，超过静默窗口转主动查证
func (d *OrderDao) ListStuckSubmittedOrders(ctx context.Context, before time.Time, limit int) ([]model.PaymentOrder, error) {
	var list []model.PaymentOrder
	err := d.db.WithContext(ctx).
		Where("status = ? AND manual_review = 0 AND updated_at < ?", model.StatusSubmitted, before).
		Order("updated_at").
		Limit(limit).
		Find(&list).Error
	return list, err
}
