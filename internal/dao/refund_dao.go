package dao

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/model"
)

type RefundDao struct {
	db *gorm.DB
}

func NewRefundDao(db *gorm.DB) *RefundDao {
	return &RefundDao{db: db}
}

func (d *RefundDao) InsertRefund(ctx context.Context, r *model.RefundOrder) error {
	err := d.db.WithContext(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return engine.ErrDuplicateKey
	}
	return err
}

func (d *RefundDao) GetRefund(ctx context.Context, refundID uint64) (*model.RefundOrder, error) {
	var m model.RefundOrder
	err := d.db.WithContext(ctx).Where("refund_id = ?", refundID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (d *RefundDao) UpdateRefundCAS(ctx context.Context, r *model.RefundOrder, updates map[string]interface{}) (bool, error) {
	set := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = r.Version + 1
	res := d.db.WithContext(ctx).Model(&model.RefundOrder{}).
		Where("refund_id = ? AND version = ?", r.RefundID, r.Version).
		Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SumRefunds 占用额 = 非失败退款之和，超额校验基于它
func (d *RefundDao) SumRefunds(ctx context.Context, txID uint64, statuses []int8) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := d.db.WithContext(ctx).Model(&model.RefundOrder{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("tx_id = ? AND status IN ?", txID, statuses).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// ListRefundsDue 到期需要推进的退款单（提交重试或查证）
func (d *RefundDao) ListRefundsDue(ctx context.Context, now time.Time, limit int) ([]model.RefundOrder, error) {
	var list []model.RefundOrder
	err := d.db.WithContext(ctx).
		Where("status IN ? AND manual_review = 0 AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			[]int8{model.StatusSubmitted, model.StatusAmbiguous}, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&list).Error
	return list, err
}
