package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"pay-gateway-api/internal/model"
)

type OrphanDao struct {
	db *gorm.DB
}

func NewOrphanDao(db *gorm.DB) *OrphanDao {
	return &OrphanDao{db: db}
}

func (d *OrphanDao) InsertOrphan(ctx context.Context, oc *model.OrphanCallback) error {
	return d.db.WithContext(ctx).Create(oc).Error
}

// TakeOrphan 取出窗口内匹配的孤儿回调并删除，保证只被回放一次
func (d *OrphanDao) TakeOrphan(ctx context.Context, channel, channelTxID string, now time.Time) (*model.OrphanCallback, error) {
	var m model.OrphanCallback
	err := d.db.WithContext(ctx).
		Where("channel = ? AND channel_tx_id = ? AND expires_at > ?", channel, channelTxID, now).
		Order("received_at").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res := d.db.WithContext(ctx).Where("id = ?", m.ID).Delete(&model.OrphanCallback{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 并发回放抢先删了，当不存在处理
		return nil, nil
	}
	return &m, nil
}

func (d *OrphanDao) PurgeOrphans(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.OrphanCallback{})
	return res.RowsAffected, res.Error
}
