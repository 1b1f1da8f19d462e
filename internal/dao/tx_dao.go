package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/model"
)

type TxDao struct {
	db *gorm.DB
}

func NewTxDao(db *gorm.DB) *TxDao {
	return &TxDao{db: db}
}

func (d *TxDao) InsertTx(ctx context.Context, tx *model.PaymentTransaction) error {
	err := d.db.WithContext(ctx).Create(tx).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return engine.ErrDuplicateKey
	}
	return err
}

func (d *TxDao) GetTx(ctx context.Context, txID uint64) (*model.PaymentTransaction, error) {
	var m model.PaymentTransaction
	err := d.db.WithContext(ctx).Where("tx_id = ?", txID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (d *TxDao) GetTxByChannelTxID(ctx context.Context, channelTxID string) (*model.PaymentTransaction, error) {
	var m model.PaymentTransaction
	err := d.db.WithContext(ctx).Where("channel_tx_id = ?", channelTxID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

// GetOpenTxByOrder 返回订单下最近一笔未到终态的交易
func (d *TxDao) GetOpenTxByOrder(ctx context.Context, orderID uint64) (*model.PaymentTransaction, error) {
	var m model.PaymentTransaction
	err := d.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]int8{model.StatusSucceeded, model.StatusFailed, model.StatusExpired}).
		Order("tx_id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

// GetLatestTxByOrder 返回订单下最近一笔交易，不分终态与否
func (d *TxDao) GetLatestTxByOrder(ctx context.Context, orderID uint64) (*model.PaymentTransaction, error) {
	var m model.PaymentTransaction
	err := d.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("tx_id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (d *TxDao) UpdateTxCAS(ctx context.Context, tx *model.PaymentTransaction, updates map[string]interface{}) (bool, error) {
	set := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = tx.Version + 1
	res := d.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("tx_id = ? AND version = ?", tx.TxID, tx.Version).
		Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetTxChannelID 渠道单号只允许从空写一次，重复写直接落空
func (d *TxDao) SetTxChannelID(ctx context.Context, txID uint64, channelTxID string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("tx_id = ? AND channel_tx_id IS NULL", txID).
		Update("channel_tx_id", channelTxID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
