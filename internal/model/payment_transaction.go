package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransaction represents payment_transactions
// 一个订单允许多次提交尝试，但同一时刻最多一笔非终态交易；
// channel_tx_id 一经写入不再变更
type PaymentTransaction struct {
	TxID         uint64          `gorm:"column:tx_id;primaryKey" json:"txId"`
	OrderID      uint64          `gorm:"column:order_id;not null;index" json:"orderId"`
	ChannelTxID  *string         `gorm:"column:channel_tx_id;type:varchar(64);index" json:"channelTxId"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(18,4);not null" json:"amount"`
	Status       int8            `gorm:"column:status;type:tinyint(1);not null" json:"status"`
	Version      uint32          `gorm:"column:version;not null" json:"version"`
	ErrorCode    *string         `gorm:"column:error_code;type:varchar(64)" json:"errorCode"`
	ErrorMessage *string         `gorm:"column:error_message;type:varchar(255)" json:"errorMessage"`
	Ext          Metadata        `gorm:"column:ext;type:json" json:"ext"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
