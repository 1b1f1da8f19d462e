package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundOrder represents refund_orders
// 仅能对 SUCCEEDED 的交易发起；同一交易累计成功退款不得超过交易金额
type RefundOrder struct {
	RefundID        uint64          `gorm:"column:refund_id;primaryKey" json:"refundId"`
	OrderID         uint64          `gorm:"column:order_id;not null;index" json:"orderId"`
	TxID            uint64          `gorm:"column:tx_id;not null;index" json:"txId"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(18,4);not null" json:"amount"`
	Reason          string          `gorm:"column:reason;type:varchar(255);not null" json:"reason"`
	Status          int8            `gorm:"column:status;type:tinyint(1);not null;index:idx_refund_retry,priority:1" json:"status"`
	Version         uint32          `gorm:"column:version;not null" json:"version"`
	ChannelRefundID *string         `gorm:"column:channel_refund_id;type:varchar(64);index" json:"channelRefundId"`
	RetryCount      int             `gorm:"column:retry_count;not null" json:"retryCount"`
	NextRetryAt     *time.Time      `gorm:"column:next_retry_at;index:idx_refund_retry,priority:2" json:"nextRetryAt"`
	ManualReview    bool            `gorm:"column:manual_review;not null" json:"manualReview"`
	Ext             Metadata        `gorm:"column:ext;type:json" json:"ext"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (RefundOrder) TableName() string {
	return "refund_orders"
}
