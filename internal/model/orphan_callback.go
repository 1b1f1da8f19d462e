package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrphanCallback 先于本地交易记录到达的上游通知，保留一个窗口期等待回放
type OrphanCallback struct {
	ID          uint64          `gorm:"column:id;primaryKey" json:"id"`
	Channel     string          `gorm:"column:channel;type:varchar(30);not null" json:"channel"`
	ChannelTxID string          `gorm:"column:channel_tx_id;type:varchar(64);not null;index" json:"channelTxId"`
	Outcome     int8            `gorm:"column:outcome;type:tinyint(1);not null" json:"outcome"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(18,4);not null" json:"amount"`
	Raw         string          `gorm:"column:raw;type:text" json:"raw"`
	ReceivedAt  time.Time       `gorm:"column:received_at;autoCreateTime" json:"receivedAt"`
	ExpiresAt   time.Time       `gorm:"column:expires_at;index" json:"expiresAt"`
}

func (OrphanCallback) TableName() string {
	return "orphan_callbacks"
}
