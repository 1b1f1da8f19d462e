package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata 透传元数据，JSON 列
type Metadata map[string]string

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("Metadata scan failed: %v", value)
	}
	return json.Unmarshal(bytes, m)
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// PaymentOrder represents payment_orders
// (m_id, m_order_id) 唯一索引即幂等键；amount/currency 创建后不可变
type PaymentOrder struct {
	OrderID      uint64          `gorm:"column:order_id;primaryKey" json:"orderId"`
	MID          uint64          `gorm:"column:m_id;not null;uniqueIndex:uk_m_order,priority:1" json:"mId"`
	MOrderID     string          `gorm:"column:m_order_id;type:varchar(64);not null;uniqueIndex:uk_m_order,priority:2" json:"mOrderId"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(18,4);not null" json:"amount"`
	Currency     string          `gorm:"column:currency;type:char(3);not null" json:"currency"`
	Channel      string          `gorm:"column:channel;type:varchar(30);not null" json:"channel"`
	Method       string          `gorm:"column:method;type:varchar(30);not null" json:"method"`
	Region       string          `gorm:"column:region;type:varchar(30);not null" json:"region"`
	Subject      string          `gorm:"column:subject;type:varchar(100);not null" json:"subject"`
	Status       int8            `gorm:"column:status;type:tinyint(1);not null;index:idx_status_retry,priority:1" json:"status"`
	Seq          uint32          `gorm:"column:seq;not null" json:"seq"`         // 状态迁移序号，单调递增
	Version      uint32          `gorm:"column:version;not null" json:"version"` // 乐观锁
	NotifyURL    string          `gorm:"column:notify_url;type:varchar(255);not null" json:"notifyUrl"`
	ReturnURL    string          `gorm:"column:return_url;type:varchar(255)" json:"returnUrl"`
	ClientIP     string          `gorm:"column:client_ip;type:varchar(45)" json:"clientIp"`
	RetryCount   int             `gorm:"column:retry_count;not null" json:"retryCount"`
	NextRetryAt  *time.Time      `gorm:"column:next_retry_at;index:idx_status_retry,priority:2" json:"nextRetryAt"`
	ManualReview bool            `gorm:"column:manual_review;not null" json:"manualReview"` // 终态冲突或重试耗尽后置位，停自动迁移
	Ext          Metadata        `gorm:"column:ext;type:json" json:"ext"`
	ExpiresAt    *time.Time      `gorm:"column:expires_at" json:"expiresAt"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
