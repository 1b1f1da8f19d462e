package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pay-gateway-api/internal/model"
)

// Store 订单库是唯一事实来源。所有状态变更都走版本号比较交换，
// rows==0 视为并发冲突，由调用方重读或放弃
type Store interface {
	InsertOrder(ctx context.Context, o *model.PaymentOrder) error
	GetOrder(ctx context.Context, orderID uint64) (*model.PaymentOrder, error)
	GetOrderByMerchant(ctx context.Context, mID uint64, mOrderID string) (*model.PaymentOrder, error)
	GetOrderVersion(ctx context.Context, orderID uint64) (uint32, error)
	UpdateOrderCAS(ctx context.Context, o *model.PaymentOrder, updates map[string]interface{}) (bool, error)

	InsertTx(ctx context.Context, tx *model.PaymentTransaction) error
	GetTx(ctx context.Context, txID uint64) (*model.PaymentTransaction, error)
	GetTxByChannelTxID(ctx context.Context, channelTxID string) (*model.PaymentTransaction, error)
	GetOpenTxByOrder(ctx context.Context, orderID uint64) (*model.PaymentTransaction, error)
	GetLatestTxByOrder(ctx context.Context, orderID uint64) (*model.PaymentTransaction, error)
	UpdateTxCAS(ctx context.Context, tx *model.PaymentTransaction, updates map[string]interface{}) (bool, error)
	// SetTxChannelID 仅在 channel_tx_id 尚为空时写入，写入后不可变
	SetTxChannelID(ctx context.Context, txID uint64, channelTxID string) (bool, error)

	InsertRefund(ctx context.Context, r *model.RefundOrder) error
	GetRefund(ctx context.Context, refundID uint64) (*model.RefundOrder, error)
	UpdateRefundCAS(ctx context.Context, r *model.RefundOrder, updates map[string]interface{}) (bool, error)
	// SumRefunds 汇总指定状态的退款金额，用于可退余额校验
	SumRefunds(ctx context.Context, txID uint64, statuses []int8) (decimal.Decimal, error)

	InsertOrphan(ctx context.Context, oc *model.OrphanCallback) error
	// TakeOrphan 取出并删除窗口内的孤儿回调，不存在返回 nil
	TakeOrphan(ctx context.Context, channel, channelTxID string, now time.Time) (*model.OrphanCallback, error)
	PurgeOrphans(ctx context.Context, now time.Time) (int64, error)

	ListAmbiguousOrders(ctx context.Context, now time.Time, limit int) ([]model.PaymentOrder, error)
	ListStuckSubmittedOrders(ctx context.Context, before time.Time, limit int) ([]model.PaymentOrder, error)
	ListRefundsDue(ctx context.Context, now time.Time, limit int) ([]model.RefundOrder, error)
}

// KV 幂等占位与订单快照缓存。缓存永远不可作为状态权威，
// 读侧必须校验存储中的版本号
type KV interface {
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Publisher 终态结果投递到消息队列，由消费端通知商户
type Publisher interface {
	PublishOutcome(evt OutcomeEvent) error
}

// Alerter 运营告警（终态冲突、重试耗尽、验签失败）
type Alerter interface {
	Alert(level, title, detail string)
}

// RiskChecker 提交前风控钩子，返回非 nil 即拒单
type RiskChecker func(ctx context.Context, o *model.PaymentOrder) error

// OutcomeEvent merchant_notify 队列消息体
type OutcomeEvent struct {
	OrderID     uint64 `json:"order_id"`
	MID         uint64 `json:"m_id"`
	MOrderID    string `json:"m_order_id"`
	TxID        uint64 `json:"tx_id"`
	ChannelTxID string `json:"channel_tx_id"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	NotifyURL   string `json:"notify_url"`
	Ts          int64  `json:"ts"`
	RetryCount  int    `json:"retry_count"`
}
