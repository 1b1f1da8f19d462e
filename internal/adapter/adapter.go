package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pay-gateway-api/internal/model"
)

// 上游调用的错误分类：
// ErrUnavailable —— 网络/超时/上游无响应，结果未知，订单只能置 AMBIGUOUS；
// RejectedError —— 上游明确拒绝，订单可置 FAILED；
// ErrInvalidSignature —— 回调验签失败，丢弃回调不得改单
var (
	ErrUnavailable      = errors.New("channel unavailable")
	ErrInvalidSignature = errors.New("invalid callback signature")
)

type RejectedError struct {
	ErrCode string
	ErrMsg  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("channel rejected: %s (%s)", e.ErrMsg, e.ErrCode)
}

// RedirectPayload 下单返回给商户的渠道跳转数据
type RedirectPayload struct {
	PayURL    string            `json:"payUrl,omitempty"`
	QRCode    string            `json:"qrCode,omitempty"`
	SDKParams map[string]string `json:"sdkParams,omitempty"`
}

// SubmitResult 渠道下单结果。扫码类通道同步返回 ChannelTxID，
// 跳转类通道为空，渠道交易号随回调补齐
type SubmitResult struct {
	ChannelTxID string
	Redirect    RedirectPayload
}

// QueryResult 渠道查单结果，只读，可重复调用
type QueryResult struct {
	Status      int8
	ChannelTxID string
}

// RefundResult 渠道退款受理结果
type RefundResult struct {
	ChannelRefundID string
	Status          int8
}

// ParsedOutcome 验签通过后的回调结论
type ParsedOutcome struct {
	ChannelTxID string
	Status      int8
	Amount      decimal.Decimal
	Raw         string
}

// ChannelAdapter 渠道适配器统一能力。签名方案、报文格式、应答协议
// 都归各渠道自理，引擎不感知渠道报文细节
type ChannelAdapter interface {
	Name() string
	Timeout() time.Duration

	Submit(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (SubmitResult, error)
	Query(ctx context.Context, channelTxID string) (QueryResult, error)
	Refund(ctx context.Context, refund *model.RefundOrder, channelTxID string) (RefundResult, error)
	QueryRefund(ctx context.Context, channelRefundID string) (RefundResult, error)
	VerifyCallback(raw []byte, headers map[string]string) (ParsedOutcome, error)

	// AckPayload 按渠道协议生成回调应答，区分"已受理"与"稍后重发"
	AckPayload(accepted bool) (contentType string, body string)
}
