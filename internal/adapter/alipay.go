package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pay-gateway-api/internal/config"
	"pay-gateway-api/internal/model"
	"pay-gateway-api/internal/utils"
)

// AlipayAdapter 支付宝。HMAC-SHA256 排序参数签名，跳转收银台，
// 渠道交易号不同步返回，由回调补齐
type AlipayAdapter struct {
	cfg config.ChannelCfg
}

func NewAlipayAdapter(cfg config.ChannelCfg) *AlipayAdapter {
	return &AlipayAdapter{cfg: cfg}
}

func (a *AlipayAdapter) Name() string { return "alipay" }

func (a *AlipayAdapter) Timeout() time.Duration { return a.cfg.Timeout }

func (a *AlipayAdapter) Submit(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (SubmitResult, error) {
	params := map[string]string{
		"app_id":       a.cfg.AppID,
		"out_trade_no": strconv.FormatUint(tx.TxID, 10),
		"total_amount": order.Amount.String(),
		"currency":     order.Currency,
		"subject":      order.Subject,
		"product_code": productCode(order.Method),
		"nonce":        uuid.NewString(),
		"return_url":   order.ReturnURL,
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/gateway/pay", params)
	if err != nil {
		return SubmitResult{}, ErrUnavailable
	}

	var r struct {
		Code    string `json:"code"`
		SubCode string `json:"sub_code"`
		SubMsg  string `json:"sub_msg"`
		PayURL  string `json:"pay_url"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return SubmitResult{}, ErrUnavailable
	}
	// 10000 受理成功；40004 业务拒绝；其余按不可用处理
	switch r.Code {
	case "10000":
		return SubmitResult{Redirect: RedirectPayload{PayURL: r.PayURL}}, nil
	case "40004":
		return SubmitResult{}, &RejectedError{ErrCode: r.SubCode, ErrMsg: r.SubMsg}
	default:
		return SubmitResult{}, ErrUnavailable
	}
}

func (a *AlipayAdapter) Query(ctx context.Context, channelTxID string) (QueryResult, error) {
	params := map[string]string{
		"app_id":   a.cfg.AppID,
		"trade_no": channelTxID,
		"nonce":    uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/gateway/query", params)
	if err != nil {
		return QueryResult{}, ErrUnavailable
	}

	var r struct {
		Code        string `json:"code"`
		TradeStatus string `json:"trade_status"`
		TradeNo     string `json:"trade_no"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return QueryResult{}, ErrUnavailable
	}
	if r.Code != "10000" {
		return QueryResult{}, ErrUnavailable
	}

	var status int8
	switch r.TradeStatus {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		status = model.StatusSucceeded
	case "TRADE_CLOSED":
		status = model.StatusFailed
	default: // WAIT_BUYER_PAY
		status = model.StatusSubmitted
	}
	return QueryResult{Status: status, ChannelTxID: r.TradeNo}, nil
}

func (a *AlipayAdapter) Refund(ctx context.Context, refund *model.RefundOrder, channelTxID string) (RefundResult, error) {
	params := map[string]string{
		"app_id":         a.cfg.AppID,
		"trade_no":       channelTxID,
		"out_request_no": strconv.FormatUint(refund.RefundID, 10),
		"refund_amount":  refund.Amount.String(),
		"refund_reason":  refund.Reason,
		"nonce":          uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/gateway/refund", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		Code      string `json:"code"`
		SubCode   string `json:"sub_code"`
		SubMsg    string `json:"sub_msg"`
		RefundNo  string `json:"refund_no"`
		FundState string `json:"fund_state"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	switch r.Code {
	case "10000":
		status := model.StatusSubmitted
		if r.FundState == "SUCCESS" {
			status = model.StatusSucceeded
		}
		return RefundResult{ChannelRefundID: r.RefundNo, Status: status}, nil
	case "40004":
		return RefundResult{}, &RejectedError{ErrCode: r.SubCode, ErrMsg: r.SubMsg}
	default:
		return RefundResult{}, ErrUnavailable
	}
}

func (a *AlipayAdapter) QueryRefund(ctx context.Context, channelRefundID string) (RefundResult, error) {
	params := map[string]string{
		"app_id":    a.cfg.AppID,
		"refund_no": channelRefundID,
		"nonce":     uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/gateway/refund/query", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		Code      string `json:"code"`
		RefundNo  string `json:"refund_no"`
		FundState string `json:"fund_state"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	if r.Code != "10000" {
		return RefundResult{}, ErrUnavailable
	}
	switch r.FundState {
	case "SUCCESS":
		return RefundResult{ChannelRefundID: r.RefundNo, Status: model.StatusSucceeded}, nil
	case "CLOSED":
		return RefundResult{ChannelRefundID: r.RefundNo, Status: model.StatusFailed}, nil
	default:
		return RefundResult{ChannelRefundID: r.RefundNo, Status: model.StatusSubmitted}, nil
	}
}

func (a *AlipayAdapter) VerifyCallback(raw []byte, headers map[string]string) (ParsedOutcome, error) {
	var params map[string]string
	if err := json.Unmarshal(raw, &params); err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}
	if !utils.VerifyHMACSign(params, a.cfg.SecretKey) {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	amount, err := decimal.NewFromString(params["total_amount"])
	if err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	status := model.StatusFailed
	if params["trade_status"] == "TRADE_SUCCESS" || params["trade_status"] == "TRADE_FINISHED" {
		status = model.StatusSucceeded
	}
	return ParsedOutcome{
		ChannelTxID: params["trade_no"],
		Status:      status,
		Amount:      amount,
		Raw:         string(raw),
	}, nil
}

func (a *AlipayAdapter) AckPayload(accepted bool) (string, string) {
	if accepted {
		return "text/plain", "success"
	}
	return "text/plain", "fail"
}

func productCode(method string) string {
	switch method {
	case "wap":
		return "QUICK_WAP_WAY"
	default:
		return "FAST_INSTANT_TRADE_PAY"
	}
}
