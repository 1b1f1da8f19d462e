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

// WechatAdapter 微信支付。MD5 排序参数签名，native 扫码下单同步返回渠道交易号
type WechatAdapter struct {
	cfg config.ChannelCfg
}

func NewWechatAdapter(cfg config.ChannelCfg) *WechatAdapter {
	return &WechatAdapter{cfg: cfg}
}

func (a *WechatAdapter) Name() string { return "wechat" }

func (a *WechatAdapter) Timeout() time.Duration { return a.cfg.Timeout }

func (a *WechatAdapter) Submit(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (SubmitResult, error) {
	params := map[string]string{
		"appid":        a.cfg.AppID,
		"mch_id":       a.cfg.MchID,
		"nonce_str":    uuid.NewString(),
		"out_trade_no": strconv.FormatUint(tx.TxID, 10),
		"total_amount": order.Amount.String(),
		"currency":     order.Currency,
		"trade_type":   tradeType(order.Method),
		"body":         order.Subject,
		"spbill_create_ip": order.ClientIP,
	}
	params["sign"] = utils.GenerateSign(params, a.cfg.ApiKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/pay/unifiedorder", params)
	if err != nil {
		return SubmitResult{}, ErrUnavailable
	}

	var r struct {
		ReturnCode    string `json:"return_code"`
		ResultCode    string `json:"result_code"`
		TransactionID string `json:"transaction_id"`
		CodeURL       string `json:"code_url"`
		MwebURL       string `json:"mweb_url"`
		PrepayID      string `json:"prepay_id"`
		ErrCode       string `json:"err_code"`
		ErrCodeDes    string `json:"err_code_des"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return SubmitResult{}, ErrUnavailable
	}
	if r.ReturnCode != "SUCCESS" {
		return SubmitResult{}, ErrUnavailable
	}
	if r.ResultCode != "SUCCESS" {
		return SubmitResult{}, &RejectedError{ErrCode: r.ErrCode, ErrMsg: r.ErrCodeDes}
	}

	out := SubmitResult{ChannelTxID: r.TransactionID}
	switch tradeType(order.Method) {
	case "NATIVE":
		out.Redirect.QRCode = r.CodeURL
	case "MWEB":
		out.Redirect.PayURL = r.MwebURL
	default:
		out.Redirect.SDKParams = map[string]string{"prepay_id": r.PrepayID}
	}
	return out, nil
}

func (a *WechatAdapter) Query(ctx context.Context, channelTxID string) (QueryResult, error) {
	params := map[string]string{
		"appid":          a.cfg.AppID,
		"mch_id":         a.cfg.MchID,
		"nonce_str":      uuid.NewString(),
		"transaction_id": channelTxID,
	}
	params["sign"] = utils.GenerateSign(params, a.cfg.ApiKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/pay/orderquery", params)
	if err != nil {
		return QueryResult{}, ErrUnavailable
	}

	var r struct {
		ReturnCode    string `json:"return_code"`
		TradeState    string `json:"trade_state"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return QueryResult{}, ErrUnavailable
	}
	if r.ReturnCode != "SUCCESS" {
		return QueryResult{}, ErrUnavailable
	}
	return QueryResult{Status: mapTradeState(r.TradeState), ChannelTxID: r.TransactionID}, nil
}

func (a *WechatAdapter) Refund(ctx context.Context, refund *model.RefundOrder, channelTxID string) (RefundResult, error) {
	params := map[string]string{
		"appid":          a.cfg.AppID,
		"mch_id":         a.cfg.MchID,
		"nonce_str":      uuid.NewString(),
		"transaction_id": channelTxID,
		"out_refund_no":  strconv.FormatUint(refund.RefundID, 10),
		"refund_amount":  refund.Amount.String(),
	}
	params["sign"] = utils.GenerateSign(params, a.cfg.ApiKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/secapi/pay/refund", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		ReturnCode string `json:"return_code"`
		ResultCode string `json:"result_code"`
		RefundID   string `json:"refund_id"`
		ErrCode    string `json:"err_code"`
		ErrCodeDes string `json:"err_code_des"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	if r.ReturnCode != "SUCCESS" {
		return RefundResult{}, ErrUnavailable
	}
	if r.ResultCode != "SUCCESS" {
		return RefundResult{}, &RejectedError{ErrCode: r.ErrCode, ErrMsg: r.ErrCodeDes}
	}
	// 退款受理成功，最终结果靠回调/查单
	return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSubmitted}, nil
}

func (a *WechatAdapter) QueryRefund(ctx context.Context, channelRefundID string) (RefundResult, error) {
	params := map[string]string{
		"appid":     a.cfg.AppID,
		"mch_id":    a.cfg.MchID,
		"nonce_str": uuid.NewString(),
		"refund_id": channelRefundID,
	}
	params["sign"] = utils.GenerateSign(params, a.cfg.ApiKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/pay/refundquery", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		ReturnCode   string `json:"return_code"`
		RefundStatus string `json:"refund_status"`
		RefundID     string `json:"refund_id"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	if r.ReturnCode != "SUCCESS" {
		return RefundResult{}, ErrUnavailable
	}
	switch r.RefundStatus {
	case "SUCCESS":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSucceeded}, nil
	case "REFUNDCLOSE", "CHANGE":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusFailed}, nil
	default: // PROCESSING
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSubmitted}, nil
	}
}

func (a *WechatAdapter) VerifyCallback(raw []byte, headers map[string]string) (ParsedOutcome, error) {
	var params map[string]string
	if err := json.Unmarshal(raw, &params); err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}
	if !utils.VerifySign(params, a.cfg.ApiKey) {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	amount, err := decimal.NewFromString(params["total_amount"])
	if err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	status := model.StatusFailed
	if params["result_code"] == "SUCCESS" {
		status = model.StatusSucceeded
	}
	return ParsedOutcome{
		ChannelTxID: params["transaction_id"],
		Status:      status,
		Amount:      amount,
		Raw:         string(raw),
	}, nil
}

func (a *WechatAdapter) AckPayload(accepted bool) (string, string) {
	if accepted {
		return "text/plain", "SUCCESS"
	}
	return "text/plain", "FAIL"
}

func tradeType(method string) string {
	switch method {
	case "native":
		return "NATIVE"
	case "h5":
		return "MWEB"
	case "jsapi":
		return "JSAPI"
	default:
		return "NATIVE"
	}
}

func mapTradeState(state string) int8 {
	switch state {
	case "SUCCESS":
		return model.StatusSucceeded
	case "PAYERROR", "CLOSED", "REVOKED":
		return model.StatusFailed
	default: // NOTPAY / USERPAYING / REFUND 查询期间仍在途
		return model.StatusSubmitted
	}
}
