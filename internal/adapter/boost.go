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

// BoostAdapter Boost 钱包（马来西亚）。整包 HMAC-SHA256 签名放 header，
// 钱包跳转支付，渠道交易号同步返回
type BoostAdapter struct {
	cfg config.ChannelCfg
}

func NewBoostAdapter(cfg config.ChannelCfg) *BoostAdapter {
	return &BoostAdapter{cfg: cfg}
}

func (a *BoostAdapter) Name() string { return "boost" }

func (a *BoostAdapter) Timeout() time.Duration { return a.cfg.Timeout }

func (a *BoostAdapter) Submit(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (SubmitResult, error) {
	params := map[string]string{
		"merchantId":  a.cfg.MchID,
		"referenceNo": strconv.FormatUint(tx.TxID, 10),
		"amount":      order.Amount.String(),
		"currency":    order.Currency,
		"description": order.Subject,
		"requestId":   uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/v1/payment", params)
	if err != nil {
		return SubmitResult{}, ErrUnavailable
	}

	var r struct {
		Status        string `json:"status"`
		TransactionID string `json:"transactionId"`
		PaymentURL    string `json:"paymentUrl"`
		ErrorCode     string `json:"errorCode"`
		ErrorMessage  string `json:"errorMessage"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return SubmitResult{}, ErrUnavailable
	}
	switch r.Status {
	case "ACCEPTED":
		return SubmitResult{
			ChannelTxID: r.TransactionID,
			Redirect:    RedirectPayload{PayURL: r.PaymentURL},
		}, nil
	case "DECLINED":
		return SubmitResult{}, &RejectedError{ErrCode: r.ErrorCode, ErrMsg: r.ErrorMessage}
	default:
		return SubmitResult{}, ErrUnavailable
	}
}

func (a *BoostAdapter) Query(ctx context.Context, channelTxID string) (QueryResult, error) {
	params := map[string]string{
		"merchantId":    a.cfg.MchID,
		"transactionId": channelTxID,
		"requestId":     uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/v1/payment/status", params)
	if err != nil {
		return QueryResult{}, ErrUnavailable
	}

	var r struct {
		Status        string `json:"status"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return QueryResult{}, ErrUnavailable
	}

	var status int8
	switch r.Status {
	case "COMPLETED":
		status = model.StatusSucceeded
	case "DECLINED", "CANCELLED":
		status = model.StatusFailed
	case "PENDING":
		status = model.StatusSubmitted
	default:
		return QueryResult{}, ErrUnavailable
	}
	return QueryResult{Status: status, ChannelTxID: r.TransactionID}, nil
}

func (a *BoostAdapter) Refund(ctx context.Context, refund *model.RefundOrder, channelTxID string) (RefundResult, error) {
	params := map[string]string{
		"merchantId":    a.cfg.MchID,
		"transactionId": channelTxID,
		"refundNo":      strconv.FormatUint(refund.RefundID, 10),
		"amount":        refund.Amount.String(),
		"reason":        refund.Reason,
		"requestId":     uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/v1/refund", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		Status       string `json:"status"`
		RefundID     string `json:"refundId"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	switch r.Status {
	case "ACCEPTED":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSubmitted}, nil
	case "COMPLETED":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSucceeded}, nil
	case "DECLINED":
		return RefundResult{}, &RejectedError{ErrCode: r.ErrorCode, ErrMsg: r.ErrorMessage}
	default:
		return RefundResult{}, ErrUnavailable
	}
}

func (a *BoostAdapter) QueryRefund(ctx context.Context, channelRefundID string) (RefundResult, error) {
	params := map[string]string{
		"merchantId": a.cfg.MchID,
		"refundId":   channelRefundID,
		"requestId":  uuid.NewString(),
	}
	params["sign"] = utils.GenerateHMACSign(params, a.cfg.SecretKey)

	resp, err := utils.HttpPostJsonWithContext(ctx, a.cfg.ApiURL+"/v1/refund/status", params)
	if err != nil {
		return RefundResult{}, ErrUnavailable
	}

	var r struct {
		Status   string `json:"status"`
		RefundID string `json:"refundId"`
	}
	if err := json.Unmarshal([]byte(resp), &r); err != nil {
		return RefundResult{}, ErrUnavailable
	}
	switch r.Status {
	case "COMPLETED":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSucceeded}, nil
	case "DECLINED", "CANCELLED":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusFailed}, nil
	case "PENDING":
		return RefundResult{ChannelRefundID: r.RefundID, Status: model.StatusSubmitted}, nil
	default:
		return RefundResult{}, ErrUnavailable
	}
}

func (a *BoostAdapter) VerifyCallback(raw []byte, headers map[string]string) (ParsedOutcome, error) {
	sig := headers["X-Boost-Signature"]
	if sig == "" || utils.HMACBody(raw, a.cfg.SecretKey) != sig {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	var body struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		Amount        string `json:"amount"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return ParsedOutcome{}, ErrInvalidSignature
	}

	status := model.StatusFailed
	if body.Status == "COMPLETED" {
		status = model.StatusSucceeded
	}
	return ParsedOutcome{
		ChannelTxID: body.TransactionID,
		Status:      status,
		Amount:      amount,
		Raw:         string(raw),
	}, nil
}

func (a *BoostAdapter) AckPayload(accepted bool) (string, string) {
	if accepted {
		return "application/json", `{"status":"OK"}`
	}
	return "application/json", `{"status":"RETRY"}`
}
