package dto

import "time"

type CreateOrderReq struct {
	MerchantID    uint64            `json:"merchant_id" binding:"required"`
	MerchantOrdNo string            `json:"merchant_ord_no" binding:"required,max=64"`
	Amount        string            `json:"amount" binding:"required"`
	Currency      string            `json:"currency" binding:"required,len=3"`
	Channel       string            `json:"channel" binding:"required"`
	Method        string            `json:"method" binding:"required"`
	Region        string            `json:"region" binding:"required"`
	Subject       string            `json:"subject" binding:"required,max=100"`
	NotifyURL     string            `json:"notify_url" binding:"required,url"`
	ReturnURL     string            `json:"return_url" binding:"omitempty,url"`
	ClientIP      string            `json:"-"`
	Ext           map[string]string `json:"ext"`
}

type CreateOrderResp struct {
	OrderID   string      `json:"order_id"`
	Status    string      `json:"status"`
	PayData   interface{} `json:"pay_data,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type OrderVO struct {
	OrderID       string     `json:"order_id"`
	MerchantOrdNo string     `json:"merchant_ord_no"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Channel       string     `json:"channel"`
	Method        string     `json:"method"`
	Region        string     `json:"region"`
	Status        string     `json:"status"`
	ChannelTxID   string     `json:"channel_tx_id,omitempty"`
	ManualReview  bool       `json:"manual_review"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type QueryOrderReq struct {
	OrderID       string `form:"order_id"`
	MerchantID    uint64 `form:"merchant_id"`
	MerchantOrdNo string `form:"merchant_ord_no"`
}

type RefundReq struct {
	OrderID string `json:"order_id" binding:"required"`
	TxID    string `json:"tx_id" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	Reason  string `json:"reason" binding:"required,max=255"`
}

type RefundResp struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}
