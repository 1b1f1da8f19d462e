package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/config"
	"pay-gateway-api/internal/dto"
	"pay-gateway-api/internal/idgen"
	"pay-gateway-api/internal/model"
	"pay-gateway-api/internal/utils"
)

// Engine 支付编排引擎门面：下单、查单、退款、回调对账、重试调度
type Engine struct {
	store    Store
	kv       KV
	registry *adapter.Registry
	pub      Publisher
	alert    Alerter
	risk     RiskChecker
	cfg      config.Root
	log      *logrus.Logger
}

func New(store Store, kv KV, registry *adapter.Registry, pub Publisher, alert Alerter, risk RiskChecker, cfg config.Root, log *logrus.Logger) *Engine {
	if risk == nil {
		risk = MaxAmountRisk(cfg.Order.MaxRiskAmount)
	}
	return &Engine{
		store:    store,
		kv:       kv,
		registry: registry,
		pub:      pub,
		alert:    alert,
		risk:     risk,
		cfg:      cfg,
		log:      log,
	}
}

// MaxAmountRisk 自带的风控实现：单笔金额上限，空配置放行
func MaxAmountRisk(max string) RiskChecker {
	limit, err := decimal.NewFromString(max)
	if err != nil || limit.Cmp(decimal.Zero) <= 0 {
		return func(ctx context.Context, o *model.PaymentOrder) error { return nil }
	}
	return func(ctx context.Context, o *model.PaymentOrder) error {
		if o.Amount.Cmp(limit) > 0 {
			return validationf("amount exceeds risk limit")
		}
		return nil
	}
}

// CreateOrder 下单。重放相同 (merchant_id, merchant_ord_no) 返回原单，
// 并发下单冲突返回 ErrConcurrentRequest
func (e *Engine) CreateOrder(ctx context.Context, req dto.CreateOrderReq) (dto.CreateOrderResp, error) {
	var resp dto.CreateOrderResp

	amount, err := e.validateCreate(req)
	if err != nil {
		return resp, err
	}
	ad, err := e.registry.Resolve(req.Channel, req.Method, req.Region)
	if err != nil {
		return resp, err
	}

	// 幂等占位：已完成的重放直接返回原单
	existing, release, err := e.reserveCreate(ctx, req.MerchantID, req.MerchantOrdNo)
	if err != nil {
		return resp, err
	}
	if existing != nil {
		return e.createResp(existing, nil), nil
	}
	defer release()

	now := time.Now()
	expires := now.Add(time.Duration(e.cfg.Order.ExpireMinutes) * time.Minute)
	order := &model.PaymentOrder{
		OrderID:   idgen.New(),
		MID:       req.MerchantID,
		MOrderID:  req.MerchantOrdNo,
		Amount:    amount,
		Currency:  req.Currency,
		Channel:   req.Channel,
		Method:    req.Method,
		Region:    req.Region,
		Subject:   req.Subject,
		Status:    model.StatusCreated,
		NotifyURL: req.NotifyURL,
		ReturnURL: req.ReturnURL,
		ClientIP:  req.ClientIP,
		Ext:       req.Ext,
		ExpiresAt: &expires,
	}
	if err := e.store.InsertOrder(ctx, order); err != nil {
		if err == ErrDuplicateKey {
			// 占位窗口外的并发重放，读回原单
			dup, derr := e.store.GetOrderByMerchant(ctx, req.MerchantID, req.MerchantOrdNo)
			if derr == nil && dup != nil {
				return e.createResp(dup, nil), nil
			}
			return resp, ErrConcurrentRequest
		}
		return resp, err
	}
	if _, err := e.transitOrder(ctx, order, model.StatusPending, nil); err != nil {
		return resp, err
	}

	if err := e.risk(ctx, order); err != nil {
		_, _ = e.transitOrder(ctx, order, model.StatusFailed, nil)
		return resp, err
	}

	// 调用方放弃等待也要把提交跑完，上游可能已经在扣款
	submitCtx := context.WithoutCancel(ctx)
	redirect, err := e.submit(submitCtx, order, ad)
	if err != nil {
		return resp, err
	}

	return e.createResp(order, redirect), nil
}

func (e *Engine) validateCreate(req dto.CreateOrderReq) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return decimal.Zero, validationf("amount not a decimal: %q", req.Amount)
	}
	if amount.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, validationf("amount must be positive")
	}
	if !utils.KnownCurrency(req.Currency) {
		return decimal.Zero, validationf("unknown currency %q", req.Currency)
	}
	if !utils.AmountScaleValid(amount, req.Currency) {
		return decimal.Zero, validationf("amount scale exceeds minor unit of %s", req.Currency)
	}
	return amount, nil
}

func (e *Engine) createResp(order *model.PaymentOrder, redirect *adapter.RedirectPayload) dto.CreateOrderResp {
	resp := dto.CreateOrderResp{
		OrderID: strconv.FormatUint(order.OrderID, 10),
		Status:  model.StatusName(order.Status),
	}
	if order.ExpiresAt != nil {
		resp.ExpiresAt = *order.ExpiresAt
	}
	if redirect != nil {
		resp.PayData = redirect
	}
	return resp
}

// QueryOrder 查单。缓存快照必须和库里版本号一致才可信
func (e *Engine) QueryOrder(ctx context.Context, req dto.QueryOrderReq) (dto.OrderVO, error) {
	var vo dto.OrderVO

	var order *model.PaymentOrder
	var err error
	if req.OrderID != "" {
		oid, perr := strconv.ParseUint(req.OrderID, 10, 64)
		if perr != nil {
			return vo, validationf("bad order_id %q", req.OrderID)
		}
		order, err = e.cachedOrder(ctx, oid)
	} else if req.MerchantID != 0 && req.MerchantOrdNo != "" {
		order, err = e.store.GetOrderByMerchant(ctx, req.MerchantID, req.MerchantOrdNo)
	} else {
		return vo, validationf("order_id or merchant_id+merchant_ord_no required")
	}
	if err != nil {
		return vo, err
	}
	if order == nil {
		return vo, ErrOrderNotFound
	}

	if err := copier.Copy(&vo, order); err != nil {
		return vo, err
	}
	vo.OrderID = strconv.FormatUint(order.OrderID, 10)
	vo.MerchantOrdNo = order.MOrderID
	vo.Amount = order.Amount.String()
	vo.Status = model.StatusName(order.Status)
	if tx, terr := e.store.GetOpenTxByOrder(ctx, order.OrderID); terr == nil && tx != nil && tx.ChannelTxID != nil {
		vo.ChannelTxID = *tx.ChannelTxID
	}
	return vo, nil
}

func orderCacheKey(orderID uint64) string {
	return "order:" + strconv.FormatUint(orderID, 10)
}

func (e *Engine) cachedOrder(ctx context.Context, orderID uint64) (*model.PaymentOrder, error) {
	if cached, err := e.kv.Get(ctx, orderCacheKey(orderID)); err == nil && cached != "" {
		var snap model.PaymentOrder
		if err := json.Unmarshal([]byte(cached), &snap); err == nil {
			if ver, verr := e.store.GetOrderVersion(ctx, orderID); verr == nil && ver == snap.Version {
				return &snap, nil
			}
		}
	}
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil || order == nil {
		return order, err
	}
	if b, err := json.Marshal(order); err == nil {
		_ = e.kv.Set(ctx, orderCacheKey(orderID), string(b), e.cfg.Order.CacheTTL)
	}
	return order, nil
}

// RequestRefund 退款。仅允许对 SUCCEEDED 交易发起，
// 累计（含在途）退款不得超过交易金额
func (e *Engine) RequestRefund(ctx context.Context, req dto.RefundReq) (dto.RefundResp, error) {
	var resp dto.RefundResp

	orderID, err := strconv.ParseUint(req.OrderID, 10, 64)
	if err != nil {
		return resp, validationf("bad order_id %q", req.OrderID)
	}
	txID, err := strconv.ParseUint(req.TxID, 10, 64)
	if err != nil {
		return resp, validationf("bad tx_id %q", req.TxID)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Cmp(decimal.Zero) <= 0 {
		return resp, validationf("refund amount must be a positive decimal")
	}

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return resp, err
	}
	if order == nil {
		return resp, ErrOrderNotFound
	}
	tx, err := e.store.GetTx(ctx, txID)
	if err != nil {
		return resp, err
	}
	if tx == nil || tx.OrderID != orderID {
		return resp, ErrTxNotFound
	}
	if tx.Status != model.StatusSucceeded {
		return resp, validationf("source transaction not in SUCCEEDED")
	}

	// 同一交易的可退余额校验必须串行
	lockKey := "refund_lock:" + strconv.FormatUint(txID, 10)
	ok, err := e.kv.SetNX(ctx, lockKey, "1", 10*time.Second)
	if err != nil {
		return resp, err
	}
	if !ok {
		return resp, ErrConcurrentRequest
	}
	defer func() { _ = e.kv.Del(context.WithoutCancel(ctx), lockKey) }()

	// 在途退款也计入占用，防止并发超退。EXPIRED 是结果未知不是失败，
	// 占用同样保留，只有确认 FAILED 才释放额度
	reserved, err := e.store.SumRefunds(ctx, txID, []int8{
		model.StatusCreated, model.StatusSubmitted, model.StatusAmbiguous,
		model.StatusExpired, model.StatusSucceeded,
	})
	if err != nil {
		return resp, err
	}
	if amount.Cmp(tx.Amount.Sub(reserved)) > 0 {
		return resp, ErrInvalidRefundAmount
	}

	refund := &model.RefundOrder{
		RefundID: idgen.New(),
		OrderID:  orderID,
		TxID:     txID,
		Amount:   amount,
		Reason:   req.Reason,
		Status:   model.StatusCreated,
	}
	if err := e.store.InsertRefund(ctx, refund); err != nil {
		return resp, err
	}

	ad, err := e.registry.Resolve(order.Channel, order.Method, order.Region)
	if err != nil {
		return resp, err
	}
	e.submitRefund(context.WithoutCancel(ctx), refund, tx, ad)

	resp.RefundID = strconv.FormatUint(refund.RefundID, 10)
	resp.Status = model.StatusName(refund.Status)
	return resp, nil
}
