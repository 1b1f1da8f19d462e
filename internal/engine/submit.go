package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/idgen"
	"pay-gateway-api/internal/model"
)

// transitOrder 按迁移表做一次 CAS 状态迁移，成功后同步内存副本并失效缓存
func (e *Engine) transitOrder(ctx context.Context, order *model.PaymentOrder, to int8, extra map[string]interface{}) (bool, error) {
	if !CanTransitOrder(order.Status, to) {
		return false, fmt.Errorf("%w: order %d %s -> %s", ErrConsistencyViolation,
			order.OrderID, model.StatusName(order.Status), model.StatusName(to))
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := e.store.UpdateOrderCAS(ctx, order, updates)
	if err != nil || !ok {
		return ok, err
	}
	order.Status = to
	order.Version++
	order.Seq++
	_ = e.kv.Del(ctx, orderCacheKey(order.OrderID))
	return true, nil
}

func (e *Engine) transitTx(ctx context.Context, tx *model.PaymentTransaction, to int8, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := e.store.UpdateTxCAS(ctx, tx, updates)
	if err != nil || !ok {
		return ok, err
	}
	tx.Status = to
	tx.Version++
	return true, nil
}

func (e *Engine) transitRefund(ctx context.Context, r *model.RefundOrder, to int8, extra map[string]interface{}) (bool, error) {
	if !CanTransitRefund(r.Status, to) {
		return false, fmt.Errorf("%w: refund %d %s -> %s", ErrConsistencyViolation,
			r.RefundID, model.StatusName(r.Status), model.StatusName(to))
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := e.store.UpdateRefundCAS(ctx, r, updates)
	if err != nil || !ok {
		return ok, err
	}
	r.Status = to
	r.Version++
	return true, nil
}

// submit 提交订单到渠道。适配器调用不持有任何单内锁，超时必给；
// 网络层失败一律 AMBIGUOUS，不许猜成失败
func (e *Engine) submit(ctx context.Context, order *model.PaymentOrder, ad adapter.ChannelAdapter) (*adapter.RedirectPayload, error) {
	tx := &model.PaymentTransaction{
		TxID:    idgen.New(),
		OrderID: order.OrderID,
		Amount:  order.Amount,
		Status:  model.StatusCreated,
	}
	if err := e.store.InsertTx(ctx, tx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, ad.Timeout())
	res, err := ad.Submit(callCtx, order, tx)
	cancel()

	if err != nil {
		var rej *adapter.RejectedError
		if errors.As(err, &rej) {
			_, _ = e.transitTx(ctx, tx, model.StatusFailed, map[string]interface{}{
				"error_code": rej.ErrCode, "error_message": rej.ErrMsg,
			})
			if _, terr := e.transitOrder(ctx, order, model.StatusFailed, nil); terr != nil {
				return nil, terr
			}
			e.log.WithFields(logFields(order)).Warnf("channel rejected submit: %v", rej)
			return nil, nil
		}
		// 超时/网络失败，结果未知，交给调度器查单收敛
		next := time.Now().Add(e.backoffDelay(0))
		_, _ = e.transitTx(ctx, tx, model.StatusAmbiguous, nil)
		if _, terr := e.transitOrder(ctx, order, model.StatusAmbiguous, map[string]interface{}{
			"retry_count": 0, "next_retry_at": next,
		}); terr != nil {
			return nil, terr
		}
		e.log.WithFields(logFields(order)).Warnf("submit outcome unknown: %v", err)
		return nil, nil
	}

	txExtra := map[string]interface{}{}
	if res.ChannelTxID != "" {
		if ok, serr := e.store.SetTxChannelID(ctx, tx.TxID, res.ChannelTxID); serr == nil && ok {
			tx.ChannelTxID = &res.ChannelTxID
		}
	}
	if _, err := e.transitTx(ctx, tx, model.StatusSubmitted, txExtra); err != nil {
		return nil, err
	}
	if _, err := e.transitOrder(ctx, order, model.StatusSubmitted, nil); err != nil {
		return nil, err
	}

	// 回调可能抢先到达，提交落库后立刻回放孤儿通知
	if res.ChannelTxID != "" {
		e.replayOrphan(ctx, order.Channel, res.ChannelTxID)
	}

	redirect := res.Redirect
	return &redirect, nil
}

// submitRefund 提交退款到渠道，迁移规则与支付提交一致
func (e *Engine) submitRefund(ctx context.Context, refund *model.RefundOrder, tx *model.PaymentTransaction, ad adapter.ChannelAdapter) {
	channelTxID := ""
	if tx.ChannelTxID != nil {
		channelTxID = *tx.ChannelTxID
	}

	callCtx, cancel := context.WithTimeout(ctx, ad.Timeout())
	res, err := ad.Refund(callCtx, refund, channelTxID)
	cancel()

	if err != nil {
		var rej *adapter.RejectedError
		if errors.As(err, &rej) {
			_, _ = e.transitRefund(ctx, refund, model.StatusFailed, map[string]interface{}{
				"ext": model.Metadata{"error_code": rej.ErrCode, "error_message": rej.ErrMsg},
			})
			e.log.WithField("refund_id", refund.RefundID).Warnf("channel rejected refund: %v", rej)
			return
		}
		next := time.Now().Add(e.backoffDelay(0))
		_, _ = e.transitRefund(ctx, refund, model.StatusAmbiguous, map[string]interface{}{
			"retry_count": 0, "next_retry_at": next,
		})
		e.log.WithField("refund_id", refund.RefundID).Warnf("refund outcome unknown: %v", err)
		return
	}

	extra := map[string]interface{}{}
	if res.ChannelRefundID != "" {
		extra["channel_refund_id"] = res.ChannelRefundID
	}
	if _, err := e.transitRefund(ctx, refund, model.StatusSubmitted, extra); err != nil {
		e.log.WithField("refund_id", refund.RefundID).Errorf("refund transit failed: %v", err)
		return
	}
	if res.ChannelRefundID != "" {
		s := res.ChannelRefundID
		refund.ChannelRefundID = &s
	}
	if res.Status == model.StatusSucceeded {
		_ = e.ApplyRefundOutcome(ctx, refund.RefundID, model.StatusSucceeded)
	}
}

func logFields(order *model.PaymentOrder) map[string]interface{} {
	return map[string]interface{}{
		"order_id": order.OrderID,
		"m_id":     order.MID,
		"channel":  order.Channel,
		"status":   model.StatusName(order.Status),
	}
}
