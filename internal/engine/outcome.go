package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pay-gateway-api/internal/model"
)

const casMaxRetry = 3

// ApplyOutcome 将终局结论落到交易与订单上。
// 幂等：终态重放同一结论是 no-op；
// 冲突：相反终态绝不覆盖，置 manual_review 并告警，返回 ErrConsistencyViolation
func (e *Engine) ApplyOutcome(ctx context.Context, orderID, txID uint64, outcome int8) error {
	if outcome != model.StatusSucceeded && outcome != model.StatusFailed {
		return validationf("outcome must be SUCCEEDED or FAILED, got %s", model.StatusName(outcome))
	}

	for attempt := 0; attempt < casMaxRetry; attempt++ {
		order, err := e.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		tx, err := e.store.GetTx(ctx, txID)
		if err != nil {
			return err
		}
		if tx == nil || tx.OrderID != orderID {
			return ErrTxNotFound
		}

		txDone := false
		if model.IsTerminal(tx.Status) {
			if tx.Status != outcome {
				e.escalateOrder(ctx, order, fmt.Sprintf("tx %d already %s, refused %s",
					txID, model.StatusName(tx.Status), model.StatusName(outcome)))
				return ErrConsistencyViolation
			}
			if model.IsTerminal(order.Status) {
				if order.Status == outcome {
					return nil
				}
				e.escalateOrder(ctx, order, fmt.Sprintf("order %s diverges from tx %d terminal %s",
					model.StatusName(order.Status), txID, model.StatusName(tx.Status)))
				return ErrConsistencyViolation
			}
			// 交易先落了终态但订单那步没写上（CAS 输掉或中途中断），补完订单迁移
			txDone = true
		}
		if order.ManualReview {
			// 人工介入中，自动迁移一律停
			return ErrConsistencyViolation
		}
		if model.IsTerminal(order.Status) && order.Status != outcome {
			e.escalateOrder(ctx, order, fmt.Sprintf("order already %s, refused %s",
				model.StatusName(order.Status), model.StatusName(outcome)))
			return ErrConsistencyViolation
		}
		if order.Status != outcome && !CanTransitOrder(order.Status, outcome) {
			// 提交落库还没走完（如 PENDING 撞上抢跑回调），让上游稍后重发
			return fmt.Errorf("order %d not ready for outcome: %s", orderID, model.StatusName(order.Status))
		}

		if !txDone {
			ok, err := e.transitTx(ctx, tx, outcome, nil)
			if err != nil {
				return err
			}
			if !ok {
				continue // 并发改动，重读再试
			}
		}

		if order.Status != outcome {
			ok, err := e.transitOrder(ctx, order, outcome, nil)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		e.publishOutcome(order, tx)
		return nil
	}
	return fmt.Errorf("apply outcome: cas contention on order %d", orderID)
}

// ApplyRefundOutcome 退款终局结论，迁移规则与支付一致
func (e *Engine) ApplyRefundOutcome(ctx context.Context, refundID uint64, outcome int8) error {
	if outcome != model.StatusSucceeded && outcome != model.StatusFailed {
		return validationf("outcome must be SUCCEEDED or FAILED, got %s", model.StatusName(outcome))
	}

	for attempt := 0; attempt < casMaxRetry; attempt++ {
		refund, err := e.store.GetRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if refund == nil {
			return ErrRefundNotFound
		}

		if model.IsTerminal(refund.Status) {
			if refund.Status == outcome {
				return nil
			}
			e.escalateRefund(ctx, refund, fmt.Sprintf("refund %d already %s, refused %s",
				refundID, model.StatusName(refund.Status), model.StatusName(outcome)))
			return ErrConsistencyViolation
		}
		if refund.ManualReview {
			return ErrConsistencyViolation
		}

		ok, err := e.transitRefund(ctx, refund, outcome, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if order, oerr := e.store.GetOrder(ctx, refund.OrderID); oerr == nil && order != nil {
			e.publishRefundOutcome(order, refund)
		}
		return nil
	}
	return fmt.Errorf("apply refund outcome: cas contention on refund %d", refundID)
}

// escalateOrder 终态冲突或重试耗尽转人工，停掉该单全部自动迁移
func (e *Engine) escalateOrder(ctx context.Context, order *model.PaymentOrder, detail string) {
	if !order.ManualReview {
		if ok, err := e.store.UpdateOrderCAS(ctx, order, map[string]interface{}{"manual_review": true}); err == nil && ok {
			order.ManualReview = true
			order.Version++
		}
		_ = e.kv.Del(ctx, orderCacheKey(order.OrderID))
	}
	e.log.WithFields(logFields(order)).Errorf("escalated for manual review: %s", detail)
	e.alert.Alert("error", "订单终态冲突/需人工", fmt.Sprintf("order=%d m_order=%s: %s", order.OrderID, order.MOrderID, detail))
}

func (e *Engine) escalateRefund(ctx context.Context, refund *model.RefundOrder, detail string) {
	if !refund.ManualReview {
		if ok, err := e.store.UpdateRefundCAS(ctx, refund, map[string]interface{}{"manual_review": true}); err == nil && ok {
			refund.ManualReview = true
			refund.Version++
		}
	}
	e.log.WithField("refund_id", refund.RefundID).Errorf("refund escalated: %s", detail)
	e.alert.Alert("error", "退款终态冲突/需人工", fmt.Sprintf("refund=%d order=%d: %s", refund.RefundID, refund.OrderID, detail))
}

func (e *Engine) publishOutcome(order *model.PaymentOrder, tx *model.PaymentTransaction) {
	channelTxID := ""
	if tx.ChannelTxID != nil {
		channelTxID = *tx.ChannelTxID
	}
	evt := OutcomeEvent{
		OrderID:     order.OrderID,
		MID:         order.MID,
		MOrderID:    order.MOrderID,
		TxID:        tx.TxID,
		ChannelTxID: channelTxID,
		Status:      model.StatusName(order.Status),
		Amount:      order.Amount.String(),
		Currency:    order.Currency,
		NotifyURL:   order.NotifyURL,
		Ts:          time.Now().Unix(),
	}
	if err := e.pub.PublishOutcome(evt); err != nil {
		e.log.WithFields(logFields(order)).Errorf("publish outcome failed: %v", err)
	}
}

func (e *Engine) publishRefundOutcome(order *model.PaymentOrder, refund *model.RefundOrder) {
	channelRefundID := ""
	if refund.ChannelRefundID != nil {
		channelRefundID = *refund.ChannelRefundID
	}
	evt := OutcomeEvent{
		OrderID:     order.OrderID,
		MID:         order.MID,
		MOrderID:    order.MOrderID,
		TxID:        refund.RefundID,
		ChannelTxID: channelRefundID,
		Status:      "REFUND_" + model.StatusName(refund.Status),
		Amount:      refund.Amount.String(),
		Currency:    order.Currency,
		NotifyURL:   order.NotifyURL,
		Ts:          time.Now().Unix(),
	}
	if err := e.pub.PublishOutcome(evt); err != nil {
		e.log.WithField("refund_id", strconv.FormatUint(refund.RefundID, 10)).Errorf("publish refund outcome failed: %v", err)
	}
}
