package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"pay-gateway-api/internal/model"
)

const schedulerBatch = 100

// backoffDelay 指数退避：base * factor^attempt，封顶 max
func (e *Engine) backoffDelay(attempt int) time.Duration {
	s := e.cfg.Scheduler
	d := time.Duration(float64(s.BackoffBase) * math.Pow(s.BackoffFactor, float64(attempt)))
	if d > s.BackoffMax || d <= 0 {
		return s.BackoffMax
	}
	return d
}

// RunScheduler 后台重试调度循环。收敛 AMBIGUOUS 与久提不决的订单/退款，
// 重试耗尽只会 EXPIRED + 转人工，绝不折叠成 FAILED
func (e *Engine) RunScheduler(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Scheduler.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ScanOnce(ctx)
		}
	}
}

// ScanOnce 单轮扫描，调度循环和测试共用
func (e *Engine) ScanOnce(ctx context.Context) {
	now := time.Now()

	if n, err := e.store.PurgeOrphans(ctx, now); err == nil && n > 0 {
		e.log.Infof("purged %d expired orphan callbacks", n)
	}

	if orders, err := e.store.ListAmbiguousOrders(ctx, now, schedulerBatch); err == nil {
		for i := range orders {
			e.resolveOrder(ctx, &orders[i])
		}
	}
	if orders, err := e.store.ListStuckSubmittedOrders(ctx, now.Add(-e.cfg.Scheduler.StuckSubmitted), schedulerBatch); err == nil {
		for i := range orders {
			e.resolveOrder(ctx, &orders[i])
		}
	}
	if refunds, err := e.store.ListRefundsDue(ctx, now, schedulerBatch); err == nil {
		for i := range refunds {
			e.resolveRefund(ctx, &refunds[i])
		}
	}
}

// resolveOrder 查单收敛一笔订单。同一笔单的收敛全程短锁防并发重入，
// 锁只围住本地读改写，不围住上游查单
func (e *Engine) resolveOrder(ctx context.Context, order *model.PaymentOrder) {
	lockKey := "sched:order:" + strconv.FormatUint(order.OrderID, 10)
	ok, err := e.kv.SetNX(ctx, lockKey, "1", 30*time.Second)
	if err != nil || !ok {
		return
	}
	defer func() { _ = e.kv.Del(ctx, lockKey) }()

	if order.ManualReview || model.IsTerminal(order.Status) {
		return
	}

	ad, err := e.registry.Resolve(order.Channel, order.Method, order.Region)
	if err != nil {
		e.bumpOrder(ctx, order)
		return
	}

	tx, err := e.store.GetOpenTxByOrder(ctx, order.OrderID)
	if err != nil {
		e.bumpOrder(ctx, order)
		return
	}
	if tx == nil {
		// 交易可能已先落终态而订单那步没写上（进程中断），查最近一笔补齐，
		// 而不是干耗重试到过期
		last, err := e.store.GetLatestTxByOrder(ctx, order.OrderID)
		if err == nil && last != nil &&
			(last.Status == model.StatusSucceeded || last.Status == model.StatusFailed) {
			if err := e.ApplyOutcome(ctx, order.OrderID, last.TxID, last.Status); err != nil {
				e.log.WithFields(logFields(order)).Warnf("scheduler repair from terminal tx failed: %v", err)
			}
			return
		}
		e.bumpOrder(ctx, order)
		return
	}
	if tx.ChannelTxID == nil {
		// 渠道交易号还没回来，查不了单，只能等回调或耗尽过期
		e.bumpOrder(ctx, order)
		return
	}

	qctx, cancel := context.WithTimeout(ctx, ad.Timeout())
	q, err := ad.Query(qctx, *tx.ChannelTxID)
	cancel()
	if err != nil {
		e.bumpOrder(ctx, order)
		return
	}

	switch q.Status {
	case model.StatusSucceeded, model.StatusFailed:
		if err := e.ApplyOutcome(ctx, order.OrderID, tx.TxID, q.Status); err != nil {
			e.log.WithFields(logFields(order)).Warnf("scheduler apply outcome failed: %v", err)
		}
	default:
		// 上游还在途，继续退避
		e.bumpOrder(ctx, order)
	}
}

// bumpOrder 记一次尝试并排下一次；耗尽或过期则 EXPIRED + 转人工
func (e *Engine) bumpOrder(ctx context.Context, order *model.PaymentOrder) {
	now := time.Now()
	attempt := order.RetryCount + 1
	expired := order.ExpiresAt != nil && now.After(*order.ExpiresAt)

	if attempt >= e.cfg.Scheduler.MaxAttempts || expired {
		e.expireOrder(ctx, order, attempt, expired)
		return
	}

	next := now.Add(e.backoffDelay(attempt))
	if ok, err := e.store.UpdateOrderCAS(ctx, order, map[string]interface{}{
		"retry_count": attempt, "next_retry_at": next,
	}); err == nil && ok {
		order.RetryCount = attempt
		order.NextRetryAt = &next
		order.Version++
	}
}

func (e *Engine) expireOrder(ctx context.Context, order *model.PaymentOrder, attempt int, expired bool) {
	// EXPIRED 只能从 AMBIGUOUS 出边，卡在 SUBMITTED 的先归为结果未知
	if order.Status == model.StatusSubmitted {
		if ok, _ := e.transitOrder(ctx, order, model.StatusAmbiguous, nil); !ok {
			return
		}
	}
	if ok, _ := e.transitOrder(ctx, order, model.StatusExpired, nil); !ok {
		return
	}
	reason := fmt.Sprintf("attempts=%d expired=%v", attempt, expired)
	e.escalateOrder(ctx, order, "retry exhausted, order expired: "+reason)
}

func (e *Engine) resolveRefund(ctx context.Context, refund *model.RefundOrder) {
	lockKey := "sched:refund:" + strconv.FormatUint(refund.RefundID, 10)
	ok, err := e.kv.SetNX(ctx, lockKey, "1", 30*time.Second)
	if err != nil || !ok {
		return
	}
	defer func() { _ = e.kv.Del(ctx, lockKey) }()

	if refund.ManualReview || model.IsTerminal(refund.Status) {
		return
	}

	order, err := e.store.GetOrder(ctx, refund.OrderID)
	if err != nil || order == nil {
		e.bumpRefund(ctx, refund)
		return
	}
	ad, err := e.registry.Resolve(order.Channel, order.Method, order.Region)
	if err != nil || refund.ChannelRefundID == nil {
		e.bumpRefund(ctx, refund)
		return
	}

	qctx, cancel := context.WithTimeout(ctx, ad.Timeout())
	q, err := ad.QueryRefund(qctx, *refund.ChannelRefundID)
	cancel()
	if err != nil {
		e.bumpRefund(ctx, refund)
		return
	}

	switch q.Status {
	case model.StatusSucceeded, model.StatusFailed:
		if err := e.ApplyRefundOutcome(ctx, refund.RefundID, q.Status); err != nil {
			e.log.WithField("refund_id", refund.RefundID).Warnf("scheduler apply refund outcome failed: %v", err)
		}
	default:
		e.bumpRefund(ctx, refund)
	}
}

func (e *Engine) bumpRefund(ctx context.Context, refund *model.RefundOrder) {
	now := time.Now()
	attempt := refund.RetryCount + 1
	if attempt >= e.cfg.Scheduler.MaxAttempts {
		if refund.Status == model.StatusSubmitted {
			if ok, _ := e.transitRefund(ctx, refund, model.StatusAmbiguous, nil); !ok {
				return
			}
		}
		if ok, _ := e.transitRefund(ctx, refund, model.StatusExpired, nil); !ok {
			return
		}
		e.escalateRefund(ctx, refund, fmt.Sprintf("retry exhausted after %d attempts", attempt))
		return
	}

	next := now.Add(e.backoffDelay(attempt))
	if ok, err := e.store.UpdateRefundCAS(ctx, refund, map[string]interface{}{
		"retry_count": attempt, "next_retry_at": next,
	}); err == nil && ok {
		refund.RetryCount = attempt
		refund.NextRetryAt = &next
		refund.Version++
	}
}
