package engine

import (
	"context"
	"testing"
	"time"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/model"
)

func TestBackoffDelay(t *testing.T) {
	env := newTestEnv(t)
	s := env.eng.cfg.Scheduler

	if d := env.eng.backoffDelay(0); d != s.BackoffBase {
		t.Errorf("attempt 0: %v, want %v", d, s.BackoffBase)
	}
	if d := env.eng.backoffDelay(1); d != 2*s.BackoffBase {
		t.Errorf("attempt 1: %v, want %v", d, 2*s.BackoffBase)
	}
	// 封顶
	if d := env.eng.backoffDelay(20); d != s.BackoffMax {
		t.Errorf("attempt 20: %v, want cap %v", d, s.BackoffMax)
	}
}

// seedAmbiguous 种一笔提交超时后停在 AMBIGUOUS 的订单
func seedAmbiguous(t *testing.T, env *testEnv, mOrderNo string) (*model.PaymentOrder, *model.PaymentTransaction) {
	t.Helper()
	ctx := context.Background()

	env.ad.submitFn = func(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (adapter.SubmitResult, error) {
		return adapter.SubmitResult{}, adapter.ErrUnavailable
	}
	if _, err := env.eng.CreateOrder(ctx, createReq(mOrderNo)); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	env.ad.submitFn = nil

	order, _ := env.store.GetOrderByMerchant(ctx, 1001, mOrderNo)
	tx, _ := env.store.GetOpenTxByOrder(ctx, order.OrderID)

	// 渠道号靠后续查单才补上，这里直接种进去模拟已知号
	if ok, _ := env.store.SetTxChannelID(ctx, tx.TxID, "mock-"+mOrderNo); !ok {
		t.Fatal("seed channel tx id failed")
	}
	// 让调度器立刻可见
	cur, _ := env.store.GetOrder(ctx, order.OrderID)
	_, _ = env.store.UpdateOrderCAS(ctx, cur, map[string]interface{}{
		"next_retry_at": time.Now().Add(-time.Second),
	})
	order, _ = env.store.GetOrder(ctx, order.OrderID)
	tx, _ = env.store.GetTx(ctx, tx.TxID)
	return order, tx
}

func TestScanOnceResolvesAmbiguousViaQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedAmbiguous(t, env, "s-001")

	env.ad.queryFn = func(ctx context.Context, channelTxID string) (adapter.QueryResult, error) {
		return adapter.QueryResult{Status: model.StatusSucceeded, ChannelTxID: channelTxID}, nil
	}

	env.eng.ScanOnce(ctx)

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSucceeded {
		t.Errorf("order status = %s, want SUCCEEDED", model.StatusName(got.Status))
	}
}

func TestScanOnceBumpsWhenStillPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedAmbiguous(t, env, "s-002")

	env.ad.queryFn = func(ctx context.Context, channelTxID string) (adapter.QueryResult, error) {
		return adapter.QueryResult{Status: model.StatusSubmitted}, nil
	}

	env.eng.ScanOnce(ctx)

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusAmbiguous {
		t.Fatalf("order status = %s, want AMBIGUOUS", model.StatusName(got.Status))
	}
	if got.RetryCount != order.RetryCount+1 {
		t.Errorf("retry_count = %d, want %d", got.RetryCount, order.RetryCount+1)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.After(time.Now()) {
		t.Error("next_retry_at must move forward")
	}
}

func TestScanOnceExpiresAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedAmbiguous(t, env, "s-003")

	cur, _ := env.store.GetOrder(ctx, order.OrderID)
	if ok, _ := env.store.UpdateOrderCAS(ctx, cur, map[string]interface{}{
		"retry_count": env.eng.cfg.Scheduler.MaxAttempts - 1,
	}); !ok {
		t.Fatal("seed retry_count failed")
	}

	env.ad.queryFn = func(ctx context.Context, channelTxID string) (adapter.QueryResult, error) {
		return adapter.QueryResult{}, adapter.ErrUnavailable
	}

	env.eng.ScanOnce(ctx)

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	// 耗尽绝不折叠成 FAILED
	if got.Status != model.StatusExpired {
		t.Fatalf("order status = %s, want EXPIRED", model.StatusName(got.Status))
	}
	if !got.ManualReview {
		t.Error("exhausted order must go to manual review")
	}
	if env.alert.count() == 0 {
		t.Error("exhausted order must alert")
	}
}

func TestScanOnceRepairsOrderWithTerminalTx(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedAmbiguous(t, env, "s-004")

	// 交易已落终态而订单迁移没写上，调度器要补齐而不是耗到过期
	if ok, _ := env.store.UpdateTxCAS(ctx, tx, map[string]interface{}{"status": model.StatusSucceeded}); !ok {
		t.Fatal("seed terminal tx failed")
	}

	env.eng.ScanOnce(ctx)

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSucceeded {
		t.Errorf("order status = %s, want SUCCEEDED", model.StatusName(got.Status))
	}
	if got.ManualReview {
		t.Error("repaired order must not be escalated")
	}
	if env.pub.count() != 1 {
		t.Errorf("published %d events, want 1", env.pub.count())
	}
}

func TestScanOncePurgesExpiredOrphans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_ = env.store.InsertOrphan(ctx, &model.OrphanCallback{
		ID: 1, Channel: "mock", ChannelTxID: "gone-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	_ = env.store.InsertOrphan(ctx, &model.OrphanCallback{
		ID: 2, Channel: "mock", ChannelTxID: "live-1",
		ExpiresAt: time.Now().Add(time.Minute),
	})

	env.eng.ScanOnce(ctx)

	if len(env.store.orphans) != 1 {
		t.Errorf("orphans = %d, want 1 surviving", len(env.store.orphans))
	}
}

func TestResolveRefundViaQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSucceededPayment(t, env, "s-010", "30.00")

	resp, err := env.eng.RequestRefund(ctx, refundReqFor(order, tx, "30.00"))
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	refundID := mustParseID(t, resp.RefundID)

	// 让退款单到期
	cur, _ := env.store.GetRefund(ctx, refundID)
	_, _ = env.store.UpdateRefundCAS(ctx, cur, map[string]interface{}{
		"next_retry_at": time.Now().Add(-time.Second),
	})

	env.ad.queryRefundFn = func(ctx context.Context, channelRefundID string) (adapter.RefundResult, error) {
		return adapter.RefundResult{ChannelRefundID: channelRefundID, Status: model.StatusSucceeded}, nil
	}

	env.eng.ScanOnce(ctx)

	got, _ := env.store.GetRefund(ctx, refundID)
	if got.Status != model.StatusSucceeded {
		t.Errorf("refund status = %s, want SUCCEEDED", model.StatusName(got.Status))
	}
}
