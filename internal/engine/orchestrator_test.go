package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/dto"
	"pay-gateway-api/internal/model"
)

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func mustParseID(t *testing.T, s string) uint64 {
	t.Helper()
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("bad id %q: %v", s, err)
	}
	return id
}

func refundReqFor(order *model.PaymentOrder, tx *model.PaymentTransaction, amount string) dto.RefundReq {
	return dto.RefundReq{
		OrderID: formatID(order.OrderID),
		TxID:    formatID(tx.TxID),
		Amount:  amount,
		Reason:  "test refund",
	}
}

func createReq(mOrderNo string) dto.CreateOrderReq {
	return dto.CreateOrderReq{
		MerchantID:    1001,
		MerchantOrdNo: mOrderNo,
		Amount:        "25.00",
		Currency:      "CNY",
		Channel:       "mock",
		Method:        "qr",
		Region:        "CN",
		Subject:       "test goods",
		NotifyURL:     "https://merchant.example.com/notify",
	}
}

func TestCreateOrderSyncChannelTxID(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.eng.CreateOrder(context.Background(), createReq("m-001"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if resp.Status != "SUBMITTED" {
		t.Fatalf("status = %s, want SUBMITTED", resp.Status)
	}

	tx, err := env.store.GetTxByChannelTxID(context.Background(), "mock-m-001")
	if err != nil || tx == nil {
		t.Fatalf("channel tx id not persisted: %v", err)
	}
	if tx.Status != model.StatusSubmitted {
		t.Errorf("tx status = %s, want SUBMITTED", model.StatusName(tx.Status))
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.eng.CreateOrder(ctx, createReq("m-002"))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.eng.CreateOrder(ctx, createReq("m-002"))
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if first.OrderID != second.OrderID {
		t.Errorf("replay returned different order: %s vs %s", first.OrderID, second.OrderID)
	}
	if len(env.store.orders) != 1 {
		t.Errorf("expected single order, got %d", len(env.store.orders))
	}
}

func TestCreateOrderConcurrentReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 另一个并发请求已抢到占位
	_, _ = env.kv.SetNX(ctx, idemKey(1001, "m-003"), "1", createReserveTTL)

	_, err := env.eng.CreateOrder(ctx, createReq("m-003"))
	if !errors.Is(err, ErrConcurrentRequest) {
		t.Fatalf("err = %v, want ErrConcurrentRequest", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := createReq("m-004")
	req.Currency = "JPY"
	req.Amount = "10.5" // JPY 无小数位
	if _, err := env.eng.CreateOrder(ctx, req); !errors.Is(err, ErrValidation) {
		t.Errorf("scale violation: err = %v, want ErrValidation", err)
	}

	req = createReq("m-005")
	req.Currency = "XXX"
	if _, err := env.eng.CreateOrder(ctx, req); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown currency: err = %v, want ErrValidation", err)
	}

	req = createReq("m-006")
	req.Amount = "-3"
	if _, err := env.eng.CreateOrder(ctx, req); !errors.Is(err, ErrValidation) {
		t.Errorf("negative amount: err = %v, want ErrValidation", err)
	}

	req = createReq("m-007")
	req.Channel = "nobody"
	if _, err := env.eng.CreateOrder(ctx, req); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("unknown channel: err = %v, want ErrUnsupportedChannel", err)
	}
}

func TestCreateOrderChannelRejected(t *testing.T) {
	env := newTestEnv(t)
	env.ad.submitFn = func(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (adapter.SubmitResult, error) {
		return adapter.SubmitResult{}, &adapter.RejectedError{ErrCode: "INSUFFICIENT", ErrMsg: "balance too low"}
	}

	resp, err := env.eng.CreateOrder(context.Background(), createReq("m-010"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if resp.Status != "FAILED" {
		t.Fatalf("status = %s, want FAILED", resp.Status)
	}
}

func TestCreateOrderTimeoutGoesAmbiguous(t *testing.T) {
	env := newTestEnv(t)
	env.ad.submitFn = func(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (adapter.SubmitResult, error) {
		return adapter.SubmitResult{}, adapter.ErrUnavailable
	}

	resp, err := env.eng.CreateOrder(context.Background(), createReq("m-011"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	// 结果未知绝不猜成失败
	if resp.Status != "AMBIGUOUS" {
		t.Fatalf("status = %s, want AMBIGUOUS", resp.Status)
	}

	order, _ := env.store.GetOrderByMerchant(context.Background(), 1001, "m-011")
	if order.NextRetryAt == nil {
		t.Error("expected next_retry_at scheduled for ambiguous order")
	}
}

func TestCreateOrderRiskRejected(t *testing.T) {
	env := newTestEnv(t)
	risky := New(env.store, env.kv, env.eng.registry, env.pub, env.alert,
		MaxAmountRisk("10"), env.eng.cfg, env.eng.log)

	_, err := risky.CreateOrder(context.Background(), createReq("m-012"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation from risk hook", err)
	}
	order, _ := env.store.GetOrderByMerchant(context.Background(), 1001, "m-012")
	if order == nil || order.Status != model.StatusFailed {
		t.Error("risk-rejected order should be persisted as FAILED")
	}
}

func TestQueryOrderCacheRespectsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.eng.CreateOrder(ctx, createReq("m-020"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// 第一次查询灌缓存
	vo, err := env.eng.QueryOrder(ctx, dto.QueryOrderReq{OrderID: resp.OrderID})
	if err != nil {
		t.Fatalf("QueryOrder: %v", err)
	}
	if vo.Status != "SUBMITTED" {
		t.Fatalf("status = %s, want SUBMITTED", vo.Status)
	}

	// 绕过引擎改库，版本号前进，缓存随即失效
	order, _ := env.store.GetOrderByMerchant(ctx, 1001, "m-020")
	tx, _ := env.store.GetOpenTxByOrder(ctx, order.OrderID)
	if err := env.eng.ApplyOutcome(ctx, order.OrderID, tx.TxID, model.StatusSucceeded); err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}

	vo, err = env.eng.QueryOrder(ctx, dto.QueryOrderReq{OrderID: resp.OrderID})
	if err != nil {
		t.Fatalf("QueryOrder after outcome: %v", err)
	}
	if vo.Status != "SUCCEEDED" {
		t.Errorf("stale cache served: status = %s, want SUCCEEDED", vo.Status)
	}
}

// seedSucceededPayment 种一笔成功支付，返回订单与交易
func seedSucceededPayment(t *testing.T, env *testEnv, mOrderNo, amount string) (*model.PaymentOrder, *model.PaymentTransaction) {
	t.Helper()
	ctx := context.Background()

	req := createReq(mOrderNo)
	req.Amount = amount
	if _, err := env.eng.CreateOrder(ctx, req); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	order, _ := env.store.GetOrderByMerchant(ctx, 1001, mOrderNo)
	tx, _ := env.store.GetOpenTxByOrder(ctx, order.OrderID)
	if err := env.eng.ApplyOutcome(ctx, order.OrderID, tx.TxID, model.StatusSucceeded); err != nil {
		t.Fatalf("seed outcome: %v", err)
	}
	order, _ = env.store.GetOrder(ctx, order.OrderID)
	tx, _ = env.store.GetTx(ctx, tx.TxID)
	return order, tx
}

func TestRefundOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSucceededPayment(t, env, "m-030", "100.00")

	req := dto.RefundReq{
		OrderID: formatID(order.OrderID),
		TxID:    formatID(tx.TxID),
		Amount:  "150.00",
		Reason:  "customer return",
	}
	if _, err := env.eng.RequestRefund(ctx, req); !errors.Is(err, ErrInvalidRefundAmount) {
		t.Fatalf("err = %v, want ErrInvalidRefundAmount", err)
	}
}

func TestRefundPartialThenOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSucceededPayment(t, env, "m-031", "100.00")

	mk := func(amount string) dto.RefundReq {
		return dto.RefundReq{
			OrderID: formatID(order.OrderID),
			TxID:    formatID(tx.TxID),
			Amount:  amount,
			Reason:  "partial",
		}
	}

	if _, err := env.eng.RequestRefund(ctx, mk("60.00")); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	// 在途退款也占额度
	if _, err := env.eng.RequestRefund(ctx, mk("50.00")); !errors.Is(err, ErrInvalidRefundAmount) {
		t.Fatalf("err = %v, want ErrInvalidRefundAmount", err)
	}
	if _, err := env.eng.RequestRefund(ctx, mk("40.00")); err != nil {
		t.Fatalf("exact remainder refund: %v", err)
	}
}

func TestRefundExpiredKeepsReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSucceededPayment(t, env, "m-032", "100.00")

	resp, err := env.eng.RequestRefund(ctx, refundReqFor(order, tx, "100.00"))
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	refundID := mustParseID(t, resp.RefundID)

	// 重试耗尽走到 EXPIRED：结果未知，不是失败
	cur, _ := env.store.GetRefund(ctx, refundID)
	if ok, _ := env.store.UpdateRefundCAS(ctx, cur, map[string]interface{}{"status": model.StatusAmbiguous}); !ok {
		t.Fatal("seed ambiguous failed")
	}
	cur, _ = env.store.GetRefund(ctx, refundID)
	if ok, _ := env.store.UpdateRefundCAS(ctx, cur, map[string]interface{}{
		"status": model.StatusExpired, "manual_review": true,
	}); !ok {
		t.Fatal("seed expired failed")
	}

	// 上游可能已经退成了，额度必须继续占着
	if _, err := env.eng.RequestRefund(ctx, refundReqFor(order, tx, "100.00")); !errors.Is(err, ErrInvalidRefundAmount) {
		t.Fatalf("err = %v, want ErrInvalidRefundAmount while first refund outcome unknown", err)
	}
}

func TestRefundRequiresSucceededTx(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.eng.CreateOrder(ctx, createReq("m-032")); err != nil {
		t.Fatalf("create: %v", err)
	}
	order, _ := env.store.GetOrderByMerchant(ctx, 1001, "m-032")
	tx, _ := env.store.GetOpenTxByOrder(ctx, order.OrderID)

	req := dto.RefundReq{
		OrderID: formatID(order.OrderID),
		TxID:    formatID(tx.TxID),
		Amount:  "10.00",
		Reason:  "too early",
	}
	if _, err := env.eng.RequestRefund(ctx, req); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRefundLockContention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSucceededPayment(t, env, "m-033", "100.00")

	// 锁被并发持有
	_, _ = env.kv.SetNX(ctx, "refund_lock:"+formatID(tx.TxID), "1", 0)

	req := dto.RefundReq{
		OrderID: formatID(order.OrderID),
		TxID:    formatID(tx.TxID),
		Amount:  "10.00",
		Reason:  "contended",
	}
	if _, err := env.eng.RequestRefund(ctx, req); !errors.Is(err, ErrConcurrentRequest) {
		t.Fatalf("err = %v, want ErrConcurrentRequest", err)
	}
}
