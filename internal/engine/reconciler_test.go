package engine

import (
	"context"
	"fmt"
	"testing"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/model"
)

func callbackBody(channelTxID, status, amount, sign string) []byte {
	return []byte(fmt.Sprintf(`{"channel_tx_id":%q,"status":%q,"amount":%q,"sign":%q}`,
		channelTxID, status, amount, sign))
}

func TestHandleCallbackSucceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSubmitted(t, env, "c-001")

	ack, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody(*tx.ChannelTxID, "SUCCEEDED", "25", "ok"), nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !ack.Accepted || ack.Body != "OK" {
		t.Fatalf("ack = %+v, want accepted OK", ack)
	}

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSucceeded {
		t.Errorf("order status = %s, want SUCCEEDED", model.StatusName(got.Status))
	}
}

func TestHandleCallbackBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSubmitted(t, env, "c-002")

	ack, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody(*tx.ChannelTxID, "SUCCEEDED", "25", "forged"), nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	// 伪造回调不邀请重发，也绝不改单
	if !ack.Accepted {
		t.Error("forged callback should not invite retries")
	}
	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSubmitted {
		t.Errorf("forged callback mutated order: %s", model.StatusName(got.Status))
	}
	if env.alert.count() == 0 {
		t.Error("signature failure must alert")
	}
}

func TestHandleCallbackAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, tx := seedSubmitted(t, env, "c-003")

	ack, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody(*tx.ChannelTxID, "SUCCEEDED", "999", "ok"), nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !ack.Accepted {
		t.Error("amount mismatch is not retryable, ack accepted")
	}
	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSubmitted {
		t.Error("amount mismatch must not mutate order")
	}
	if env.alert.count() == 0 {
		t.Error("amount mismatch must alert")
	}
}

func TestHandleCallbackUnknownChannel(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.eng.HandleCallback(context.Background(), "nobody",
		callbackBody("x", "SUCCEEDED", "1", "ok"), nil)
	if err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}

func TestOrphanCallbackStoredAndReplayed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 回调先于提交记录到达
	ack, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody("mock-c-010", "SUCCEEDED", "25", "ok"), nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !ack.Accepted {
		t.Fatal("orphan callback should be acked")
	}
	if len(env.store.orphans) != 1 {
		t.Fatalf("orphans = %d, want 1", len(env.store.orphans))
	}

	// 提交落库后回放：fakeAdapter 同步返回 mock-<m_order_no>
	if _, err := env.eng.CreateOrder(ctx, createReq("c-010")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	order, _ := env.store.GetOrderByMerchant(ctx, 1001, "c-010")
	if order.Status != model.StatusSucceeded {
		t.Errorf("orphan not replayed: status = %s, want SUCCEEDED", model.StatusName(order.Status))
	}
	if len(env.store.orphans) != 0 {
		t.Error("replayed orphan must be consumed")
	}
}

func TestOrphanReplayedWhenTxLandsDuringStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 提交超时，渠道号还没落库
	env.ad.submitFn = func(ctx context.Context, order *model.PaymentOrder, tx *model.PaymentTransaction) (adapter.SubmitResult, error) {
		return adapter.SubmitResult{}, adapter.ErrUnavailable
	}
	if _, err := env.eng.CreateOrder(ctx, createReq("c-020")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	env.ad.submitFn = nil
	order, _ := env.store.GetOrderByMerchant(ctx, 1001, "c-020")
	tx, _ := env.store.GetOpenTxByOrder(ctx, order.OrderID)

	// 渠道号恰在回调两次读之间落库，提交方那侧的回放扑空
	env.store.beforeInsertOrphan = func() {
		_, _ = env.store.SetTxChannelID(ctx, tx.TxID, "mock-c-020")
	}

	ack, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody("mock-c-020", "SUCCEEDED", "25", "ok"), nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !ack.Accepted {
		t.Fatal("callback should be acked")
	}

	got, _ := env.store.GetOrder(ctx, order.OrderID)
	if got.Status != model.StatusSucceeded {
		t.Errorf("orphan not replayed after recheck: status = %s, want SUCCEEDED", model.StatusName(got.Status))
	}
	if len(env.store.orphans) != 0 {
		t.Error("replayed orphan must be consumed")
	}
}

func TestOrphanReplayAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.eng.HandleCallback(ctx, "mock",
		callbackBody("mock-c-011", "SUCCEEDED", "999", "ok"), nil); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if _, err := env.eng.CreateOrder(ctx, createReq("c-011")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	order, _ := env.store.GetOrderByMerchant(ctx, 1001, "c-011")
	if order.Status != model.StatusSubmitted {
		t.Errorf("mismatched orphan must not apply: status = %s", model.StatusName(order.Status))
	}
	if env.alert.count() == 0 {
		t.Error("mismatched orphan replay must alert")
	}
}
