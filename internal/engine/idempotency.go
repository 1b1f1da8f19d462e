package engine

import (
	"context"
	"fmt"
	"time"

	"pay-gateway-api/internal/model"
)

const createReserveTTL = 30 * time.Second

func idemKey(mID uint64, mOrderID string) string {
	return fmt.Sprintf("idem:%d:%s", mID, mOrderID)
}

// reserveCreate 下单幂等占位。
// 已有订单 → 返回原单（幂等重放）；
// 占位被他人持有 → ErrConcurrentRequest，调用方应改走查询；
// 占位成功 → 返回释放函数，期间库里唯一键兜底
func (e *Engine) reserveCreate(ctx context.Context, mID uint64, mOrderID string) (*model.PaymentOrder, func(), error) {
	existing, err := e.store.GetOrderByMerchant(ctx, mID, mOrderID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return existing, nil, nil
	}

	key := idemKey(mID, mOrderID)
	ok, err := e.kv.SetNX(ctx, key, "1", createReserveTTL)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrConcurrentRequest
	}

	release := func() {
		_ = e.kv.Del(context.WithoutCancel(ctx), key)
	}
	return nil, release, nil
}
