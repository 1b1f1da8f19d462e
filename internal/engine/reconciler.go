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

// CallbackAck 给上游的应答。Accepted=false 表示让上游稍后重发
type CallbackAck struct {
	Accepted    bool
	ContentType string
	Body        string
}

func ack(ad adapter.ChannelAdapter, accepted bool) CallbackAck {
	ct, body := ad.AckPayload(accepted)
	return CallbackAck{Accepted: accepted, ContentType: ct, Body: body}
}

// HandleCallback 上游异步通知对账。验签失败只记录不改单；
// 找不到本地交易的通知按孤儿暂存，窗口内等提交记录落库后回放
func (e *Engine) HandleCallback(ctx context.Context, channel string, raw []byte, headers map[string]string) (CallbackAck, error) {
	ad, err := e.registry.ResolveChannel(channel)
	if err != nil {
		return CallbackAck{}, err
	}

	outcome, err := ad.VerifyCallback(raw, headers)
	if err != nil {
		// 安全事件：对外不给失败细节，对内大声记录，不邀请重发
		e.log.WithField("channel", channel).Errorf("callback signature verification failed, payload dropped")
		e.alert.Alert("warn", "回调验签失败", fmt.Sprintf("channel=%s len=%d", channel, len(raw)))
		return ack(ad, true), nil
	}

	tx, err := e.store.GetTxByChannelTxID(ctx, outcome.ChannelTxID)
	if err != nil {
		return ack(ad, false), nil
	}
	if tx == nil {
		// 回调先于本地提交记录到达，暂存等回放
		oc := &model.OrphanCallback{
			ID:          idgen.New(),
			Channel:     channel,
			ChannelTxID: outcome.ChannelTxID,
			Outcome:     outcome.Status,
			Amount:      outcome.Amount,
			Raw:         outcome.Raw,
			ExpiresAt:   time.Now().Add(e.cfg.Callback.OrphanRetention),
		}
		if err := e.store.InsertOrphan(ctx, oc); err != nil {
			return ack(ad, false), nil
		}
		e.log.WithField("channel_tx_id", outcome.ChannelTxID).Infof("orphan callback stored")
		// 暂存后再查一次：提交方可能恰在两次读之间落了渠道交易号，
		// 它那侧的回放扑了空，这里补上
		if tx, err := e.store.GetTxByChannelTxID(ctx, outcome.ChannelTxID); err == nil && tx != nil {
			e.replayOrphan(ctx, channel, outcome.ChannelTxID)
		}
		return ack(ad, true), nil
	}

	if !outcome.Amount.Equal(tx.Amount) {
		e.log.WithField("channel_tx_id", outcome.ChannelTxID).
			Errorf("callback amount mismatch: got %s want %s", outcome.Amount, tx.Amount)
		e.alert.Alert("warn", "回调金额不符",
			fmt.Sprintf("channel=%s tx=%d callback=%s local=%s", channel, tx.TxID, outcome.Amount, tx.Amount))
		return ack(ad, true), nil
	}

	if err := e.ApplyOutcome(ctx, tx.OrderID, tx.TxID, outcome.Status); err != nil {
		if errors.Is(err, ErrConsistencyViolation) {
			// 已转人工，不让上游再发
			return ack(ad, true), nil
		}
		return ack(ad, false), nil
	}
	return ack(ad, true), nil
}

// replayOrphan 提交记录落库后回放窗口内的孤儿回调
func (e *Engine) replayOrphan(ctx context.Context, channel, channelTxID string) {
	oc, err := e.store.TakeOrphan(ctx, channel, channelTxID, time.Now())
	if err != nil || oc == nil {
		return
	}
	tx, err := e.store.GetTxByChannelTxID(ctx, channelTxID)
	if err != nil || tx == nil {
		return
	}
	if !oc.Amount.Equal(tx.Amount) {
		e.alert.Alert("warn", "孤儿回调金额不符",
			fmt.Sprintf("channel=%s tx=%d callback=%s local=%s", channel, tx.TxID, oc.Amount, tx.Amount))
		return
	}
	if err := e.ApplyOutcome(ctx, tx.OrderID, tx.TxID, oc.Outcome); err != nil {
		e.log.WithField("channel_tx_id", channelTxID).Warnf("orphan replay failed: %v", err)
		return
	}
	e.log.WithField("channel_tx_id", channelTxID).Infof("orphan callback replayed")
}
