package mq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/streadway/amqp"

	"pay-gateway-api/internal/config"
	"pay-gateway-api/internal/dal"
	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/logger"
	"pay-gateway-api/internal/utils"
)

// NotifyMerchantPayload 回调给商户的报文，签名规则与下单验签一致
type NotifyMerchantPayload struct {
	OrderID     string `json:"order_id"`
	MerchantNo  string `json:"merchant_no"`
	TranFlow    string `json:"tran_flow"`
	PaySerialNo string `json:"pay_serial_no"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Ts          string `json:"ts"`
	Sign        string `json:"sign"`
}

func StartConsumers() {
	if dal.RabbitCh == nil {
		logger.Notify.Warn("RabbitMQ channel not initialized")
		return
	}
	msgs, err := dal.RabbitCh.Consume("merchant_notify", "", false, false, false, false, nil)
	if err != nil {
		logger.Notify.Errorf("❌ consume merchant_notify failed: %v", err)
		return
	}
	for d := range msgs {
		go handleNotify(d)
	}
}

func handleNotify(d amqp.Delivery) {
	var evt engine.OutcomeEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		logger.Notify.Errorf("❌ outcome unmarshal err: %v", err)
		d.Nack(false, false)
		return
	}

	if err := notifyMerchant(evt); err != nil {
		logger.Notify.Errorf("❌ notify merchant failed for order %d: %v", evt.OrderID, err)

		if evt.RetryCount < config.C.Notify.MaxRetry {
			evt.RetryCount++
			retryBody, _ := json.Marshal(evt)
			_ = dal.RabbitCh.Publish(
				"", "merchant_notify", false, false,
				amqp.Publishing{
					ContentType: "application/json",
					Body:        retryBody,
				},
			)
			logger.Notify.Warnf("🔁 retrying notify for order %d (attempt %d)", evt.OrderID, evt.RetryCount)
		} else {
			logger.Notify.Errorf("🚨 max notify retry reached for order %d", evt.OrderID)
		}

		d.Nack(false, false)
		return
	}

	d.Ack(false)
}

func notifyMerchant(evt engine.OutcomeEvent) error {
	if evt.NotifyURL == "" {
		// 商户没配异步通知地址，视为成功
		return nil
	}

	payload := NotifyMerchantPayload{
		OrderID:     strconv.FormatUint(evt.OrderID, 10),
		MerchantNo:  strconv.FormatUint(evt.MID, 10),
		TranFlow:    evt.MOrderID,
		PaySerialNo: evt.ChannelTxID,
		Status:      evt.Status,
		Amount:      evt.Amount,
		Currency:    evt.Currency,
		Ts:          strconv.FormatInt(evt.Ts, 10),
	}
	payload.Sign = signNotify(payload, config.C.Security.HMACSecret)

	body, _ := json.Marshal(payload)
	req, err := http.NewRequest("POST", evt.NotifyURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	cli := &http.Client{Timeout: time.Duration(config.C.Notify.TimeoutSec) * time.Second}
	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("notify post failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify http status %d", resp.StatusCode)
	}

	logger.Notify.Infof("✅ notify success for order %d", evt.OrderID)
	return nil
}

func signNotify(p NotifyMerchantPayload, key string) string {
	params := map[string]string{
		"order_id":      p.OrderID,
		"merchant_no":   p.MerchantNo,
		"tran_flow":     p.TranFlow,
		"pay_serial_no": p.PaySerialNo,
		"status":        p.Status,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"ts":            p.Ts,
	}
	return utils.GenerateHMACSign(params, key)
}
