package mq

import (
	"encoding/json"
	"log"

	"github.com/streadway/amqp"

	"pay-gateway-api/internal/dal"
	"pay-gateway-api/internal/engine"
)

// Publisher 终态事件投递到 payment_events，消费端负责商户通知。
// RabbitMQ 不可用时只记日志不阻断主流程，状态机以库为准
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishOutcome(evt engine.OutcomeEvent) error {
	if dal.RabbitCh == nil {
		return nil
	}
	b, _ := json.Marshal(evt)
	err := dal.RabbitCh.Publish(
		"payment_events",
		"order.outcome",
		false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         b,
		},
	)
	if err != nil {
		log.Printf("publish order.outcome failed: %v", err)
	}
	return err
}
