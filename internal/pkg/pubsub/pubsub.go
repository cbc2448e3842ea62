package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelBillingUpdates = "billing_updates"
)

// PlanChangeMessage 套餐变更通知，由对账流程在投影更新后发布
type PlanChangeMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	EventType string `json:"event_type,omitempty"`
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishPlanChange 发布套餐变更消息
func (p *Publisher) PublishPlanChange(ctx context.Context, msg *PlanChangeMessage) error {
	if msg.Type == "" {
		msg.Type = "plan_changed"
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.client.Publish(ctx, ChannelBillingUpdates, data).Err()
}

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Run 订阅套餐变更频道并逐条回调，ctx 取消后退出
func (s *Subscriber) Run(ctx context.Context, handler func(*PlanChangeMessage)) error {
	sub := s.client.Subscribe(ctx, ChannelBillingUpdates)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg PlanChangeMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Printf("Failed to unmarshal plan change message: %v", err)
				continue
			}
			handler(&msg)
		}
	}
}
