package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/billing_go_server/internal/model"
)

// TestSubscription 创建测试订阅台账行
func TestSubscription(t *testing.T, db *gorm.DB, userID string, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	nano := time.Now().UnixNano()
	sub := &model.Subscription{
		UserID:               userID,
		StripeSubscriptionID: fmt.Sprintf("sub_test_%d", nano),
		StripeCustomerID:     fmt.Sprintf("cus_test_%d", nano),
		StripePriceID:        "price_pro_monthly",
		Status:               model.StatusActive,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithStripeIDs 设置 Stripe 订阅和客户 ID
func WithStripeIDs(subscriptionID, customerID string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.StripeSubscriptionID = subscriptionID
		s.StripeCustomerID = customerID
	}
}

// WithStatus 设置订阅状态
func WithStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithPriceID 设置价格 ID
func WithPriceID(priceID string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.StripePriceID = priceID
	}
}

// WithPeriodEnd 设置当前计费周期截止时间
func WithPeriodEnd(end time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.CurrentPeriodEnd = &end
	}
}

// TestWebhookEvent 创建测试事件流水
func TestWebhookEvent(t *testing.T, db *gorm.DB, eventID, eventType, status string) *model.WebhookEvent {
	t.Helper()

	ev := &model.WebhookEvent{
		EventID:   eventID,
		EventType: eventType,
		Payload:   "{}",
		Status:    status,
	}
	if status == model.EventStatusProcessed {
		now := time.Now()
		ev.ProcessedAt = &now
	}

	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("Failed to create test webhook event: %v", err)
	}

	return ev
}
