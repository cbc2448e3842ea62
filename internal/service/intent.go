package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v72"
)

// Intent 对账意图，事件经分类后落入以下封闭集合之一。
// 新的事件类型必须在这里显式加入，不允许运行时推断。
type Intent interface {
	intentName() string
}

// CheckoutCompleted 首次购买完成，用户和目标套餐来自 checkout session 的 metadata
type CheckoutCompleted struct {
	UserID               string
	IntentPlan           string
	StripeSubscriptionID string
}

// PaymentSucceeded 续费扣款成功
type PaymentSucceeded struct {
	StripeSubscriptionID string
}

// PeriodUpdated 计费周期变更（升降级、续期等）
type PeriodUpdated struct {
	StripeSubscriptionID string
	PeriodEnd            time.Time
}

// SubscriptionCanceled 订阅被删除
type SubscriptionCanceled struct {
	StripeSubscriptionID string
}

// Unhandled 未订阅的事件类型，直接确认不做任何写入
type Unhandled struct {
	EventType string
}

func (CheckoutCompleted) intentName() string    { return "checkout_completed" }
func (PaymentSucceeded) intentName() string     { return "payment_succeeded" }
func (PeriodUpdated) intentName() string        { return "period_updated" }
func (SubscriptionCanceled) intentName() string { return "subscription_canceled" }
func (Unhandled) intentName() string            { return "unhandled" }

// classifyEvent 将已验签事件映射为对账意图。未知类型归入 Unhandled（向前兼容），
// 已知类型但缺关键字段视为坏报文返回错误。
func classifyEvent(ev *stripe.Event) (Intent, error) {
	switch ev.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		userID := session.Metadata["user_id"]
		if userID == "" {
			return nil, fmt.Errorf("%w: checkout session missing user_id metadata", ErrMalformedEvent)
		}
		if session.Subscription == nil || session.Subscription.ID == "" {
			return nil, fmt.Errorf("%w: checkout session missing subscription", ErrMalformedEvent)
		}
		return &CheckoutCompleted{
			UserID:               userID,
			IntentPlan:           session.Metadata["intent_plan"],
			StripeSubscriptionID: session.Subscription.ID,
		}, nil

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			return nil, fmt.Errorf("%w: invoice missing subscription", ErrMalformedEvent)
		}
		return &PaymentSucceeded{
			StripeSubscriptionID: invoice.Subscription.ID,
		}, nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: subscription missing id", ErrMalformedEvent)
		}
		return &PeriodUpdated{
			StripeSubscriptionID: sub.ID,
			PeriodEnd:            time.Unix(sub.CurrentPeriodEnd, 0),
		}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: subscription missing id", ErrMalformedEvent)
		}
		return &SubscriptionCanceled{
			StripeSubscriptionID: sub.ID,
		}, nil

	default:
		return &Unhandled{EventType: string(ev.Type)}, nil
	}
}
