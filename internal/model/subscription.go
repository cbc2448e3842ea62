package model

import (
	"time"
)

// 订阅状态，与 Stripe 的 subscription status 对齐
const (
	StatusTrialing          = "trialing"
	StatusActive            = "active"
	StatusCanceled          = "canceled"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusPastDue           = "past_due"
	StatusUnpaid            = "unpaid"
)

// PlanFree 最低档套餐，取消订阅后回落到该档
const PlanFree = "free"

// Subscription 订阅台账，每个用户最多一行，作为计费状态的权威来源。
// 行记录永不删除，退订时 status 置为 canceled。
type Subscription struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	UserID               string     `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	StripeSubscriptionID string     `gorm:"size:100;uniqueIndex" json:"stripe_subscription_id"`
	StripeCustomerID     string     `gorm:"size:100;index" json:"stripe_customer_id"`
	StripePriceID        string     `gorm:"size:100" json:"stripe_price_id"`
	CurrentPeriodEnd     *time.Time `gorm:"index" json:"current_period_end,omitempty"`
	Status               string     `gorm:"size:30;default:active;index" json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
