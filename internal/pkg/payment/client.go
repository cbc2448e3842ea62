package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v72"
	stripeclient "github.com/stripe/stripe-go/v72/client"

	"github.com/qs3c/billing_go_server/config"
)

// SubscriptionInfo Stripe 订阅的规范字段，落库前以此为准而不是事件携带的字段
type SubscriptionInfo struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           string
	CurrentPeriodEnd time.Time
}

type Client struct {
	api *stripeclient.API
}

func NewClient(cfg *config.StripeConfig) *Client {
	return &Client{
		api: stripeclient.New(cfg.SecretKey, nil),
	}
}

// RetrieveSubscription 拉取订阅的最新状态
func (c *Client) RetrieveSubscription(ctx context.Context, stripeSubscriptionID string) (*SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(stripeSubscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", stripeSubscriptionID, err)
	}

	info := &SubscriptionInfo{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}

	return info, nil
}
