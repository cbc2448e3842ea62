package dto

// SubscriptionInfo 订阅信息（返回给前端账户页）
type SubscriptionInfo struct {
	Plan             string `json:"plan"`
	PlanName         string `json:"plan_name,omitempty"`
	Status           string `json:"status,omitempty"`
	CurrentPeriodEnd string `json:"current_period_end,omitempty"`
	ManageURL        string `json:"manage_url,omitempty"`
}

// PlanChangeNotice WebSocket 推送的套餐变更通知
type PlanChangeNotice struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
}
