package model

import (
	"time"
)

// Webhook 事件处理状态
const (
	EventStatusReceived  = "received"
	EventStatusProcessed = "processed"
	EventStatusFailed    = "failed"
)

// WebhookEvent 已验签事件的流水记录，event_id 唯一索引用于幂等去重，
// 原始报文保留用于审计和重放
type WebhookEvent struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	EventID     string     `gorm:"size:100;uniqueIndex;not null" json:"event_id"`
	EventType   string     `gorm:"size:100;index" json:"event_type"`
	Payload     string     `gorm:"type:text" json:"-"`
	Status      string     `gorm:"size:20;default:received;index" json:"status"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
