package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/billing_go_server/internal/model"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(event *model.WebhookEvent) error {
	return r.db.Create(event).Error
}

func (r *WebhookEventRepository) GetByEventID(eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed 标记事件处理完成
func (r *WebhookEventRepository) MarkProcessed(eventID string) error {
	now := time.Now()
	return r.db.Model(&model.WebhookEvent{}).Where("event_id = ?", eventID).Updates(map[string]interface{}{
		"status":       model.EventStatusProcessed,
		"error":        "",
		"processed_at": &now,
	}).Error
}

// MarkFailed 记录处理失败原因，等待上游重投后再次处理
func (r *WebhookEventRepository) MarkFailed(eventID string, errMsg string) error {
	return r.db.Model(&model.WebhookEvent{}).Where("event_id = ?", eventID).Updates(map[string]interface{}{
		"status": model.EventStatusFailed,
		"error":  errMsg,
	}).Error
}
