package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/billing_go_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByUserID(userID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByStripeID(stripeSubscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertByUserID 按用户写入台账：不存在则新建（默认 active），存在则只覆盖
// 传入的字段，未传的字段保持不变。重复投递同一事件时结果不变。
func (r *SubscriptionRepository) UpsertByUserID(userID string, fields map[string]interface{}) error {
	var count int64
	if err := r.db.Model(&model.Subscription{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		sub := &model.Subscription{
			UserID: userID,
			Status: model.StatusActive,
		}
		if err := r.db.Create(sub).Error; err != nil {
			return err
		}
	}

	return r.db.Model(&model.Subscription{}).Where("user_id = ?", userID).Updates(fields).Error
}

// UpdateFieldsByStripeID 按外部订阅 ID 更新字段，返回受影响行数。
// 返回 0 表示台账中还没有该订阅（事件先于 checkout 到达），调用方按无害空操作处理。
func (r *SubscriptionRepository) UpdateFieldsByStripeID(stripeSubscriptionID string, fields map[string]interface{}) (int64, error) {
	result := r.db.Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// MarkCanceledByStripeID 将订阅置为 canceled 并返回所属用户 ID，
// 找不到时 found 为 false（孤儿事件，不是错误）
func (r *SubscriptionRepository) MarkCanceledByStripeID(stripeSubscriptionID string) (string, bool, error) {
	var sub model.Subscription
	err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	err = r.db.Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Update("status", model.StatusCanceled).Error
	if err != nil {
		return "", false, err
	}

	return sub.UserID, true, nil
}

// FindAll 全量读取台账，用于投影重建
func (r *SubscriptionRepository) FindAll() ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Order("id").Find(&subs).Error
	return subs, err
}
