package service

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/model"
	"github.com/qs3c/billing_go_server/internal/model/dto"
	"github.com/qs3c/billing_go_server/internal/repository"
)

// SubscriptionService 账户页读侧，只读台账，不做任何对账写入
type SubscriptionService struct {
	subRepo  *repository.SubscriptionRepository
	identity IdentityClient
	cfg      *config.Config
}

func NewSubscriptionService(subRepo *repository.SubscriptionRepository, identityClient IdentityClient, cfg *config.Config) *SubscriptionService {
	return &SubscriptionService{
		subRepo:  subRepo,
		identity: identityClient,
		cfg:      cfg,
	}
}

// GetSubscription 返回用户当前的订阅视图。没有台账行的用户视为 free。
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (*dto.SubscriptionInfo, error) {
	info := &dto.SubscriptionInfo{
		Plan:      model.PlanFree,
		ManageURL: s.buildManageURL(ctx, userID),
	}

	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return info, nil
		}
		return nil, err
	}

	switch sub.Status {
	case model.StatusCanceled, model.StatusIncompleteExpired, model.StatusUnpaid:
		info.Plan = model.PlanFree
	default:
		if tier, ok := s.cfg.TierForPriceID(sub.StripePriceID); ok {
			info.Plan = tier
		}
	}
	info.Status = sub.Status
	if plan, ok := s.cfg.Plans[info.Plan]; ok {
		info.PlanName = plan.DisplayName
	}
	if sub.CurrentPeriodEnd != nil {
		info.CurrentPeriodEnd = sub.CurrentPeriodEnd.Format(time.RFC3339)
	}

	return info, nil
}

// buildManageURL 拼接 Stripe 账单门户链接，能取到邮箱时预填
func (s *SubscriptionService) buildManageURL(ctx context.Context, userID string) string {
	base := s.cfg.Stripe.PortalURL
	if base == "" {
		return ""
	}

	user, err := s.identity.GetUser(ctx, userID)
	if err != nil || user.Email == "" {
		if err != nil {
			log.Printf("Failed to fetch user %s for portal link: %v", userID, err)
		}
		return base
	}

	return base + "?prefilled_email=" + url.QueryEscape(user.Email)
}
