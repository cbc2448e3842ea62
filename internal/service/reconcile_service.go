package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/model"
	"github.com/qs3c/billing_go_server/internal/pkg/identity"
	"github.com/qs3c/billing_go_server/internal/pkg/oss"
	"github.com/qs3c/billing_go_server/internal/pkg/payment"
	"github.com/qs3c/billing_go_server/internal/pkg/pubsub"
	"github.com/qs3c/billing_go_server/internal/repository"
)

var (
	ErrInvalidSignature = errors.New("事件验签失败")
	ErrMalformedEvent   = errors.New("事件报文不完整")
)

// 事件的终态
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeOrphan    = "orphan"
)

// PaymentClient 支付平台订阅查询，落库前取规范字段
type PaymentClient interface {
	RetrieveSubscription(ctx context.Context, stripeSubscriptionID string) (*payment.SubscriptionInfo, error)
}

// IdentityClient 身份服务，持有 active_plan 投影
type IdentityClient interface {
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	UpdateActivePlan(ctx context.Context, userID, plan string) error
}

// PlanNotifier 套餐变更通知（尽力而为，失败只记日志）
type PlanNotifier interface {
	PublishPlanChange(ctx context.Context, msg *pubsub.PlanChangeMessage) error
}

// ReconcileResult 单个事件的处理结果
type ReconcileResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
}

// ReconcileService 对账编排：验签 → 分类 → 台账写入 → 投影更新。
// 每个事件独立无状态处理，依赖字段级幂等写入容忍乱序和重复投递。
type ReconcileService struct {
	subRepo   *repository.SubscriptionRepository
	eventRepo *repository.WebhookEventRepository
	payment   PaymentClient
	identity  IdentityClient
	notifier  PlanNotifier
	archiver  *oss.Client
	cfg       *config.Config
}

func NewReconcileService(
	subRepo *repository.SubscriptionRepository,
	eventRepo *repository.WebhookEventRepository,
	paymentClient PaymentClient,
	identityClient IdentityClient,
	notifier PlanNotifier,
	archiver *oss.Client,
	cfg *config.Config,
) *ReconcileService {
	return &ReconcileService{
		subRepo:   subRepo,
		eventRepo: eventRepo,
		payment:   paymentClient,
		identity:  identityClient,
		notifier:  notifier,
		archiver:  archiver,
		cfg:       cfg,
	}
}

// HandleEvent 处理一次 webhook 投递。返回错误时调用方回 5xx，
// 由 Stripe 按至少一次语义重投；验签和坏报文错误除外（回 4xx，不重投）。
func (s *ReconcileService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) (*ReconcileResult, error) {
	ev, err := payment.VerifyEvent(payload, sigHeader, s.cfg.Stripe.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &ReconcileResult{EventID: ev.ID, EventType: string(ev.Type)}

	// 事件流水去重：同一事件处理成功后的重投直接确认
	existing, err := s.eventRepo.GetByEventID(ev.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == model.EventStatusProcessed {
			result.Outcome = OutcomeDuplicate
			return result, nil
		}
	} else {
		record := &model.WebhookEvent{
			EventID:   ev.ID,
			EventType: string(ev.Type),
			Payload:   string(payload),
			Status:    model.EventStatusReceived,
		}
		if err := s.eventRepo.Create(record); err != nil {
			return nil, err
		}
	}

	intent, err := classifyEvent(&ev)
	if err != nil {
		s.markFailed(ev.ID, err)
		return nil, err
	}

	outcome, err := s.apply(ctx, intent)
	if err != nil {
		s.markFailed(ev.ID, err)
		return nil, err
	}
	result.Outcome = outcome

	if err := s.eventRepo.MarkProcessed(ev.ID); err != nil {
		return nil, err
	}

	s.archivePayload(ev.ID, payload)
	return result, nil
}

// apply 按意图执行台账写入和投影更新，顺序不变式：先台账后投影
func (s *ReconcileService) apply(ctx context.Context, intent Intent) (string, error) {
	switch it := intent.(type) {
	case *CheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, it)
	case *PaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, it)
	case *PeriodUpdated:
		return s.applyPeriodUpdated(ctx, it)
	case *SubscriptionCanceled:
		return s.applyCanceled(ctx, it)
	case *Unhandled:
		log.Printf("Ignoring unhandled event type: %s", it.EventType)
		return OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("unknown intent: %s", intent.intentName())
	}
}

func (s *ReconcileService) applyCheckoutCompleted(ctx context.Context, intent *CheckoutCompleted) (string, error) {
	sub, err := s.payment.RetrieveSubscription(ctx, intent.StripeSubscriptionID)
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{
		"stripe_subscription_id": sub.ID,
		"stripe_customer_id":     sub.CustomerID,
		"stripe_price_id":        sub.PriceID,
		"current_period_end":     sub.CurrentPeriodEnd,
		"status":                 model.StatusActive,
	}
	if err := s.subRepo.UpsertByUserID(intent.UserID, fields); err != nil {
		return "", err
	}

	plan := s.resolveTier(sub.PriceID, intent.IntentPlan)
	if err := s.identity.UpdateActivePlan(ctx, intent.UserID, plan); err != nil {
		return "", err
	}

	s.notifyPlanChange(ctx, intent.UserID, plan, model.StatusActive, "checkout.session.completed")
	return OutcomeProcessed, nil
}

func (s *ReconcileService) applyPaymentSucceeded(ctx context.Context, intent *PaymentSucceeded) (string, error) {
	sub, err := s.payment.RetrieveSubscription(ctx, intent.StripeSubscriptionID)
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{
		"stripe_price_id":    sub.PriceID,
		"current_period_end": sub.CurrentPeriodEnd,
	}
	rows, err := s.subRepo.UpdateFieldsByStripeID(sub.ID, fields)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		// 事件先于 checkout 落库到达，等 Stripe 重投后续事件自然收敛
		log.Printf("Orphan payment event for unknown subscription %s", sub.ID)
		return OutcomeOrphan, nil
	}

	ledger, err := s.subRepo.GetByStripeID(sub.ID)
	if err != nil {
		return "", err
	}

	plan := s.resolveTier(sub.PriceID, "")
	if err := s.identity.UpdateActivePlan(ctx, ledger.UserID, plan); err != nil {
		return "", err
	}

	s.notifyPlanChange(ctx, ledger.UserID, plan, ledger.Status, "invoice.payment_succeeded")
	return OutcomeProcessed, nil
}

func (s *ReconcileService) applyPeriodUpdated(ctx context.Context, intent *PeriodUpdated) (string, error) {
	rows, err := s.subRepo.UpdateFieldsByStripeID(intent.StripeSubscriptionID, map[string]interface{}{
		"current_period_end": intent.PeriodEnd,
	})
	if err != nil {
		return "", err
	}
	if rows == 0 {
		log.Printf("Orphan period update for unknown subscription %s", intent.StripeSubscriptionID)
		return OutcomeOrphan, nil
	}
	return OutcomeProcessed, nil
}

func (s *ReconcileService) applyCanceled(ctx context.Context, intent *SubscriptionCanceled) (string, error) {
	userID, found, err := s.subRepo.MarkCanceledByStripeID(intent.StripeSubscriptionID)
	if err != nil {
		return "", err
	}
	if !found {
		log.Printf("Orphan cancel for unknown subscription %s", intent.StripeSubscriptionID)
		return OutcomeOrphan, nil
	}

	if err := s.identity.UpdateActivePlan(ctx, userID, model.PlanFree); err != nil {
		return "", err
	}

	s.notifyPlanChange(ctx, userID, model.PlanFree, model.StatusCanceled, "customer.subscription.deleted")
	return OutcomeProcessed, nil
}

// resolveTier 确定套餐等级。以 Stripe 价格标识对应的配置为准；
// 事件自带的 intent_plan 只在价格未配置时兜底，避免信任客户端元数据。
func (s *ReconcileService) resolveTier(priceID, intentPlan string) string {
	if tier, ok := s.cfg.TierForPriceID(priceID); ok {
		return tier
	}
	if intentPlan != "" && s.cfg.IsValidTier(intentPlan) {
		log.Printf("Price %s not in plan map, falling back to event-declared plan %s", priceID, intentPlan)
		return intentPlan
	}
	log.Printf("Price %s not in plan map and no valid declared plan, defaulting to %s", priceID, model.PlanFree)
	return model.PlanFree
}

func (s *ReconcileService) notifyPlanChange(ctx context.Context, userID, plan, status, eventType string) {
	if s.notifier == nil {
		return
	}
	msg := &pubsub.PlanChangeMessage{
		Type:      "plan_changed",
		UserID:    userID,
		Plan:      plan,
		Status:    status,
		EventType: eventType,
	}
	if err := s.notifier.PublishPlanChange(ctx, msg); err != nil {
		log.Printf("Failed to publish plan change for user %s: %v", userID, err)
	}
}

func (s *ReconcileService) archivePayload(eventID string, payload []byte) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.ArchiveEventPayload(eventID, payload); err != nil {
		log.Printf("Failed to archive payload for event %s: %v", eventID, err)
	}
}

func (s *ReconcileService) markFailed(eventID string, cause error) {
	if err := s.eventRepo.MarkFailed(eventID, cause.Error()); err != nil {
		log.Printf("Failed to mark event %s failed: %v", eventID, err)
	}
}
