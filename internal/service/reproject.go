package service

import (
	"context"
	"errors"
	"log"

	"github.com/qs3c/billing_go_server/internal/model"
	"github.com/qs3c/billing_go_server/internal/pkg/identity"
)

// PlanDrift 投影与台账推导结果不一致的用户
type PlanDrift struct {
	UserID   string
	Current  string
	Expected string
	Fixed    bool
}

// ReprojectAll 用台账全量重建 active_plan 投影。台账写入和投影更新之间
// 崩溃会留下落后的投影，该过程让其重新收敛。dryRun 时只报告不修复。
func (s *ReconcileService) ReprojectAll(ctx context.Context, dryRun bool) ([]PlanDrift, error) {
	subs, err := s.subRepo.FindAll()
	if err != nil {
		return nil, err
	}

	var drifts []PlanDrift
	for _, sub := range subs {
		expected := s.expectedTier(&sub)

		user, err := s.identity.GetUser(ctx, sub.UserID)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				log.Printf("Ledger row %d references missing user %s", sub.ID, sub.UserID)
				continue
			}
			return drifts, err
		}

		if user.ActivePlan == expected {
			continue
		}

		drift := PlanDrift{
			UserID:   sub.UserID,
			Current:  user.ActivePlan,
			Expected: expected,
		}
		if !dryRun {
			if err := s.identity.UpdateActivePlan(ctx, sub.UserID, expected); err != nil {
				return append(drifts, drift), err
			}
			drift.Fixed = true
		}
		drifts = append(drifts, drift)
	}

	return drifts, nil
}

// ReprojectUser 重建单个用户的投影
func (s *ReconcileService) ReprojectUser(ctx context.Context, userID string, dryRun bool) (*PlanDrift, error) {
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	expected := s.expectedTier(sub)
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ActivePlan == expected {
		return nil, nil
	}

	drift := &PlanDrift{UserID: userID, Current: user.ActivePlan, Expected: expected}
	if !dryRun {
		if err := s.identity.UpdateActivePlan(ctx, userID, expected); err != nil {
			return drift, err
		}
		drift.Fixed = true
	}
	return drift, nil
}

// expectedTier 从台账行推导应有的套餐等级
func (s *ReconcileService) expectedTier(sub *model.Subscription) string {
	switch sub.Status {
	case model.StatusCanceled, model.StatusIncompleteExpired, model.StatusUnpaid:
		return model.PlanFree
	default:
		return s.resolveTier(sub.StripePriceID, "")
	}
}
