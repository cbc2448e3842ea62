package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/billing_go_server/internal/model"
	"github.com/qs3c/billing_go_server/internal/testutil"
)

func TestReprojectAll_FixesDrift(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	// user_a 投影落后（台账 pro，投影 free），user_b 一致
	testutil.TestSubscription(t, f.db, "user_a", testutil.WithPriceID("price_pro_monthly"))
	testutil.TestSubscription(t, f.db, "user_b", testutil.WithPriceID("price_basic_monthly"))
	f.identity.plans["user_a"] = "free"
	f.identity.plans["user_b"] = "basic"

	drifts, err := f.service.ReprojectAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "user_a", drifts[0].UserID)
	assert.Equal(t, "free", drifts[0].Current)
	assert.Equal(t, "pro", drifts[0].Expected)
	assert.True(t, drifts[0].Fixed)
	assert.Equal(t, "pro", f.identity.plans["user_a"])
}

func TestReprojectAll_DryRun(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	testutil.TestSubscription(t, f.db, "user_a", testutil.WithPriceID("price_pro_monthly"))
	f.identity.plans["user_a"] = "free"

	drifts, err := f.service.ReprojectAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.False(t, drifts[0].Fixed)
	assert.Equal(t, "free", f.identity.plans["user_a"])
}

func TestReprojectAll_CanceledExpectsFree(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	// 取消事件丢失后的典型漂移：台账 canceled，投影还停在 pro
	testutil.TestSubscription(t, f.db, "user_a",
		testutil.WithPriceID("price_pro_monthly"),
		testutil.WithStatus(model.StatusCanceled))
	f.identity.plans["user_a"] = "pro"

	drifts, err := f.service.ReprojectAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, model.PlanFree, drifts[0].Expected)
	assert.Equal(t, model.PlanFree, f.identity.plans["user_a"])
}

func TestReprojectAll_SkipsMissingUsers(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	// 台账行指向已删除的用户：跳过，不视为错误
	testutil.TestSubscription(t, f.db, "user_gone", testutil.WithPriceID("price_pro_monthly"))

	drifts, err := f.service.ReprojectAll(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReprojectUser(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	testutil.TestSubscription(t, f.db, "user_a", testutil.WithPriceID("price_basic_monthly"))
	f.identity.plans["user_a"] = "pro"

	drift, err := f.service.ReprojectUser(context.Background(), "user_a", false)
	require.NoError(t, err)
	require.NotNil(t, drift)
	assert.Equal(t, "basic", drift.Expected)
	assert.True(t, drift.Fixed)
	assert.Equal(t, "basic", f.identity.plans["user_a"])
}

func TestReprojectUser_Consistent(t *testing.T) {
	f, cleanup := setupReconcileService(t)
	defer cleanup()

	testutil.TestSubscription(t, f.db, "user_a", testutil.WithPriceID("price_pro_monthly"))
	f.identity.plans["user_a"] = "pro"

	drift, err := f.service.ReprojectUser(context.Background(), "user_a", false)
	require.NoError(t, err)
	assert.Nil(t, drift)
}
