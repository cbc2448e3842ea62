package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/api/middleware"
	"github.com/qs3c/billing_go_server/internal/model"
	"github.com/qs3c/billing_go_server/internal/pkg/response"
	"github.com/qs3c/billing_go_server/internal/repository"
	"github.com/qs3c/billing_go_server/internal/service"
	"github.com/qs3c/billing_go_server/internal/testutil"
)

// mockAuth 模拟认证中间件
func mockAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func setupSubscriptionHandler(t *testing.T) (*SubscriptionHandler, *testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	subRepo := repository.NewSubscriptionRepository(db)
	stubID := &stubIdentity{plans: map[string]string{}}

	cfg := &config.Config{
		Stripe: config.StripeConfig{
			PortalURL: "https://billing.stripe.com/p/login/test_abc",
		},
		Plans: map[string]config.PlanConfig{
			"pro": {PriceID: "price_pro_monthly", DisplayName: "Pro"},
		},
	}

	subscriptionService := service.NewSubscriptionService(subRepo, stubID, cfg)
	handler := NewSubscriptionHandler(subscriptionService)

	ctx := &testContext{DB: db, Identity: stubID}
	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return handler, ctx, cleanup
}

func TestSubscriptionHandler_Get_PaidUser(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	ctx.Identity.plans["user_abc"] = "pro"
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	testutil.TestSubscription(t, ctx.DB, "user_abc",
		testutil.WithPriceID("price_pro_monthly"),
		testutil.WithPeriodEnd(end))

	router := gin.New()
	router.Use(mockAuth("user_abc"))
	router.GET("/subscription", handler.Get)

	req := httptest.NewRequest("GET", "/subscription", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pro", data["plan"])
	assert.Equal(t, "Pro", data["plan_name"])
	assert.Equal(t, model.StatusActive, data["status"])
	assert.Equal(t, "2026-02-01T00:00:00Z", data["current_period_end"])
}

func TestSubscriptionHandler_Get_FreeUser(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	ctx.Identity.plans["user_free"] = "free"

	router := gin.New()
	router.Use(mockAuth("user_free"))
	router.GET("/subscription", handler.Get)

	req := httptest.NewRequest("GET", "/subscription", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, model.PlanFree, data["plan"])
}

func TestSubscriptionHandler_Get_Unauthorized(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	// No auth middleware
	router.GET("/subscription", handler.Get)

	req := httptest.NewRequest("GET", "/subscription", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
