package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/billing_go_server/internal/service"
)

// Stripe 单个事件报文不会超过 64KB
const maxWebhookBody = int64(65536)

type WebhookHandler struct {
	reconcileService *service.ReconcileService
}

func NewWebhookHandler(reconcileService *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
	}
}

// HandleStripe 接收 Stripe webhook 投递
// POST /api/v1/webhooks/stripe
//
// 该端点不走统一响应封装：Stripe 按 HTTP 状态码决定是否重投，
// 验签失败回 400 终止，下游故障回 500 触发至少一次重投。
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	result, err := h.reconcileService.HandleEvent(c.Request.Context(), payload, sigHeader)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) || errors.Is(err, service.ErrMalformedEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"outcome":  result.Outcome,
	})
}
