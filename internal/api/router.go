package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/api/handler"
	"github.com/qs3c/billing_go_server/internal/api/middleware"
)

type Router struct {
	webhookHandler      *handler.WebhookHandler
	subscriptionHandler *handler.SubscriptionHandler
	websocketHandler    *handler.WebSocketHandler
	cfg                 *config.Config
}

func NewRouter(
	webhookHandler *handler.WebhookHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		webhookHandler:      webhookHandler,
		subscriptionHandler: subscriptionHandler,
		websocketHandler:    websocketHandler,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// Webhook 入口（Stripe 签名认证，不走 JWT）
		api.POST("/webhooks/stripe", r.webhookHandler.HandleStripe)

		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 需要认证的接口
		user := api.Group("/user")
		user.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			user.GET("/subscription", r.subscriptionHandler.Get)
		}
	}

	return engine
}
