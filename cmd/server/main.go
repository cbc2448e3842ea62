package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/api"
	"github.com/qs3c/billing_go_server/internal/api/handler"
	"github.com/qs3c/billing_go_server/internal/database"
	"github.com/qs3c/billing_go_server/internal/model/dto"
	"github.com/qs3c/billing_go_server/internal/pkg/cron"
	"github.com/qs3c/billing_go_server/internal/pkg/identity"
	"github.com/qs3c/billing_go_server/internal/pkg/oss"
	"github.com/qs3c/billing_go_server/internal/pkg/payment"
	"github.com/qs3c/billing_go_server/internal/pkg/pubsub"
	"github.com/qs3c/billing_go_server/internal/pkg/ws"
	"github.com/qs3c/billing_go_server/internal/repository"
	"github.com/qs3c/billing_go_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化外部客户端
	paymentClient := payment.NewClient(&cfg.Stripe)
	identityClient := identity.NewClient(&cfg.Identity)

	// 初始化 OSS 报文归档（可选）
	var archiver *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		archiver, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS archiver initialized")
		}
	}

	// 初始化 Pub/Sub 和 WebSocket Hub
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	wsHub := ws.NewHub()

	// 把套餐变更消息转发给在线用户
	go func() {
		err := subscriber.Run(context.Background(), func(msg *pubsub.PlanChangeMessage) {
			notice := &ws.Message{
				Type: msg.Type,
				Data: &dto.PlanChangeNotice{Plan: msg.Plan, Status: msg.Status},
			}
			if err := wsHub.SendToUser(msg.UserID, notice); err != nil {
				log.Printf("Failed to push plan change to user %s: %v", msg.UserID, err)
			}
		})
		if err != nil && err != context.Canceled {
			log.Printf("Plan change subscriber stopped: %v", err)
		}
	}()
	log.Println("Plan change subscriber started")

	// 初始化 Repository
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	// 初始化 Service
	reconcileService := service.NewReconcileService(
		subscriptionRepo,
		webhookEventRepo,
		paymentClient,
		identityClient,
		publisher,
		archiver,
		cfg,
	)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, identityClient, cfg)

	// 启动投影修复定时任务
	cronService := cron.NewService(reconcileService, cfg.Resync.IntervalHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	webhookHandler := handler.NewWebhookHandler(reconcileService)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(webhookHandler, subscriptionHandler, websocketHandler, cfg)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
