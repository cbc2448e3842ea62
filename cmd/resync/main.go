package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/qs3c/billing_go_server/config"
	"github.com/qs3c/billing_go_server/internal/database"
	"github.com/qs3c/billing_go_server/internal/pkg/identity"
	"github.com/qs3c/billing_go_server/internal/repository"
	"github.com/qs3c/billing_go_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Dry run mode, report drift without fixing")
	userID  = flag.String("user", "", "Only reproject the specified user")
	timeout = flag.Int("timeout", 10, "Minutes before the run is aborted")
)

func main() {
	flag.Parse()

	log.Println("🔄 Starting projection resync...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	identityClient := identity.NewClient(&cfg.Identity)

	// 投影修复只读台账和身份库，不需要支付客户端和推送
	reconcileService := service.NewReconcileService(
		subscriptionRepo,
		webhookEventRepo,
		nil,
		identityClient,
		nil,
		nil,
		cfg,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Minute)
	defer cancel()

	if *userID != "" {
		drift, err := reconcileService.ReprojectUser(ctx, *userID, *dryRun)
		if err != nil {
			log.Fatalf("Failed to reproject user %s: %v", *userID, err)
		}
		if drift == nil {
			log.Printf("✅ User %s projection is consistent", *userID)
			return
		}
		reportDrift(*drift)
		return
	}

	drifts, err := reconcileService.ReprojectAll(ctx, *dryRun)
	if err != nil {
		log.Fatalf("Resync failed after %d drifts: %v", len(drifts), err)
	}

	for _, d := range drifts {
		reportDrift(d)
	}

	log.Println("\n📈 Resync summary:")
	log.Printf("  Drifted users: %d", len(drifts))
	if *dryRun {
		log.Println("  (dry-run mode, nothing was fixed)")
	}
	log.Println("✅ Resync completed")
}

func reportDrift(d service.PlanDrift) {
	action := "would fix"
	if d.Fixed {
		action = "fixed"
	}
	log.Printf("  Drift: user=%s current=%s expected=%s (%s)", d.UserID, d.Current, d.Expected, action)
}
