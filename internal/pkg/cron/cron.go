package cron

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/billing_go_server/internal/service"
)

// Service 周期性投影修复。台账写入和投影更新之间崩溃会留下落后的投影，
// 定期用台账重建一次保证最终收敛。
type Service struct {
	reconcileService *service.ReconcileService
	interval         time.Duration
	stopChan         chan struct{}
}

func NewService(reconcileService *service.ReconcileService, intervalHours int) *Service {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &Service{
		reconcileService: reconcileService,
		interval:         time.Duration(intervalHours) * time.Hour,
		stopChan:         make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runProjectionRepair()
	log.Println("Cron service started (projection repair)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

func (s *Service) runProjectionRepair() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.repairProjections()
		}
	}
}

func (s *Service) repairProjections() {
	log.Println("Starting projection repair sweep...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	drifts, err := s.reconcileService.ReprojectAll(ctx, false)
	if err != nil {
		log.Printf("Projection repair failed: %v", err)
		return
	}

	if len(drifts) == 0 {
		log.Println("Projection repair completed, no drift found")
		return
	}
	for _, d := range drifts {
		log.Printf("Repaired projection for user %s: %s -> %s", d.UserID, d.Current, d.Expected)
	}
	log.Printf("Projection repair completed, %d projections fixed", len(drifts))
}
