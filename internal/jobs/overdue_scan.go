package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

// OverdueSnapshot 超时扫描结果
type OverdueSnapshot struct {
	InTransit         int       `json:"in_transit"`
	Overdue           int       `json:"overdue"`
	CriticallyOverdue int       `json:"critically_overdue"`
	CriticalHours     int       `json:"critical_hours"`
	ScannedAt         time.Time `json:"scanned_at"`
}

// OverdueScanJob 扫描在途配送单并按预计送达时间分桶。
// 只统计不改状态，取消等处置留给人工操作。
type OverdueScanJob struct {
	deliveryRepo   repository.DeliveryRepository
	settingService *service.SettingService

	mu     sync.Mutex
	latest *OverdueSnapshot
}

// NewOverdueScanJob 创建超时扫描任务
func NewOverdueScanJob(deliveryRepo repository.DeliveryRepository, settingService *service.SettingService) *OverdueScanJob {
	return &OverdueScanJob{
		deliveryRepo:   deliveryRepo,
		settingService: settingService,
	}
}

// Run 执行一轮超时扫描
func (j *OverdueScanJob) Run(ctx context.Context) error {
	policy, err := j.settingService.GetJobPolicy()
	if err != nil {
		return err
	}

	inTransit, err := j.deliveryRepo.ListInTransit()
	if err != nil {
		return err
	}

	now := time.Now()
	criticalCutoff := time.Duration(policy.OverdueCriticalHours) * time.Hour
	overdue := 0
	critical := 0
	for i := range inTransit {
		estimate := inTransit[i].EstimatedDeliveryAt
		if !estimate.Before(now) {
			continue
		}
		overdue++
		if now.Sub(estimate) > criticalCutoff {
			critical++
			logger.Warnw("delivery_critically_overdue",
				"delivery_id", inTransit[i].ID,
				"order_no", inTransit[i].OrderNo,
				"estimated_delivery_at", estimate,
				"overdue_hours", int(now.Sub(estimate).Hours()),
			)
		}
	}

	snapshot := &OverdueSnapshot{
		InTransit:         len(inTransit),
		Overdue:           overdue,
		CriticallyOverdue: critical,
		CriticalHours:     policy.OverdueCriticalHours,
		ScannedAt:         now,
	}
	j.mu.Lock()
	j.latest = snapshot
	j.mu.Unlock()

	if overdue > 0 {
		logger.Warnw("overdue_scan_result",
			"in_transit", len(inTransit),
			"overdue", overdue,
			"critically_overdue", critical,
		)
	}
	return nil
}

// Latest 返回最近一次扫描快照的副本，尚未运行时返回 nil
func (j *OverdueScanJob) Latest() *OverdueSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.latest == nil {
		return nil
	}
	snapshot := *j.latest
	return &snapshot
}
