package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dispatchdesk/internal/cache"
	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/repository"
)

// HealthSnapshot 健康检查结果
type HealthSnapshot struct {
	Status    string    `json:"status"`
	Issues    []string  `json:"issues"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthCheckJob 检查存储连通性与基础数据不变式。
// 检查出的问题写入快照，不中断其他任务。
type HealthCheckJob struct {
	dashboardRepo repository.DashboardRepository
	deliveryRepo  repository.DeliveryRepository

	mu     sync.Mutex
	latest *HealthSnapshot
}

// NewHealthCheckJob 创建健康检查任务
func NewHealthCheckJob(dashboardRepo repository.DashboardRepository, deliveryRepo repository.DeliveryRepository) *HealthCheckJob {
	return &HealthCheckJob{
		dashboardRepo: dashboardRepo,
		deliveryRepo:  deliveryRepo,
	}
}

// Run 执行一轮健康检查
func (j *HealthCheckJob) Run(ctx context.Context) error {
	issues := make([]string, 0, 4)
	dbDown := false

	if err := j.dashboardRepo.Ping(ctx); err != nil {
		dbDown = true
		issues = append(issues, fmt.Sprintf("database unreachable: %v", err))
	}

	if err := cache.Ping(ctx); err != nil {
		issues = append(issues, fmt.Sprintf("redis unreachable: %v", err))
	}

	if !dbDown {
		orphaned, err := j.deliveryRepo.CountOrphanedDelivererRefs()
		if err != nil {
			return err
		}
		if orphaned > 0 {
			issues = append(issues, fmt.Sprintf("%d deliveries reference missing deliverers", orphaned))
		}

		unassigned, err := j.deliveryRepo.CountActiveWithoutDeliverer()
		if err != nil {
			return err
		}
		if unassigned > 0 {
			issues = append(issues, fmt.Sprintf("%d in-transit or delivered deliveries have no deliverer", unassigned))
		}

		idleBusy, err := j.dashboardRepo.CountBusyWithoutActiveDelivery()
		if err != nil {
			return err
		}
		if idleBusy > 0 {
			issues = append(issues, fmt.Sprintf("%d busy deliverers have no active delivery", idleBusy))
		}
	}

	status := constants.HealthStatusHealthy
	switch {
	case dbDown:
		status = constants.HealthStatusUnhealthy
	case len(issues) > 0:
		status = constants.HealthStatusDegraded
	}

	snapshot := &HealthSnapshot{
		Status:    status,
		Issues:    issues,
		CheckedAt: time.Now(),
	}
	j.mu.Lock()
	j.latest = snapshot
	j.mu.Unlock()

	if status != constants.HealthStatusHealthy {
		logger.Warnw("health_check_issues",
			"status", status,
			"issues", issues,
		)
	}
	return nil
}

// Latest 返回最近一次健康快照的副本，尚未运行时返回 nil
func (j *HealthCheckJob) Latest() *HealthSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.latest == nil {
		return nil
	}
	snapshot := *j.latest
	snapshot.Issues = append([]string(nil), j.latest.Issues...)
	return &snapshot
}
