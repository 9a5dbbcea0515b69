package jobs

import (
	"context"
	"time"

	"github.com/dispatchdesk/internal/repository"
)

// Dashboard 运维看板快照，每次请求现算，不做缓存
type Dashboard struct {
	GeneratedAt          time.Time            `json:"generated_at"`
	SchedulerRunning     bool                 `json:"scheduler_running"`
	Jobs                 []JobRecord          `json:"jobs"`
	Health               *HealthSnapshot      `json:"health,omitempty"`
	Performance          *PerformanceSnapshot `json:"performance,omitempty"`
	Overdue              *OverdueSnapshot     `json:"overdue,omitempty"`
	DeliveriesByStatus   map[string]int64     `json:"deliveries_by_status"`
	DeliverersByStatus   map[string]int64     `json:"deliverers_by_status"`
	PendingNotifications int64                `json:"pending_notifications"`
}

// DashboardService 聚合任务注册表、监控快照与实体统计
type DashboardService struct {
	registry      *Registry
	scheduler     *Scheduler
	healthJob     *HealthCheckJob
	perfJob       *PerformanceMonitorJob
	overdueJob    *OverdueScanJob
	dashboardRepo repository.DashboardRepository
}

// NewDashboardService 创建看板服务
func NewDashboardService(
	registry *Registry,
	scheduler *Scheduler,
	healthJob *HealthCheckJob,
	perfJob *PerformanceMonitorJob,
	overdueJob *OverdueScanJob,
	dashboardRepo repository.DashboardRepository,
) *DashboardService {
	return &DashboardService{
		registry:      registry,
		scheduler:     scheduler,
		healthJob:     healthJob,
		perfJob:       perfJob,
		overdueJob:    overdueJob,
		dashboardRepo: dashboardRepo,
	}
}

// GetDashboard 组装一份实时看板
func (s *DashboardService) GetDashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.dashboardRepo.GetEntityCounts()
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		GeneratedAt:          time.Now(),
		SchedulerRunning:     s.scheduler.IsRunning(),
		Jobs:                 s.registry.Snapshot(),
		Health:               s.healthJob.Latest(),
		Performance:          s.perfJob.Latest(),
		Overdue:              s.overdueJob.Latest(),
		DeliveriesByStatus:   counts.DeliveriesByStatus,
		DeliverersByStatus:   counts.DeliverersByStatus,
		PendingNotifications: counts.PendingNotifications,
	}, nil
}
