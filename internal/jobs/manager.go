package jobs

import (
	"context"

	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

var defaultSchedules = map[string]string{
	constants.JobHealthCheck:          "*/5 * * * *",
	constants.JobPerformanceMonitor:   "*/5 * * * *",
	constants.JobOverdueScan:          "*/15 * * * *",
	constants.JobNotificationDispatch: "* * * * *",
	constants.JobDataCleanup:          "0 3 * * *",
}

// Manager 组装任务注册表、调度器与看板
type Manager struct {
	Registry  *Registry
	Scheduler *Scheduler
	Dashboard *DashboardService

	autoStart bool
}

// ManagerDeps 任务依赖集合
type ManagerDeps struct {
	DeliveryRepo        repository.DeliveryRepository
	NotificationRepo    repository.NotificationRepository
	DashboardRepo       repository.DashboardRepository
	NotificationService *service.NotificationService
	SettingService      *service.SettingService
}

// NewManager 注册全部后台任务并创建调度器
func NewManager(cfg *config.JobsConfig, deps ManagerDeps) *Manager {
	registry := NewRegistry()

	healthJob := NewHealthCheckJob(deps.DashboardRepo, deps.DeliveryRepo)
	perfJob := NewPerformanceMonitorJob(deps.DashboardRepo, deps.NotificationRepo, cfg.PerformanceGoroutines)
	overdueJob := NewOverdueScanJob(deps.DeliveryRepo, deps.SettingService)
	dispatchJob := NewNotificationDispatchJob(deps.NotificationService, deps.SettingService)
	cleanupJob := NewCleanupJob(deps.DeliveryRepo, deps.NotificationRepo, deps.SettingService)

	registry.Register(constants.JobHealthCheck, scheduleFor(cfg, constants.JobHealthCheck), healthJob.Run)
	registry.Register(constants.JobPerformanceMonitor, scheduleFor(cfg, constants.JobPerformanceMonitor), perfJob.Run)
	registry.Register(constants.JobOverdueScan, scheduleFor(cfg, constants.JobOverdueScan), overdueJob.Run)
	registry.Register(constants.JobNotificationDispatch, scheduleFor(cfg, constants.JobNotificationDispatch), dispatchJob.Run)
	registry.Register(constants.JobDataCleanup, scheduleFor(cfg, constants.JobDataCleanup), cleanupJob.Run)

	scheduler := NewScheduler(registry)
	dashboard := NewDashboardService(registry, scheduler, healthJob, perfJob, overdueJob, deps.DashboardRepo)

	return &Manager{
		Registry:  registry,
		Scheduler: scheduler,
		Dashboard: dashboard,
		autoStart: cfg == nil || cfg.AutoStart,
	}
}

// Name 实现 app.Service
func (m *Manager) Name() string {
	return "job-scheduler"
}

// Start 实现 app.Service，按配置决定是否自动开启调度。
// 调度在后台进行，这里阻塞到上下文结束，交由 Runner 统一收尾。
func (m *Manager) Start(ctx context.Context) error {
	if m.autoStart {
		if err := m.Scheduler.StartAll(); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

// Stop 实现 app.Service
func (m *Manager) Stop(ctx context.Context) error {
	m.Scheduler.StopAll()
	return nil
}

func scheduleFor(cfg *config.JobsConfig, name string) string {
	if cfg != nil {
		if schedule, ok := cfg.Schedules[name]; ok && schedule != "" {
			return schedule
		}
	}
	return defaultSchedules[name]
}
