package jobs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/repository"
)

// PerformanceSnapshot 性能采样结果
type PerformanceSnapshot struct {
	DBLatencyMS          int64     `json:"db_latency_ms"`
	Goroutines           int       `json:"goroutines"`
	HeapAllocMB          uint64    `json:"heap_alloc_mb"`
	PendingNotifications int64     `json:"pending_notifications"`
	Warnings             []string  `json:"warnings"`
	SampledAt            time.Time `json:"sampled_at"`
}

// PerformanceMonitorJob 采样数据库延迟、goroutine 数与通知积压
type PerformanceMonitorJob struct {
	dashboardRepo    repository.DashboardRepository
	notificationRepo repository.NotificationRepository
	thresholds       config.PerfThresholdConfig

	mu     sync.Mutex
	latest *PerformanceSnapshot
}

// NewPerformanceMonitorJob 创建性能监控任务
func NewPerformanceMonitorJob(
	dashboardRepo repository.DashboardRepository,
	notificationRepo repository.NotificationRepository,
	thresholds config.PerfThresholdConfig,
) *PerformanceMonitorJob {
	return &PerformanceMonitorJob{
		dashboardRepo:    dashboardRepo,
		notificationRepo: notificationRepo,
		thresholds:       thresholds,
	}
}

// Run 执行一轮性能采样
func (j *PerformanceMonitorJob) Run(ctx context.Context) error {
	warnings := make([]string, 0, 3)

	started := time.Now()
	if err := j.dashboardRepo.Ping(ctx); err != nil {
		return err
	}
	latencyMS := time.Since(started).Milliseconds()

	pending, err := j.notificationRepo.CountPending()
	if err != nil {
		return err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()

	if j.thresholds.DBLatencyWarnMS > 0 && latencyMS > int64(j.thresholds.DBLatencyWarnMS) {
		warnings = append(warnings, fmt.Sprintf("db latency %dms exceeds %dms", latencyMS, j.thresholds.DBLatencyWarnMS))
	}
	if j.thresholds.QueueDepthWarn > 0 && pending > int64(j.thresholds.QueueDepthWarn) {
		warnings = append(warnings, fmt.Sprintf("%d pending notifications exceed %d", pending, j.thresholds.QueueDepthWarn))
	}
	if j.thresholds.GoroutineCountWarn > 0 && goroutines > j.thresholds.GoroutineCountWarn {
		warnings = append(warnings, fmt.Sprintf("%d goroutines exceed %d", goroutines, j.thresholds.GoroutineCountWarn))
	}

	snapshot := &PerformanceSnapshot{
		DBLatencyMS:          latencyMS,
		Goroutines:           goroutines,
		HeapAllocMB:          mem.HeapAlloc / 1024 / 1024,
		PendingNotifications: pending,
		Warnings:             warnings,
		SampledAt:            time.Now(),
	}
	j.mu.Lock()
	j.latest = snapshot
	j.mu.Unlock()

	if len(warnings) > 0 {
		logger.Warnw("performance_warnings", "warnings", warnings)
	}
	return nil
}

// Latest 返回最近一次性能快照的副本，尚未运行时返回 nil
func (j *PerformanceMonitorJob) Latest() *PerformanceSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.latest == nil {
		return nil
	}
	snapshot := *j.latest
	snapshot.Warnings = append([]string(nil), j.latest.Warnings...)
	return &snapshot
}
