package jobs

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dispatchdesk/internal/logger"
)

// Scheduler 按 cron 表达式驱动注册表中的任务。
// StartAll/StopAll 只控制定时触发；手动 Run 不受主开关影响。
type Scheduler struct {
	registry *Registry

	mu      sync.Mutex
	cron    *cron.Cron
	ids     map[string]cron.EntryID
	running bool
}

// NewScheduler 创建调度器
func NewScheduler(registry *Registry) *Scheduler {
	return &Scheduler{
		registry: registry,
		cron:     cron.New(),
		ids:      make(map[string]cron.EntryID),
	}
}

// StartAll 打开主开关并按各任务的调度表达式安排定时触发
func (s *Scheduler) StartAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	for _, name := range s.registry.Names() {
		if _, ok := s.ids[name]; ok {
			continue
		}
		schedule, ok := s.registry.Schedule(name)
		if !ok || schedule == "" {
			continue
		}
		jobName := name
		id, err := s.cron.AddFunc(schedule, func() {
			if _, err := s.registry.Run(context.Background(), jobName); err != nil {
				// 错误已在注册表记录，调度循环不中断
				logger.Debugw("job_scheduled_run_error", "job", jobName, "error", err.Error())
			}
		})
		if err != nil {
			logger.Errorw("job_schedule_invalid",
				"job", jobName,
				"schedule", schedule,
				"error", err.Error(),
			)
			continue
		}
		s.ids[jobName] = id
	}

	s.cron.Start()
	s.running = true
	logger.Infow("scheduler_started", "jobs", len(s.ids))
	return nil
}

// StopAll 关闭主开关，定时触发停止；正在执行的任务跑完当前一轮
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	logger.Infow("scheduler_stopped")
}

// IsRunning 返回主开关状态
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunJob 立即执行任务，无视调度与主开关状态
func (s *Scheduler) RunJob(ctx context.Context, name string) (skipped bool, err error) {
	return s.registry.Run(ctx, name)
}
