package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dispatchdesk/internal/logger"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// RunFunc 任务执行函数
type RunFunc func(ctx context.Context) error

// JobError 最近一次失败信息
type JobError struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// JobRecord 单个任务的运行元数据
type JobRecord struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	IsRunning    bool       `json:"is_running"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	SuccessCount uint64     `json:"success_count"`
	ErrorCount   uint64     `json:"error_count"`
	LastError    *JobError  `json:"last_error,omitempty"`
}

type jobEntry struct {
	record JobRecord
	run    RunFunc
}

// Registry 后台任务注册表。
// 同名任务不会并发重入：已在运行的任务再次触发直接跳过，计数不变。
type Registry struct {
	mu      sync.Mutex
	entries map[string]*jobEntry
	order   []string
}

// NewRegistry 创建任务注册表
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*jobEntry),
	}
}

// Register 注册任务，计数器从零开始
func (r *Registry) Register(name, schedule string, run RunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &jobEntry{
		record: JobRecord{Name: name, Schedule: schedule},
		run:    run,
	}
}

// Names 按注册顺序返回任务名
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Schedule 返回任务的调度表达式
func (r *Registry) Schedule(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return "", false
	}
	return entry.record.Schedule, true
}

// Run 执行任务。
// 返回 skipped=true 表示任务已在运行被跳过；任务自身的 panic 和
// 错误都在这里吸收并计入 errorCount，不向调度循环传播。
func (r *Registry) Run(ctx context.Context, name string) (skipped bool, err error) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return false, ErrJobNotFound
	}
	if entry.record.IsRunning {
		r.mu.Unlock()
		logger.Debugw("job_run_skipped", "job", name)
		return true, nil
	}
	entry.record.IsRunning = true
	run := entry.run
	r.mu.Unlock()

	started := time.Now()
	runErr := invoke(ctx, run)

	r.mu.Lock()
	defer r.mu.Unlock()
	entry.record.IsRunning = false
	entry.record.LastRunAt = &started
	if runErr != nil {
		entry.record.ErrorCount++
		entry.record.LastError = &JobError{Message: runErr.Error(), At: time.Now()}
		logger.Errorw("job_run_failed",
			"job", name,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", runErr.Error(),
		)
		return false, runErr
	}
	entry.record.SuccessCount++
	logger.Infow("job_run_succeeded",
		"job", name,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return false, nil
}

// Snapshot 按注册顺序返回所有任务记录的副本
func (r *Registry) Snapshot() []JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]JobRecord, 0, len(r.order))
	for _, name := range r.order {
		entry := r.entries[name]
		record := entry.record
		if record.LastRunAt != nil {
			at := *record.LastRunAt
			record.LastRunAt = &at
		}
		if record.LastError != nil {
			lastErr := *record.LastError
			record.LastError = &lastErr
		}
		records = append(records, record)
	}
	return records
}

// Get 返回单个任务记录的副本
func (r *Registry) Get(name string) (JobRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return JobRecord{}, false
	}
	return entry.record, ok
}

func invoke(ctx context.Context, run RunFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return run(ctx)
}
