package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dispatchdesk/internal/http/response"
	"github.com/dispatchdesk/internal/jobs"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

// GetJobsDashboard 运维看板：任务记录、健康状态、性能采样与实体计数
func (h *Handler) GetJobsDashboard(c *gin.Context) {
	dashboard, err := h.JobManager.Dashboard.GetDashboard(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "failed to build dashboard", err)
		return
	}
	response.Success(c, dashboard)
}

// GetJobs 任务记录列表
func (h *Handler) GetJobs(c *gin.Context) {
	response.Success(c, gin.H{
		"scheduler_running": h.JobManager.Scheduler.IsRunning(),
		"jobs":              h.JobManager.Registry.Snapshot(),
	})
}

// RunJob 手动触发单个任务，调度器停止时同样可用
func (h *Handler) RunJob(c *gin.Context) {
	jobName := strings.TrimSpace(c.Param("jobName"))
	if jobName == "" {
		respondError(c, response.CodeBadRequest, "job name is required", nil)
		return
	}

	skipped, err := h.JobManager.Scheduler.RunJob(c.Request.Context(), jobName)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(c, response.CodeNotFound, "job not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "job run failed", err)
		return
	}

	record, _ := h.JobManager.Registry.Get(jobName)
	response.Success(c, gin.H{
		"job":     jobName,
		"skipped": skipped,
		"record":  record,
	})
}

// StartJobs 开启定时调度
func (h *Handler) StartJobs(c *gin.Context) {
	if err := h.JobManager.Scheduler.StartAll(); err != nil {
		respondError(c, response.CodeInternal, "failed to start scheduler", err)
		return
	}
	response.SuccessWithMsg(c, "scheduler started", gin.H{
		"scheduler_running": h.JobManager.Scheduler.IsRunning(),
	})
}

// StopJobs 停止定时调度，不影响手动触发
func (h *Handler) StopJobs(c *gin.Context) {
	h.JobManager.Scheduler.StopAll()
	response.SuccessWithMsg(c, "scheduler stopped", gin.H{
		"scheduler_running": h.JobManager.Scheduler.IsRunning(),
	})
}

// GetJobPolicy 查询后台任务运行参数
func (h *Handler) GetJobPolicy(c *gin.Context) {
	policy, err := h.SettingService.GetJobPolicy()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load job policy", err)
		return
	}
	response.Success(c, policy)
}

// UpdateJobPolicyRequest 更新任务运行参数请求
type UpdateJobPolicyRequest struct {
	OverdueCriticalHours    int `json:"overdue_critical_hours" binding:"required"`
	NotificationBatchSize   int `json:"notification_batch_size" binding:"required"`
	NotificationMaxAttempts int `json:"notification_max_attempts" binding:"required"`
	CleanupRetentionDays    int `json:"cleanup_retention_days" binding:"required"`
}

// UpdateJobPolicy 更新任务运行参数，立即对后续任务生效
func (h *Handler) UpdateJobPolicy(c *gin.Context) {
	var req UpdateJobPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	policy := service.JobPolicy{
		OverdueCriticalHours:    req.OverdueCriticalHours,
		NotificationBatchSize:   req.NotificationBatchSize,
		NotificationMaxAttempts: req.NotificationMaxAttempts,
		CleanupRetentionDays:    req.CleanupRetentionDays,
	}
	if err := h.SettingService.UpdateJobPolicy(policy); err != nil {
		if errors.Is(err, service.ErrJobPolicyInvalid) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to update job policy", err)
		return
	}
	response.Success(c, policy)
}

// GetNotifications 通知事件列表
func (h *Handler) GetNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	notifications, total, err := h.NotificationService.List(repository.NotificationListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Channel:  strings.TrimSpace(c.Query("channel")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list notifications", err)
		return
	}
	response.SuccessWithPage(c, notifications, response.NewPagination(page, pageSize, total))
}

// DispatchNotifications 手动触发一轮通知派发
func (h *Handler) DispatchNotifications(c *gin.Context) {
	policy, err := h.SettingService.GetJobPolicy()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load job policy", err)
		return
	}
	result, err := h.NotificationService.DispatchPending(policy.NotificationBatchSize, policy.NotificationMaxAttempts)
	if err != nil {
		respondError(c, response.CodeInternal, "notification dispatch failed", err)
		return
	}
	response.Success(c, result)
}
