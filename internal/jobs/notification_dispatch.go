package jobs

import (
	"context"

	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/service"
)

// NotificationDispatchJob 批量派发待处理通知
type NotificationDispatchJob struct {
	notificationService *service.NotificationService
	settingService      *service.SettingService
}

// NewNotificationDispatchJob 创建通知派发任务
func NewNotificationDispatchJob(notificationService *service.NotificationService, settingService *service.SettingService) *NotificationDispatchJob {
	return &NotificationDispatchJob{
		notificationService: notificationService,
		settingService:      settingService,
	}
}

// Run 执行一轮通知派发
func (j *NotificationDispatchJob) Run(ctx context.Context) error {
	policy, err := j.settingService.GetJobPolicy()
	if err != nil {
		return err
	}

	result, err := j.notificationService.DispatchPending(policy.NotificationBatchSize, policy.NotificationMaxAttempts)
	if err != nil {
		return err
	}

	if result.Picked > 0 {
		logger.Infow("notification_dispatch_result",
			"picked", result.Picked,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"exhausted", result.Exhausted,
		)
	}
	return nil
}
