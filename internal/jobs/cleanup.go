package jobs

import (
	"context"
	"time"

	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

// CleanupJob 清理超过保留期的终态配送单与已处理通知。
// 清理按固定截止时间删除，连续运行两次第二次没有新增效果。
type CleanupJob struct {
	deliveryRepo     repository.DeliveryRepository
	notificationRepo repository.NotificationRepository
	settingService   *service.SettingService
}

// NewCleanupJob 创建数据清理任务
func NewCleanupJob(
	deliveryRepo repository.DeliveryRepository,
	notificationRepo repository.NotificationRepository,
	settingService *service.SettingService,
) *CleanupJob {
	return &CleanupJob{
		deliveryRepo:     deliveryRepo,
		notificationRepo: notificationRepo,
		settingService:   settingService,
	}
}

// Run 执行一轮数据清理
func (j *CleanupJob) Run(ctx context.Context) error {
	policy, err := j.settingService.GetJobPolicy()
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -policy.CleanupRetentionDays)

	deliveries, err := j.deliveryRepo.PurgeTerminalBefore(cutoff)
	if err != nil {
		return err
	}

	notifications, err := j.notificationRepo.PurgeProcessedBefore(cutoff)
	if err != nil {
		return err
	}

	if deliveries > 0 || notifications > 0 {
		logger.Infow("cleanup_result",
			"cutoff", cutoff,
			"deliveries_purged", deliveries,
			"notifications_purged", notifications,
		)
	}
	return nil
}
