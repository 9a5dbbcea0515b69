package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/provider"
	"github.com/dispatchdesk/internal/queue"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(constants.TaskDeliveryStatusNotify, c.handleDeliveryStatusNotify)
	mux.HandleFunc(constants.TaskAssignmentNotify, c.handleAssignmentNotify)
}

// 状态变更通知任务：按通知 ID 立即派发，失败留给定时任务兜底重试
func (c *Consumer) handleDeliveryStatusNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.DeliveryStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_status_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.NotificationID == 0 {
		logger.Debugw("worker_status_notify_skip_invalid_payload", "delivery_id", payload.DeliveryID)
		return nil
	}
	return c.dispatchNotification(payload.NotificationID)
}

func (c *Consumer) handleAssignmentNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.AssignmentNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_assignment_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.NotificationID == 0 {
		logger.Debugw("worker_assignment_notify_skip_invalid_payload", "delivery_id", payload.DeliveryID)
		return nil
	}
	return c.dispatchNotification(payload.NotificationID)
}

func (c *Consumer) dispatchNotification(notificationID uint) error {
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_service_nil", "notification_id", notificationID)
		return nil
	}
	policy, err := c.SettingService.GetJobPolicy()
	if err != nil {
		return err
	}
	if err := c.NotificationService.DispatchByID(notificationID, policy.NotificationMaxAttempts); err != nil {
		logger.Warnw("worker_notification_dispatch_failed",
			"notification_id", notificationID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
