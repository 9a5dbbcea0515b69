package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/dispatchdesk/internal/constants"
)

// DeliveryStatusNotifyPayload 配送状态变更通知任务载荷
type DeliveryStatusNotifyPayload struct {
	NotificationID uint   `json:"notification_id"`
	DeliveryID     uint   `json:"delivery_id"`
	OrderNo        string `json:"order_no"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status"`
}

// AssignmentNotifyPayload 配送指派通知任务载荷
type AssignmentNotifyPayload struct {
	NotificationID uint   `json:"notification_id"`
	DeliveryID     uint   `json:"delivery_id"`
	DelivererID    uint   `json:"deliverer_id"`
	OrderNo        string `json:"order_no"`
}

// NewDeliveryStatusNotifyTask 创建状态变更通知任务
func NewDeliveryStatusNotifyTask(p DeliveryStatusNotifyPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(constants.TaskDeliveryStatusNotify, payload, asynq.Queue(constants.QueueDefault)), nil
}

// NewAssignmentNotifyTask 创建配送指派通知任务
func NewAssignmentNotifyTask(p AssignmentNotifyPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(constants.TaskAssignmentNotify, payload, asynq.Queue(constants.QueueDefault)), nil
}
