package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/queue"
	"github.com/dispatchdesk/internal/repository"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationChannel  = errors.New("unsupported notification channel")
)

// NotificationService 通知事件服务：落库 + 推送队列 + 派发
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	emailService     *EmailService
	queueClient      *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	emailService *EmailService,
	queueClient *queue.Client,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		emailService:     emailService,
		queueClient:      queueClient,
	}
}

// EnqueueStatusChanged 记录状态变更通知并尽力推送队列。
// 落库失败返回错误；队列推送失败只记日志，由后台派发任务兜底。
func (s *NotificationService) EnqueueStatusChanged(delivery *models.Delivery, fromStatus, toStatus string) error {
	recipient := s.resolveCreatorEmail(delivery)
	notification := &models.Notification{
		EventType:  constants.NotificationEventStatusChanged,
		DeliveryID: delivery.ID,
		Channel:    constants.NotificationChannelEmail,
		Recipient:  recipient,
		Status:     constants.NotificationStatusPending,
		Payload: models.JSON{
			"order_no":    delivery.OrderNo,
			"customer":    delivery.Customer,
			"from_status": fromStatus,
			"to_status":   toStatus,
		},
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		return err
	}

	if err := s.queueClient.EnqueueDeliveryStatusNotify(queue.DeliveryStatusNotifyPayload{
		NotificationID: notification.ID,
		DeliveryID:     delivery.ID,
		OrderNo:        delivery.OrderNo,
		FromStatus:     fromStatus,
		ToStatus:       toStatus,
	}); err != nil {
		logger.Warnw("notification_queue_push_failed",
			"notification_id", notification.ID,
			"event_type", notification.EventType,
			"error", err.Error(),
		)
	}
	return nil
}

// EnqueueAssigned 记录配送指派通知并尽力推送队列
func (s *NotificationService) EnqueueAssigned(delivery *models.Delivery, deliverer *models.Deliverer) error {
	notification := &models.Notification{
		EventType:  constants.NotificationEventDelivererAssigned,
		DeliveryID: delivery.ID,
		Channel:    constants.NotificationChannelEmail,
		Recipient:  deliverer.Email,
		Status:     constants.NotificationStatusPending,
		Payload: models.JSON{
			"order_no":       delivery.OrderNo,
			"customer":       delivery.Customer,
			"deliverer_id":   deliverer.ID,
			"deliverer_name": deliverer.Name,
		},
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		return err
	}

	if err := s.queueClient.EnqueueAssignmentNotify(queue.AssignmentNotifyPayload{
		NotificationID: notification.ID,
		DeliveryID:     delivery.ID,
		DelivererID:    deliverer.ID,
		OrderNo:        delivery.OrderNo,
	}); err != nil {
		logger.Warnw("notification_queue_push_failed",
			"notification_id", notification.ID,
			"event_type", notification.EventType,
			"error", err.Error(),
		)
	}
	return nil
}

// DispatchResult 批量派发结果
type DispatchResult struct {
	Picked    int `json:"picked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// DispatchPending 派发一批待处理通知。
// 单条失败不影响其余条目；尝试次数达到 maxAttempts 后标记为永久失败。
func (s *NotificationService) DispatchPending(batchSize, maxAttempts int) (DispatchResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	result := DispatchResult{}

	pending, err := s.notificationRepo.ListPending(batchSize)
	if err != nil {
		return result, err
	}
	result.Picked = len(pending)

	now := time.Now()
	for i := range pending {
		notification := &pending[i]
		if err := s.Deliver(notification); err != nil {
			attempts := notification.Attempts + 1
			permanent := attempts >= maxAttempts
			if markErr := s.notificationRepo.MarkFailed(notification.ID, attempts, err.Error(), permanent, now); markErr != nil {
				logger.Errorw("notification_mark_failed_error",
					"notification_id", notification.ID,
					"error", markErr.Error(),
				)
			}
			result.Failed++
			if permanent {
				result.Exhausted++
				logger.Warnw("notification_retry_exhausted",
					"notification_id", notification.ID,
					"event_type", notification.EventType,
					"attempts", attempts,
					"error", err.Error(),
				)
			}
			continue
		}
		if err := s.notificationRepo.MarkProcessed(notification.ID, now); err != nil {
			logger.Errorw("notification_mark_processed_error",
				"notification_id", notification.ID,
				"error", err.Error(),
			)
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// DispatchByID 按 ID 派发单条通知（队列 worker 使用）。
// 已处理或已永久失败的通知直接跳过。
func (s *NotificationService) DispatchByID(id uint, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	notification, err := s.notificationRepo.GetByID(id)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotificationNotFound
	}
	if notification.Status != constants.NotificationStatusPending {
		return nil
	}

	now := time.Now()
	if err := s.Deliver(notification); err != nil {
		attempts := notification.Attempts + 1
		permanent := attempts >= maxAttempts
		if markErr := s.notificationRepo.MarkFailed(notification.ID, attempts, err.Error(), permanent, now); markErr != nil {
			return markErr
		}
		if permanent {
			// 不再返回错误，避免队列继续重试
			logger.Warnw("notification_retry_exhausted",
				"notification_id", notification.ID,
				"event_type", notification.EventType,
				"attempts", attempts,
				"error", err.Error(),
			)
			return nil
		}
		return err
	}
	return s.notificationRepo.MarkProcessed(notification.ID, now)
}

// Deliver 按渠道发送单条通知
func (s *NotificationService) Deliver(notification *models.Notification) error {
	switch notification.Channel {
	case constants.NotificationChannelEmail:
		return s.deliverEmail(notification)
	case constants.NotificationChannelPush, constants.NotificationChannelSMS:
		// 暂无推送/短信供应商接入，仅记录
		logger.Infow("notification_channel_logged",
			"notification_id", notification.ID,
			"channel", notification.Channel,
			"event_type", notification.EventType,
			"recipient", notification.Recipient,
		)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotificationChannel, notification.Channel)
	}
}

// List 分页查询通知
func (s *NotificationService) List(filter repository.NotificationListFilter) ([]models.Notification, int64, error) {
	return s.notificationRepo.List(filter)
}

// CountPending 统计待处理通知数量
func (s *NotificationService) CountPending() (int64, error) {
	return s.notificationRepo.CountPending()
}

func (s *NotificationService) deliverEmail(notification *models.Notification) error {
	input := DeliveryStatusEmailInput{
		OrderNo:  payloadString(notification.Payload, "order_no"),
		Customer: payloadString(notification.Payload, "customer"),
	}
	switch notification.EventType {
	case constants.NotificationEventDelivererAssigned:
		input.DelivererName = payloadString(notification.Payload, "deliverer_name")
		return s.emailService.SendAssignmentEmail(notification.Recipient, input)
	default:
		input.Status = payloadString(notification.Payload, "to_status")
		return s.emailService.SendDeliveryStatusEmail(notification.Recipient, input)
	}
}

// 收件人取创建人的邮箱，查询失败时退回用户占位地址
func (s *NotificationService) resolveCreatorEmail(delivery *models.Delivery) string {
	if delivery.CreatedBy == 0 || s.userRepo == nil {
		return fmt.Sprintf("user-%d@dispatchdesk.local", delivery.CreatedBy)
	}
	user, err := s.userRepo.GetByID(delivery.CreatedBy)
	if err != nil || user == nil {
		return fmt.Sprintf("user-%d@dispatchdesk.local", delivery.CreatedBy)
	}
	return user.Email
}

func payloadString(payload models.JSON, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
