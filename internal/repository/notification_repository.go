package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository 通知事件数据访问接口
type NotificationRepository interface {
	Create(notification *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	ListPending(limit int) ([]models.Notification, error)
	List(filter NotificationListFilter) ([]models.Notification, int64, error)
	MarkProcessed(id uint, at time.Time) error
	MarkFailed(id uint, attempts int, lastError string, permanent bool, at time.Time) error
	CountPending() (int64, error)
	PurgeProcessedBefore(cutoff time.Time) (int64, error)
}

// GormNotificationRepository GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create 写入通知事件
func (r *GormNotificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// GetByID 根据 ID 获取通知
func (r *GormNotificationRepository) GetByID(id uint) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// ListPending 按创建时间取出待处理通知
func (r *GormNotificationRepository) ListPending(limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []models.Notification
	err := r.db.Where("status = ?", constants.NotificationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// List 按过滤条件分页查询通知
func (r *GormNotificationRepository) List(filter NotificationListFilter) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if channel := strings.TrimSpace(filter.Channel); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	query = applyPagination(query.Order("created_at DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkProcessed 标记通知处理成功
func (r *GormNotificationRepository) MarkProcessed(id uint, at time.Time) error {
	return r.db.Model(&models.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       constants.NotificationStatusProcessed,
		"processed_at": at,
		"last_error":   "",
	}).Error
}

// MarkFailed 记录失败；达到重试上限（permanent）后不再回到 pending
func (r *GormNotificationRepository) MarkFailed(id uint, attempts int, lastError string, permanent bool, at time.Time) error {
	status := constants.NotificationStatusPending
	values := map[string]interface{}{
		"attempts":   attempts,
		"last_error": lastError,
	}
	if permanent {
		status = constants.NotificationStatusFailed
		values["processed_at"] = at
	}
	values["status"] = status
	return r.db.Model(&models.Notification{}).Where("id = ?", id).Updates(values).Error
}

// CountPending 统计待处理通知
func (r *GormNotificationRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("status = ?", constants.NotificationStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeProcessedBefore 物理删除早于截止时间的已处理通知
func (r *GormNotificationRepository) PurgeProcessedBefore(cutoff time.Time) (int64, error) {
	statuses := []string{
		constants.NotificationStatusProcessed,
		constants.NotificationStatusFailed,
	}
	result := r.db.Unscoped().
		Where("status IN ? AND updated_at < ?", statuses, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
