package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"

	"gorm.io/gorm"
)

// DeliveryRepository 配送单数据访问接口
type DeliveryRepository interface {
	Create(delivery *models.Delivery) error
	GetByID(id uint) (*models.Delivery, error)
	GetByOrderNo(orderNo string) (*models.Delivery, error)
	List(filter DeliveryListFilter) ([]models.Delivery, int64, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	UpdateDeliverer(id uint, delivererID *uint) error
	ListActiveByDeliverer(delivererID uint) ([]models.Delivery, error)
	ListInTransit() ([]models.Delivery, error)
	CountByStatus() (map[string]int64, error)
	CountOrphanedDelivererRefs() (int64, error)
	CountActiveWithoutDeliverer() (int64, error)
	PurgeTerminalBefore(cutoff time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormDeliveryRepository
}

// GormDeliveryRepository GORM 实现
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository 创建配送单仓库
func NewDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliveryRepository) WithTx(tx *gorm.DB) *GormDeliveryRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryRepository{db: tx}
}

// activeStatuses 非终态状态集合
func activeStatuses() []string {
	return []string{
		constants.DeliveryStatusPending,
		constants.DeliveryStatusInTransit,
	}
}

// Create 创建配送单
func (r *GormDeliveryRepository) Create(delivery *models.Delivery) error {
	return r.db.Create(delivery).Error
}

// GetByID 根据 ID 获取配送单
func (r *GormDeliveryRepository) GetByID(id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.Preload("Deliverer").First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// GetByOrderNo 根据编号获取配送单
func (r *GormDeliveryRepository) GetByOrderNo(orderNo string) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.Preload("Deliverer").Where("order_no = ?", orderNo).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// List 按过滤条件分页查询配送单
func (r *GormDeliveryRepository) List(filter DeliveryListFilter) ([]models.Delivery, int64, error) {
	query := r.db.Model(&models.Delivery{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := strings.TrimSpace(filter.Priority); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if filter.DelivererID > 0 {
		query = query.Where("deliverer_id = ?", filter.DelivererID)
	}
	if filter.Unassigned {
		query = query.Where("deliverer_id IS NULL")
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("order_no = ?", orderNo)
	}
	if customer := strings.TrimSpace(filter.Customer); customer != "" {
		query = query.Where("customer LIKE ?", "%"+customer+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var deliveries []models.Delivery
	query = applyPagination(query.Order("created_at DESC"), filter.Page, filter.PageSize)
	if err := query.Preload("Deliverer").Find(&deliveries).Error; err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

// UpdateStatus 更新配送单状态（单文档原子更新）
func (r *GormDeliveryRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	values := map[string]interface{}{
		"status": status,
	}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.Model(&models.Delivery{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDeliverer 更新配送单的配送员指派
func (r *GormDeliveryRepository) UpdateDeliverer(id uint, delivererID *uint) error {
	result := r.db.Model(&models.Delivery{}).Where("id = ?", id).Update("deliverer_id", delivererID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActiveByDeliverer 查询配送员名下所有非终态配送单
func (r *GormDeliveryRepository) ListActiveByDeliverer(delivererID uint) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.Where("deliverer_id = ? AND status IN ?", delivererID, activeStatuses()).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// ListInTransit 查询所有在途配送单
func (r *GormDeliveryRepository) ListInTransit() ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.Where("status = ?", constants.DeliveryStatusInTransit).
		Order("estimated_delivery_at ASC").
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// CountByStatus 按状态统计配送单数量
func (r *GormDeliveryRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.Delivery{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountOrphanedDelivererRefs 统计指向不存在配送员的配送单数量
func (r *GormDeliveryRepository) CountOrphanedDelivererRefs() (int64, error) {
	var count int64
	err := r.db.Model(&models.Delivery{}).
		Where("deliverer_id IS NOT NULL").
		Where("deliverer_id NOT IN (?)", r.db.Model(&models.Deliverer{}).Select("id")).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountActiveWithoutDeliverer 统计处于 in_transit 或 delivered 但未关联配送员的配送单数量。
// 这两个状态要求必须有配送员，计数大于零说明数据被绕过流程修改。
func (r *GormDeliveryRepository) CountActiveWithoutDeliverer() (int64, error) {
	var count int64
	err := r.db.Model(&models.Delivery{}).
		Where("status IN ?", []string{constants.DeliveryStatusInTransit, constants.DeliveryStatusDelivered}).
		Where("deliverer_id IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeTerminalBefore 物理删除早于截止时间的终态配送单
func (r *GormDeliveryRepository) PurgeTerminalBefore(cutoff time.Time) (int64, error) {
	terminal := []string{
		constants.DeliveryStatusDelivered,
		constants.DeliveryStatusCanceled,
	}
	result := r.db.Unscoped().
		Where("status IN ? AND updated_at < ?", terminal, cutoff).
		Delete(&models.Delivery{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
