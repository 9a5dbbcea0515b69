package repository

import (
	"errors"
	"strings"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"

	"gorm.io/gorm"
)

// DelivererRepository 配送员数据访问接口
type DelivererRepository interface {
	Create(deliverer *models.Deliverer) error
	GetByID(id uint) (*models.Deliverer, error)
	GetByEmail(email string) (*models.Deliverer, error)
	List(filter DelivererListFilter) ([]models.Deliverer, int64, error)
	UpdateStatus(id uint, status string) error
	Update(deliverer *models.Deliverer) error
	CountByStatus() (map[string]int64, error)
	ListBusyIDs() ([]uint, error)
}

// GormDelivererRepository GORM 实现
type GormDelivererRepository struct {
	db *gorm.DB
}

// NewDelivererRepository 创建配送员仓库
func NewDelivererRepository(db *gorm.DB) *GormDelivererRepository {
	return &GormDelivererRepository{db: db}
}

// Create 创建配送员
func (r *GormDelivererRepository) Create(deliverer *models.Deliverer) error {
	return r.db.Create(deliverer).Error
}

// GetByID 根据 ID 获取配送员
func (r *GormDelivererRepository) GetByID(id uint) (*models.Deliverer, error) {
	var deliverer models.Deliverer
	if err := r.db.First(&deliverer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deliverer, nil
}

// GetByEmail 根据邮箱获取配送员
func (r *GormDelivererRepository) GetByEmail(email string) (*models.Deliverer, error) {
	var deliverer models.Deliverer
	if err := r.db.Where("email = ?", email).First(&deliverer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deliverer, nil
}

// List 按过滤条件分页查询配送员
func (r *GormDelivererRepository) List(filter DelivererListFilter) ([]models.Deliverer, int64, error) {
	query := r.db.Model(&models.Deliverer{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		pattern := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var deliverers []models.Deliverer
	query = applyPagination(query.Order("created_at DESC"), filter.Page, filter.PageSize)
	if err := query.Find(&deliverers).Error; err != nil {
		return nil, 0, err
	}
	return deliverers, total, nil
}

// UpdateStatus 更新配送员状态
func (r *GormDelivererRepository) UpdateStatus(id uint, status string) error {
	result := r.db.Model(&models.Deliverer{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Update 更新配送员资料
func (r *GormDelivererRepository) Update(deliverer *models.Deliverer) error {
	return r.db.Save(deliverer).Error
}

// CountByStatus 按状态统计配送员数量
func (r *GormDelivererRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.Deliverer{}).
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

// ListBusyIDs 返回当前标记为 busy 的配送员 ID
func (r *GormDelivererRepository) ListBusyIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Deliverer{}).
		Where("status = ?", constants.DelivererStatusBusy).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
