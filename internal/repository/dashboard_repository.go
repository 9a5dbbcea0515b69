package repository

import (
	"context"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository 运营看板聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type DashboardRepository interface {
	Ping(ctx context.Context) error
	GetEntityCounts() (DashboardEntityCounts, error)
	CountBusyWithoutActiveDelivery() (int64, error)
}

// DashboardEntityCounts 实体统计结果
type DashboardEntityCounts struct {
	DeliveriesByStatus   map[string]int64
	DeliverersByStatus   map[string]int64
	PendingNotifications int64
}

// GormDashboardRepository GORM 聚合实现
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建看板仓库
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

// Ping 检查存储连通性
func (r *GormDashboardRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetEntityCounts 汇总配送单/配送员/通知计数（每次调用实时计算）
func (r *GormDashboardRepository) GetEntityCounts() (DashboardEntityCounts, error) {
	result := DashboardEntityCounts{
		DeliveriesByStatus: make(map[string]int64),
		DeliverersByStatus: make(map[string]int64),
	}

	var deliveryRows []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&models.Delivery{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&deliveryRows).Error; err != nil {
		return result, err
	}
	for _, row := range deliveryRows {
		result.DeliveriesByStatus[row.Status] = row.Count
	}

	var delivererRows []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&models.Deliverer{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&delivererRows).Error; err != nil {
		return result, err
	}
	for _, row := range delivererRows {
		result.DeliverersByStatus[row.Status] = row.Count
	}

	if err := r.db.Model(&models.Notification{}).
		Where("status = ?", constants.NotificationStatusPending).
		Count(&result.PendingNotifications).Error; err != nil {
		return result, err
	}

	return result, nil
}

// CountBusyWithoutActiveDelivery 统计 busy 但名下无非终态配送单的配送员
func (r *GormDashboardRepository) CountBusyWithoutActiveDelivery() (int64, error) {
	active := r.db.Model(&models.Delivery{}).
		Select("deliverer_id").
		Where("deliverer_id IS NOT NULL AND status IN ?", []string{
			constants.DeliveryStatusPending,
			constants.DeliveryStatusInTransit,
		})

	var count int64
	err := r.db.Model(&models.Deliverer{}).
		Where("status = ?", constants.DelivererStatusBusy).
		Where("id NOT IN (?)", active).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
