package models

import (
	"time"

	"gorm.io/gorm"
)

// Deliverer 配送员表
type Deliverer struct {
	ID               uint           `gorm:"primarykey" json:"id"`                          // 主键
	Name             string         `gorm:"not null" json:"name"`                          // 姓名
	Email            string         `gorm:"uniqueIndex;not null" json:"email"`             // 邮箱
	Phone            string         `gorm:"type:varchar(32)" json:"phone,omitempty"`       // 电话
	Status           string         `gorm:"index;not null" json:"status"`                  // 状态（available/busy/offline）
	VehicleType      string         `gorm:"type:varchar(32)" json:"vehicle_type,omitempty"` // 车辆类型
	LicenseNumber    string         `gorm:"type:varchar(64)" json:"license_number,omitempty"`
	Address          string         `gorm:"type:varchar(500)" json:"address,omitempty"`
	EmergencyContact string         `gorm:"type:varchar(200)" json:"emergency_contact,omitempty"`
	IsActive         bool           `gorm:"not null;default:true" json:"is_active"` // 是否在职
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间

	// 仅展示用；当前是否在配送以 Delivery.DelivererID + 非终态筛选为准
	Deliveries []Delivery `gorm:"foreignKey:DelivererID" json:"deliveries,omitempty"`
}

// TableName 指定表名
func (Deliverer) TableName() string {
	return "deliverers"
}
