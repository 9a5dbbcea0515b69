package models

import (
	"time"

	"gorm.io/gorm"
)

// Delivery 配送单表
type Delivery struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                       // 主键
	OrderNo             string         `gorm:"uniqueIndex;not null" json:"order_no"`       // 配送单编号（创建后不可变）
	Customer            string         `gorm:"not null" json:"customer"`                   // 客户名称
	DeliveryAddress     string         `gorm:"type:varchar(500)" json:"delivery_address"`  // 配送地址
	Status              string         `gorm:"index;not null" json:"status"`               // 配送状态
	Priority            string         `gorm:"index;not null" json:"priority"`             // 优先级
	Weight              Decimal        `gorm:"type:decimal(10,3)" json:"weight"`           // 货物重量（kg）
	EstimatedDeliveryAt time.Time      `gorm:"index;not null" json:"estimated_delivery_at"` // 预计送达时间
	ActualDeliveryAt    *time.Time     `json:"actual_delivery_at"`                         // 实际送达时间（仅 delivered 状态写入）
	Notes               string         `gorm:"type:varchar(1000)" json:"notes,omitempty"`  // 备注
	DelivererID         *uint          `gorm:"index" json:"deliverer_id,omitempty"`        // 配送员ID（0..1）
	CreatedBy           uint           `gorm:"index" json:"created_by,omitempty"`          // 创建人用户ID
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                    // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                             // 软删除时间

	Deliverer *Deliverer `gorm:"foreignKey:DelivererID" json:"deliverer,omitempty"` // 关联配送员
}

// TableName 指定表名
func (Delivery) TableName() string {
	return "deliveries"
}
