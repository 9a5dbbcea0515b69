package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification 通知事件表（待派发队列）
type Notification struct {
	ID         uint           `gorm:"primarykey" json:"id"`                      // 主键
	EventType  string         `gorm:"index;not null" json:"event_type"`          // 事件类型
	DeliveryID uint           `gorm:"index" json:"delivery_id,omitempty"`        // 关联配送单ID
	Channel    string         `gorm:"index;not null" json:"channel"`             // 发送渠道（email/push/sms）
	Recipient  string         `gorm:"not null" json:"recipient"`                 // 接收方
	Payload    JSON           `gorm:"type:json" json:"payload,omitempty"`        // 事件内容
	Status     string         `gorm:"index;not null" json:"status"`              // 状态（pending/processed/failed）
	Attempts   int            `gorm:"not null;default:0" json:"attempts"`        // 已尝试次数
	LastError  string         `gorm:"type:varchar(500)" json:"last_error,omitempty"` // 最近失败原因
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`                    // 处理完成时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}
