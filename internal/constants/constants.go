package constants

// 配送单状态常量
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusCanceled  = "canceled"
)

// 配送单优先级常量
const (
	DeliveryPriorityLow    = "low"
	DeliveryPriorityMedium = "medium"
	DeliveryPriorityHigh   = "high"
	DeliveryPriorityUrgent = "urgent"
)

// 配送员状态常量
const (
	DelivererStatusAvailable = "available"
	DelivererStatusBusy      = "busy"
	DelivererStatusOffline   = "offline"
)

// 管理员角色常量
const (
	AdminRoleAdmin    = "admin"
	AdminRoleOperator = "operator"
)

// 通知状态常量
const (
	NotificationStatusPending   = "pending"
	NotificationStatusProcessed = "processed"
	NotificationStatusFailed    = "failed"
)

// 通知渠道常量
const (
	NotificationChannelEmail = "email"
	NotificationChannelPush  = "push"
	NotificationChannelSMS   = "sms"
)

// 通知事件类型常量
const (
	NotificationEventStatusChanged     = "delivery_status_changed"
	NotificationEventDelivererAssigned = "deliverer_assigned"
)

// 后台任务名称常量
const (
	JobHealthCheck          = "healthCheck"
	JobPerformanceMonitor   = "performanceMonitor"
	JobOverdueScan          = "overdueScan"
	JobNotificationDispatch = "notificationDispatch"
	JobDataCleanup          = "dataCleanup"
)

// 健康状态常量
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// 异步任务类型常量
const (
	TaskDeliveryStatusNotify = "delivery:status_notify"
	TaskAssignmentNotify     = "delivery:assignment_notify"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 系统设置键常量
const (
	SettingKeyJobPolicy = "job_policy"
)
