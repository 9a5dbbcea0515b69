package repository

import "time"

// DeliveryListFilter 查询配送单列表的过滤条件
type DeliveryListFilter struct {
	Page        int
	PageSize    int
	Status      string
	Priority    string
	DelivererID uint
	OrderNo     string
	Customer    string
	Unassigned  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// DelivererListFilter 查询配送员列表的过滤条件
type DelivererListFilter struct {
	Page       int
	PageSize   int
	Status     string
	Keyword    string
	OnlyActive bool
}

// NotificationListFilter 查询通知列表的过滤条件
type NotificationListFilter struct {
	Page     int
	PageSize int
	Status   string
	Channel  string
}
