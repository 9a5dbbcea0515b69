package service

import (
	"errors"

	"github.com/dispatchdesk/internal/constants"
)

// 状态流转校验错误（handler 用 errors.Is 匹配，msg 直接面向调用方展示）
var (
	ErrDeliveryStatusInvalid  = errors.New("unknown delivery status")
	ErrDelivererStatusInvalid = errors.New("unknown deliverer status")
	ErrDeliveryTerminal       = errors.New("delivery is in a terminal status and cannot be changed")
	ErrDelivererRequired      = errors.New("a deliverer must be assigned first")
	ErrAdminOnlyTransition    = errors.New("only administrators can advance to In Transit or Delivered")
	ErrTransitionNotAllowed   = errors.New("status transition not allowed")
)

// IsTerminalDeliveryStatus 判断配送单是否处于终态
func IsTerminalDeliveryStatus(status string) bool {
	return status == constants.DeliveryStatusDelivered || status == constants.DeliveryStatusCanceled
}

// IsValidDeliveryStatus 判断配送单状态枚举值是否合法
func IsValidDeliveryStatus(status string) bool {
	switch status {
	case constants.DeliveryStatusPending,
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusDelivered,
		constants.DeliveryStatusCanceled:
		return true
	}
	return false
}

// IsValidDelivererStatus 判断配送员状态枚举值是否合法
func IsValidDelivererStatus(status string) bool {
	switch status {
	case constants.DelivererStatusAvailable,
		constants.DelivererStatusBusy,
		constants.DelivererStatusOffline:
		return true
	}
	return false
}

// IsValidDeliveryPriority 判断优先级枚举值是否合法
func IsValidDeliveryPriority(priority string) bool {
	switch priority {
	case constants.DeliveryPriorityLow,
		constants.DeliveryPriorityMedium,
		constants.DeliveryPriorityHigh,
		constants.DeliveryPriorityUrgent:
		return true
	}
	return false
}

// CanTransitionDelivery 校验配送单状态流转是否允许。
// 纯函数：返回 nil 表示允许，否则返回携带拒绝原因的错误；校验不产生任何写入。
func CanTransitionDelivery(current, target, actorRole string, hasDeliverer bool) error {
	if !IsValidDeliveryStatus(current) || !IsValidDeliveryStatus(target) {
		return ErrDeliveryStatusInvalid
	}
	if IsTerminalDeliveryStatus(current) {
		return ErrDeliveryTerminal
	}
	if target == constants.DeliveryStatusInTransit || target == constants.DeliveryStatusDelivered {
		if !hasDeliverer {
			return ErrDelivererRequired
		}
		if actorRole != constants.AdminRoleAdmin {
			return ErrAdminOnlyTransition
		}
	}

	switch {
	case current == constants.DeliveryStatusPending && target == constants.DeliveryStatusInTransit:
		return nil
	case current == constants.DeliveryStatusPending && target == constants.DeliveryStatusDelivered:
		// 直达 delivered 仅限管理员，上面已校验角色与指派
		return nil
	case current == constants.DeliveryStatusInTransit && target == constants.DeliveryStatusDelivered:
		return nil
	case target == constants.DeliveryStatusCanceled:
		// 任意非终态可取消
		return nil
	}
	return ErrTransitionNotAllowed
}

// CanTransitionDeliverer 校验配送员状态的人工切换。
// 三个枚举值之间允许任意切换；指派协调器驱动的切换不经过本函数。
func CanTransitionDeliverer(current, target string) error {
	if !IsValidDelivererStatus(current) || !IsValidDelivererStatus(target) {
		return ErrDelivererStatusInvalid
	}
	return nil
}
