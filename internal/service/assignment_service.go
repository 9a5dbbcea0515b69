package service

import (
	"errors"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"
)

var (
	ErrDeliveryNotFound    = errors.New("delivery not found")
	ErrDelivererNotFound   = errors.New("deliverer not found")
	ErrDelivererInactive   = errors.New("deliverer is not active")
	ErrAlreadyAssigned     = errors.New("deliverer is already assigned to this delivery")
	ErrDeliveryNotAssigned = errors.New("delivery has no assigned deliverer")
	ErrDeliveryInTransit   = errors.New("cannot unassign an in-transit delivery")
)

// Actor 操作者身份（用于状态规则判定）
type Actor struct {
	AdminID uint
	Role    string
}

// StatusChange 单个文档的状态变化
type StatusChange struct {
	ID   uint   `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// StatusChanges 一次指派/流转引起的双文档状态变化汇总
type StatusChanges struct {
	Delivery          *StatusChange `json:"delivery,omitempty"`
	Deliverer         *StatusChange `json:"deliverer,omitempty"`
	PreviousDeliverer *StatusChange `json:"previous_deliverer,omitempty"`
}

// AssignmentService 配送指派与状态流转协调器。
// 配送单与配送员分属两张表，无跨表事务保证，约定先写配送单，
// 配送员状态随后按活跃单量重算，保证可由后台巡检收敛。
type AssignmentService struct {
	deliveryRepo        repository.DeliveryRepository
	delivererRepo       repository.DelivererRepository
	notificationService *NotificationService
}

// NewAssignmentService 创建指派协调器
func NewAssignmentService(
	deliveryRepo repository.DeliveryRepository,
	delivererRepo repository.DelivererRepository,
	notificationService *NotificationService,
) *AssignmentService {
	return &AssignmentService{
		deliveryRepo:        deliveryRepo,
		delivererRepo:       delivererRepo,
		notificationService: notificationService,
	}
}

// CheckDelivererAssignable 校验配送员可被指派（存在且在职）。
// 供创建配送单等复合操作在落库前做前置校验。
func (s *AssignmentService) CheckDelivererAssignable(delivererID uint) error {
	deliverer, err := s.delivererRepo.GetByID(delivererID)
	if err != nil {
		return err
	}
	if deliverer == nil {
		return ErrDelivererNotFound
	}
	if !deliverer.IsActive {
		return ErrDelivererInactive
	}
	return nil
}

// Assign 将配送员指派到配送单。
// 校验通过后先更新配送单的 deliverer_id，再将新配送员置为 busy，
// 最后重算原配送员状态。返回本次引起的全部状态变化。
func (s *AssignmentService) Assign(deliveryID, delivererID uint, actor Actor) (*models.Delivery, *StatusChanges, error) {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}
	if delivery == nil {
		return nil, nil, ErrDeliveryNotFound
	}
	if IsTerminalDeliveryStatus(delivery.Status) {
		return nil, nil, ErrDeliveryTerminal
	}

	deliverer, err := s.delivererRepo.GetByID(delivererID)
	if err != nil {
		return nil, nil, err
	}
	if deliverer == nil {
		return nil, nil, ErrDelivererNotFound
	}
	if !deliverer.IsActive {
		return nil, nil, ErrDelivererInactive
	}

	previousID := delivery.DelivererID
	if previousID != nil && *previousID == delivererID {
		return nil, nil, ErrAlreadyAssigned
	}

	if err := s.deliveryRepo.UpdateDeliverer(deliveryID, &delivererID); err != nil {
		return nil, nil, err
	}

	// 指派不改变配送单状态，响应中仍回报 from/to 对以保持双边结构完整
	changes := &StatusChanges{
		Delivery: &StatusChange{ID: deliveryID, From: delivery.Status, To: delivery.Status},
	}
	if deliverer.Status != constants.DelivererStatusBusy {
		if err := s.delivererRepo.UpdateStatus(delivererID, constants.DelivererStatusBusy); err != nil {
			logger.Errorw("deliverer_status_update_failed",
				"deliverer_id", delivererID,
				"target_status", constants.DelivererStatusBusy,
				"error", err.Error(),
			)
		} else {
			changes.Deliverer = &StatusChange{ID: delivererID, From: deliverer.Status, To: constants.DelivererStatusBusy}
		}
	}

	if previousID != nil {
		if change, err := s.Release(*previousID); err != nil {
			logger.Errorw("deliverer_release_failed",
				"deliverer_id", *previousID,
				"error", err.Error(),
			)
		} else if change != nil {
			changes.PreviousDeliverer = change
		}
	}

	updated, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.notificationService.EnqueueAssigned(updated, deliverer); err != nil {
		logger.Warnw("assignment_notification_failed",
			"delivery_id", deliveryID,
			"deliverer_id", delivererID,
			"error", err.Error(),
		)
	}

	logger.Infow("delivery_assigned",
		"delivery_id", deliveryID,
		"order_no", updated.OrderNo,
		"deliverer_id", delivererID,
		"admin_id", actor.AdminID,
	)
	return updated, changes, nil
}

// Unassign 解除配送单上的配送员并重算其状态。
// 在途配送单必须先有配送员，直接解除会破坏该约束，需先退回 pending。
func (s *AssignmentService) Unassign(deliveryID uint, actor Actor) (*models.Delivery, *StatusChanges, error) {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}
	if delivery == nil {
		return nil, nil, ErrDeliveryNotFound
	}
	if IsTerminalDeliveryStatus(delivery.Status) {
		return nil, nil, ErrDeliveryTerminal
	}
	if delivery.Status == constants.DeliveryStatusInTransit {
		return nil, nil, ErrDeliveryInTransit
	}
	if delivery.DelivererID == nil {
		return nil, nil, ErrDeliveryNotAssigned
	}

	previousID := *delivery.DelivererID
	if err := s.deliveryRepo.UpdateDeliverer(deliveryID, nil); err != nil {
		return nil, nil, err
	}

	changes := &StatusChanges{}
	if change, err := s.Release(previousID); err != nil {
		logger.Errorw("deliverer_release_failed",
			"deliverer_id", previousID,
			"error", err.Error(),
		)
	} else if change != nil {
		changes.Deliverer = change
	}

	updated, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}

	logger.Infow("delivery_unassigned",
		"delivery_id", deliveryID,
		"deliverer_id", previousID,
		"admin_id", actor.AdminID,
	)
	return updated, changes, nil
}

// AdvanceStatus 推进配送单状态。
// 规则校验全部通过后才落库；拒绝时不产生任何写入。
// 进入终态时解除配送员占用并重算其状态。
func (s *AssignmentService) AdvanceStatus(deliveryID uint, target string, actor Actor) (*models.Delivery, *StatusChanges, error) {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}
	if delivery == nil {
		return nil, nil, ErrDeliveryNotFound
	}

	hasDeliverer := delivery.DelivererID != nil
	if err := CanTransitionDelivery(delivery.Status, target, actor.Role, hasDeliverer); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{}
	if target == constants.DeliveryStatusDelivered {
		updates["actual_delivery_at"] = now
	}
	if err := s.deliveryRepo.UpdateStatus(deliveryID, target, updates); err != nil {
		return nil, nil, err
	}

	changes := &StatusChanges{
		Delivery: &StatusChange{ID: deliveryID, From: delivery.Status, To: target},
	}

	if IsTerminalDeliveryStatus(target) && hasDeliverer {
		if change, err := s.Release(*delivery.DelivererID); err != nil {
			logger.Errorw("deliverer_release_failed",
				"deliverer_id", *delivery.DelivererID,
				"error", err.Error(),
			)
		} else if change != nil {
			changes.Deliverer = change
		}
	}

	updated, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.notificationService.EnqueueStatusChanged(updated, delivery.Status, target); err != nil {
		logger.Warnw("status_notification_failed",
			"delivery_id", deliveryID,
			"error", err.Error(),
		)
	}

	logger.Infow("delivery_status_changed",
		"delivery_id", deliveryID,
		"order_no", updated.OrderNo,
		"from_status", delivery.Status,
		"to_status", target,
		"admin_id", actor.AdminID,
	)
	return updated, changes, nil
}

// Release 按活跃配送单量重算配送员状态。
// 仍有活跃单置 busy；无活跃单且当前为 busy 置 available；
// offline 不会被自动改回，返回 nil 表示状态未变化。
func (s *AssignmentService) Release(delivererID uint) (*StatusChange, error) {
	deliverer, err := s.delivererRepo.GetByID(delivererID)
	if err != nil {
		return nil, err
	}
	if deliverer == nil {
		return nil, ErrDelivererNotFound
	}

	active, err := s.deliveryRepo.ListActiveByDeliverer(delivererID)
	if err != nil {
		return nil, err
	}

	var target string
	switch {
	case len(active) > 0:
		target = constants.DelivererStatusBusy
	case deliverer.Status == constants.DelivererStatusBusy:
		target = constants.DelivererStatusAvailable
	default:
		return nil, nil
	}
	if target == deliverer.Status {
		return nil, nil
	}

	if err := s.delivererRepo.UpdateStatus(delivererID, target); err != nil {
		return nil, err
	}
	return &StatusChange{ID: delivererID, From: deliverer.Status, To: target}, nil
}
