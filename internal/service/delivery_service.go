package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"
)

var (
	ErrCustomerRequired       = errors.New("customer is required")
	ErrEstimatedDateNotFuture = errors.New("estimated delivery date must be a future date")
	ErrPriorityInvalid        = errors.New("unknown delivery priority")
	ErrWeightInvalid          = errors.New("weight must not be negative")
	ErrAssignAdminOnly        = errors.New("only administrators can assign a deliverer")
)

// DeliveryService 配送单服务
type DeliveryService struct {
	deliveryRepo      repository.DeliveryRepository
	assignmentService *AssignmentService
}

// NewDeliveryService 创建配送单服务
func NewDeliveryService(deliveryRepo repository.DeliveryRepository, assignmentService *AssignmentService) *DeliveryService {
	return &DeliveryService{
		deliveryRepo:      deliveryRepo,
		assignmentService: assignmentService,
	}
}

// CreateDeliveryInput 创建配送单入参
type CreateDeliveryInput struct {
	Customer            string          `json:"customer"`
	DeliveryAddress     string          `json:"delivery_address"`
	Priority            string          `json:"priority"`
	Weight              decimal.Decimal `json:"weight"`
	EstimatedDeliveryAt time.Time       `json:"estimated_delivery_at"`
	Notes               string          `json:"notes"`
	DelivererID         *uint           `json:"deliverer_id"`
}

// CreateDelivery 创建配送单。
// 预计送达日期必须晚于今天（按自然日比较）；优先级缺省为 medium；
// 创建时指派配送员仅限管理员，指派走统一的协调器。
func (s *DeliveryService) CreateDelivery(input CreateDeliveryInput, actor Actor) (*models.Delivery, *StatusChanges, error) {
	customer := strings.TrimSpace(input.Customer)
	if customer == "" {
		return nil, nil, ErrCustomerRequired
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = constants.DeliveryPriorityMedium
	}
	if !IsValidDeliveryPriority(priority) {
		return nil, nil, ErrPriorityInvalid
	}

	if !isFutureCalendarDay(input.EstimatedDeliveryAt, time.Now()) {
		return nil, nil, ErrEstimatedDateNotFuture
	}
	if input.Weight.IsNegative() {
		return nil, nil, ErrWeightInvalid
	}
	if input.DelivererID != nil {
		if actor.Role != constants.AdminRoleAdmin {
			return nil, nil, ErrAssignAdminOnly
		}
		// 配送员不存在或已离职时直接拒绝，不落任何数据
		if err := s.assignmentService.CheckDelivererAssignable(*input.DelivererID); err != nil {
			return nil, nil, err
		}
	}

	delivery := &models.Delivery{
		OrderNo:             generateDeliveryNo(),
		Customer:            customer,
		DeliveryAddress:     strings.TrimSpace(input.DeliveryAddress),
		Status:              constants.DeliveryStatusPending,
		Priority:            priority,
		Weight:              models.NewDecimal(input.Weight),
		EstimatedDeliveryAt: input.EstimatedDeliveryAt,
		Notes:               strings.TrimSpace(input.Notes),
		CreatedBy:           actor.AdminID,
	}
	if err := s.deliveryRepo.Create(delivery); err != nil {
		return nil, nil, err
	}

	var changes *StatusChanges
	if input.DelivererID != nil {
		assigned, assignChanges, err := s.assignmentService.Assign(delivery.ID, *input.DelivererID, actor)
		if err != nil {
			// 配送单已创建成功，指派失败不回滚，返回错误由调用方决定重试
			logger.Warnw("delivery_initial_assignment_failed",
				"delivery_id", delivery.ID,
				"deliverer_id", *input.DelivererID,
				"error", err.Error(),
			)
			return delivery, nil, err
		}
		delivery = assigned
		changes = assignChanges
	}

	logger.Infow("delivery_created",
		"delivery_id", delivery.ID,
		"order_no", delivery.OrderNo,
		"priority", delivery.Priority,
		"admin_id", actor.AdminID,
	)
	return delivery, changes, nil
}

// GetDelivery 根据 ID 获取配送单
func (s *DeliveryService) GetDelivery(id uint) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

// GetDeliveryByOrderNo 根据编号获取配送单
func (s *DeliveryService) GetDeliveryByOrderNo(orderNo string) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByOrderNo(strings.TrimSpace(orderNo))
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

// ListDeliveries 按过滤条件分页查询配送单
func (s *DeliveryService) ListDeliveries(filter repository.DeliveryListFilter) ([]models.Delivery, int64, error) {
	if filter.Status != "" && !IsValidDeliveryStatus(filter.Status) {
		return nil, 0, ErrDeliveryStatusInvalid
	}
	if filter.Priority != "" && !IsValidDeliveryPriority(filter.Priority) {
		return nil, 0, ErrPriorityInvalid
	}
	return s.deliveryRepo.List(filter)
}

// UpdateDeliveryInput 编辑配送单入参（仅限非状态字段）
type UpdateDeliveryInput struct {
	DeliveryAddress *string          `json:"delivery_address"`
	Priority        *string          `json:"priority"`
	Weight          *decimal.Decimal `json:"weight"`
	Notes           *string          `json:"notes"`
}

// UpdateDelivery 编辑配送单的可变字段。
// 编号与状态不在此处修改；终态配送单不可编辑。
func (s *DeliveryService) UpdateDelivery(id uint, input UpdateDeliveryInput) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	if IsTerminalDeliveryStatus(delivery.Status) {
		return nil, ErrDeliveryTerminal
	}

	updates := map[string]interface{}{}
	if input.DeliveryAddress != nil {
		updates["delivery_address"] = strings.TrimSpace(*input.DeliveryAddress)
	}
	if input.Priority != nil {
		priority := strings.TrimSpace(*input.Priority)
		if !IsValidDeliveryPriority(priority) {
			return nil, ErrPriorityInvalid
		}
		updates["priority"] = priority
	}
	if input.Weight != nil {
		if input.Weight.IsNegative() {
			return nil, ErrWeightInvalid
		}
		updates["weight"] = models.NewDecimal(*input.Weight)
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}
	if len(updates) == 0 {
		return delivery, nil
	}

	if err := s.deliveryRepo.UpdateStatus(id, delivery.Status, updates); err != nil {
		return nil, err
	}
	return s.deliveryRepo.GetByID(id)
}

// 预计送达时间按自然日比较，必须晚于今天
func isFutureCalendarDay(estimate, now time.Time) bool {
	if estimate.IsZero() {
		return false
	}
	ey, em, ed := estimate.Local().Date()
	ny, nm, nd := now.Local().Date()
	estimateDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.Local)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.Local)
	return estimateDay.After(today)
}

func generateDeliveryNo() string {
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("DD%s%s", timestamp, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
