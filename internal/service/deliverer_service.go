package service

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"
)

var (
	ErrDelivererNameRequired  = errors.New("deliverer name is required")
	ErrDelivererEmailRequired = errors.New("deliverer email is required")
	ErrDelivererEmailInvalid  = errors.New("deliverer email is invalid")
	ErrDelivererEmailExists   = errors.New("deliverer email already exists")
	ErrDelivererHasActiveWork = errors.New("deliverer still has active deliveries")
)

// DelivererService 配送员服务
type DelivererService struct {
	delivererRepo repository.DelivererRepository
	deliveryRepo  repository.DeliveryRepository
}

// NewDelivererService 创建配送员服务
func NewDelivererService(delivererRepo repository.DelivererRepository, deliveryRepo repository.DeliveryRepository) *DelivererService {
	return &DelivererService{
		delivererRepo: delivererRepo,
		deliveryRepo:  deliveryRepo,
	}
}

// CreateDelivererInput 创建配送员入参
type CreateDelivererInput struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	VehicleType      string `json:"vehicle_type"`
	LicenseNumber    string `json:"license_number"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergency_contact"`
}

// CreateDeliverer 创建配送员，初始状态为 available
func (s *DelivererService) CreateDeliverer(input CreateDelivererInput) (*models.Deliverer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrDelivererNameRequired
	}
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, ErrDelivererEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrDelivererEmailInvalid
	}

	existing, err := s.delivererRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDelivererEmailExists
	}

	deliverer := &models.Deliverer{
		Name:             name,
		Email:            email,
		Phone:            strings.TrimSpace(input.Phone),
		Status:           constants.DelivererStatusAvailable,
		VehicleType:      strings.TrimSpace(input.VehicleType),
		LicenseNumber:    strings.TrimSpace(input.LicenseNumber),
		Address:          strings.TrimSpace(input.Address),
		EmergencyContact: strings.TrimSpace(input.EmergencyContact),
		IsActive:         true,
	}
	if err := s.delivererRepo.Create(deliverer); err != nil {
		return nil, err
	}

	logger.Infow("deliverer_created",
		"deliverer_id", deliverer.ID,
		"email", deliverer.Email,
	)
	return deliverer, nil
}

// GetDeliverer 根据 ID 获取配送员
func (s *DelivererService) GetDeliverer(id uint) (*models.Deliverer, error) {
	deliverer, err := s.delivererRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if deliverer == nil {
		return nil, ErrDelivererNotFound
	}
	return deliverer, nil
}

// ListDeliverers 按过滤条件分页查询配送员
func (s *DelivererService) ListDeliverers(filter repository.DelivererListFilter) ([]models.Deliverer, int64, error) {
	if filter.Status != "" && !IsValidDelivererStatus(filter.Status) {
		return nil, 0, ErrDelivererStatusInvalid
	}
	return s.delivererRepo.List(filter)
}

// ChangeStatus 手动调整配送员状态。
// 仍有活跃配送单时不允许改成 available，避免与自动重算互相打架。
func (s *DelivererService) ChangeStatus(id uint, target string) (*models.Deliverer, error) {
	deliverer, err := s.delivererRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if deliverer == nil {
		return nil, ErrDelivererNotFound
	}
	if err := CanTransitionDeliverer(deliverer.Status, target); err != nil {
		return nil, err
	}
	if target == deliverer.Status {
		return deliverer, nil
	}

	if target == constants.DelivererStatusAvailable {
		active, err := s.deliveryRepo.ListActiveByDeliverer(id)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, ErrDelivererHasActiveWork
		}
	}

	if err := s.delivererRepo.UpdateStatus(id, target); err != nil {
		return nil, err
	}

	logger.Infow("deliverer_status_changed",
		"deliverer_id", id,
		"from_status", deliverer.Status,
		"to_status", target,
	)
	return s.delivererRepo.GetByID(id)
}

// UpdateDelivererInput 编辑配送员入参
type UpdateDelivererInput struct {
	Name             *string `json:"name"`
	Phone            *string `json:"phone"`
	VehicleType      *string `json:"vehicle_type"`
	LicenseNumber    *string `json:"license_number"`
	Address          *string `json:"address"`
	EmergencyContact *string `json:"emergency_contact"`
	IsActive         *bool   `json:"is_active"`
}

// UpdateDeliverer 编辑配送员资料。
// 停用（is_active=false）要求没有活跃配送单，并同时置为 offline。
func (s *DelivererService) UpdateDeliverer(id uint, input UpdateDelivererInput) (*models.Deliverer, error) {
	deliverer, err := s.delivererRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if deliverer == nil {
		return nil, ErrDelivererNotFound
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrDelivererNameRequired
		}
		deliverer.Name = name
	}
	if input.Phone != nil {
		deliverer.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.VehicleType != nil {
		deliverer.VehicleType = strings.TrimSpace(*input.VehicleType)
	}
	if input.LicenseNumber != nil {
		deliverer.LicenseNumber = strings.TrimSpace(*input.LicenseNumber)
	}
	if input.Address != nil {
		deliverer.Address = strings.TrimSpace(*input.Address)
	}
	if input.EmergencyContact != nil {
		deliverer.EmergencyContact = strings.TrimSpace(*input.EmergencyContact)
	}
	if input.IsActive != nil && !*input.IsActive && deliverer.IsActive {
		active, err := s.deliveryRepo.ListActiveByDeliverer(id)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, ErrDelivererHasActiveWork
		}
		deliverer.IsActive = false
		deliverer.Status = constants.DelivererStatusOffline
	}
	if input.IsActive != nil && *input.IsActive {
		deliverer.IsActive = true
	}

	if err := s.delivererRepo.Update(deliverer); err != nil {
		return nil, err
	}
	return s.delivererRepo.GetByID(id)
}
