package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dispatchdesk/internal/http/response"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

// CreateDelivererRequest 录入配送员请求
type CreateDelivererRequest struct {
	Name             string `json:"name" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Phone            string `json:"phone"`
	VehicleType      string `json:"vehicle_type"`
	LicenseNumber    string `json:"license_number"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergency_contact"`
}

// CreateDeliverer 录入配送员
func (h *Handler) CreateDeliverer(c *gin.Context) {
	var req CreateDelivererRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	deliverer, err := h.DelivererService.CreateDeliverer(service.CreateDelivererInput{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		VehicleType:      req.VehicleType,
		LicenseNumber:    req.LicenseNumber,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDelivererEmailExists):
			respondError(c, response.CodeConflict, err.Error(), nil)
		case errors.Is(err, service.ErrDelivererNameRequired),
			errors.Is(err, service.ErrDelivererEmailRequired),
			errors.Is(err, service.ErrDelivererEmailInvalid):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to create deliverer", err)
		}
		return
	}
	response.Success(c, deliverer)
}

// GetDeliverers 配送员列表
func (h *Handler) GetDeliverers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	status := strings.TrimSpace(c.Query("status"))
	keyword := strings.TrimSpace(c.Query("keyword"))
	onlyActive := c.Query("only_active") == "true"

	deliverers, total, err := h.DelivererService.ListDeliverers(repository.DelivererListFilter{
		Page:       page,
		PageSize:   pageSize,
		Status:     status,
		Keyword:    keyword,
		OnlyActive: onlyActive,
	})
	if err != nil {
		if errors.Is(err, service.ErrDelivererStatusInvalid) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to list deliverers", err)
		return
	}

	response.SuccessWithPage(c, deliverers, response.NewPagination(page, pageSize, total))
}

// GetDeliverer 配送员详情
func (h *Handler) GetDeliverer(c *gin.Context) {
	delivererID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || delivererID == 0 {
		respondError(c, response.CodeBadRequest, "invalid deliverer id", nil)
		return
	}

	deliverer, err := h.DelivererService.GetDeliverer(uint(delivererID))
	if err != nil {
		if errors.Is(err, service.ErrDelivererNotFound) {
			respondError(c, response.CodeNotFound, "deliverer not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to load deliverer", err)
		return
	}
	response.Success(c, deliverer)
}

// UpdateDelivererRequest 编辑配送员请求，零值字段不更新
type UpdateDelivererRequest struct {
	Name             *string `json:"name"`
	Phone            *string `json:"phone"`
	VehicleType      *string `json:"vehicle_type"`
	LicenseNumber    *string `json:"license_number"`
	Address          *string `json:"address"`
	EmergencyContact *string `json:"emergency_contact"`
	IsActive         *bool   `json:"is_active"`
}

// UpdateDeliverer 编辑配送员资料，停用需要先交接在途配送单
func (h *Handler) UpdateDeliverer(c *gin.Context) {
	delivererID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || delivererID == 0 {
		respondError(c, response.CodeBadRequest, "invalid deliverer id", nil)
		return
	}

	var req UpdateDelivererRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	deliverer, err := h.DelivererService.UpdateDeliverer(uint(delivererID), service.UpdateDelivererInput{
		Name:             req.Name,
		Phone:            req.Phone,
		VehicleType:      req.VehicleType,
		LicenseNumber:    req.LicenseNumber,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		IsActive:         req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDelivererNotFound):
			respondError(c, response.CodeNotFound, "deliverer not found", nil)
		case errors.Is(err, service.ErrDelivererHasActiveWork),
			errors.Is(err, service.ErrDelivererNameRequired):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to update deliverer", err)
		}
		return
	}
	response.Success(c, deliverer)
}

// UpdateDelivererStatusRequest 配送员状态变更请求
type UpdateDelivererStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateDelivererStatus 手动变更配送员状态。
// 还有在途配送单时不允许置为 available。
func (h *Handler) UpdateDelivererStatus(c *gin.Context) {
	delivererID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || delivererID == 0 {
		respondError(c, response.CodeBadRequest, "invalid deliverer id", nil)
		return
	}

	var req UpdateDelivererStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	deliverer, err := h.DelivererService.ChangeStatus(uint(delivererID), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDelivererNotFound):
			respondError(c, response.CodeNotFound, "deliverer not found", nil)
		case errors.Is(err, service.ErrDelivererStatusInvalid),
			errors.Is(err, service.ErrDelivererHasActiveWork):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to update deliverer status", err)
		}
		return
	}
	response.Success(c, deliverer)
}

// AssignDelivererRequest 配送员侧指派请求
type AssignDelivererRequest struct {
	DeliveryID uint `json:"delivery_id" binding:"required"`
}

// AssignDeliverer 从配送员视角发起指派，语义与配送单侧指派一致。
func (h *Handler) AssignDeliverer(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	delivererID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || delivererID == 0 {
		respondError(c, response.CodeBadRequest, "invalid deliverer id", nil)
		return
	}

	var req AssignDelivererRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	delivery, changes, err := h.AssignmentService.Assign(req.DeliveryID, uint(delivererID), actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryNotFound):
			respondError(c, response.CodeNotFound, "delivery not found", nil)
		case errors.Is(err, service.ErrDelivererNotFound):
			respondError(c, response.CodeNotFound, "deliverer not found", nil)
		case errors.Is(err, service.ErrDeliveryTerminal),
			errors.Is(err, service.ErrDelivererInactive),
			errors.Is(err, service.ErrAlreadyAssigned):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to assign delivery", err)
		}
		return
	}

	response.Success(c, gin.H{
		"delivery":       delivery,
		"status_changes": changes,
	})
}

// GetDelivererDeliveries 配送员的在途配送单
func (h *Handler) GetDelivererDeliveries(c *gin.Context) {
	delivererID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || delivererID == 0 {
		respondError(c, response.CodeBadRequest, "invalid deliverer id", nil)
		return
	}

	deliveries, err := h.DeliveryRepo.ListActiveByDeliverer(uint(delivererID))
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list deliveries", err)
		return
	}
	response.Success(c, deliveries)
}
