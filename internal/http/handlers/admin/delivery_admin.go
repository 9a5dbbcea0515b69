package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dispatchdesk/internal/http/response"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// CreateDeliveryRequest 创建配送单请求
type CreateDeliveryRequest struct {
	Customer            string          `json:"customer" binding:"required"`
	DeliveryAddress     string          `json:"delivery_address"`
	Priority            string          `json:"priority"`
	Weight              decimal.Decimal `json:"weight"`
	EstimatedDeliveryAt time.Time       `json:"estimated_delivery_at" binding:"required"`
	Notes               string          `json:"notes"`
	DelivererID         *uint           `json:"deliverer_id"`
}

// CreateDelivery 创建配送单，管理员可同时指定初始配送员
func (h *Handler) CreateDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	delivery, changes, err := h.DeliveryService.CreateDelivery(service.CreateDeliveryInput{
		Customer:            req.Customer,
		DeliveryAddress:     req.DeliveryAddress,
		Priority:            req.Priority,
		Weight:              req.Weight,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		Notes:               req.Notes,
		DelivererID:         req.DelivererID,
	}, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerRequired),
			errors.Is(err, service.ErrEstimatedDateNotFuture),
			errors.Is(err, service.ErrPriorityInvalid),
			errors.Is(err, service.ErrWeightInvalid),
			errors.Is(err, service.ErrDelivererInactive):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrAssignAdminOnly):
			respondError(c, response.CodeForbidden, err.Error(), nil)
		case errors.Is(err, service.ErrDelivererNotFound):
			respondError(c, response.CodeNotFound, err.Error(), nil)
		default:
			if delivery != nil {
				// 单据已创建但初始指派失败，返回已创建的数据并提示
				response.SuccessWithMsg(c, "delivery created but initial assignment failed", gin.H{
					"delivery": delivery,
				})
				return
			}
			respondError(c, response.CodeInternal, "failed to create delivery", err)
		}
		return
	}

	response.Success(c, gin.H{
		"delivery":       delivery,
		"status_changes": changes,
	})
}

// GetDeliveries 配送单列表
func (h *Handler) GetDeliveries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	status := strings.TrimSpace(c.Query("status"))
	priority := strings.TrimSpace(c.Query("priority"))
	orderNo := strings.TrimSpace(c.Query("order_no"))
	customer := strings.TrimSpace(c.Query("customer"))
	unassigned := c.Query("unassigned") == "true"

	var delivererID uint
	if raw := strings.TrimSpace(c.Query("deliverer_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			delivererID = uint(parsed)
		}
	}

	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid created_from", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid created_to", err)
		return
	}

	deliveries, total, err := h.DeliveryService.ListDeliveries(repository.DeliveryListFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      status,
		Priority:    priority,
		DelivererID: delivererID,
		OrderNo:     orderNo,
		Customer:    customer,
		Unassigned:  unassigned,
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryStatusInvalid),
			errors.Is(err, service.ErrPriorityInvalid):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to list deliveries", err)
		}
		return
	}

	response.SuccessWithPage(c, deliveries, response.NewPagination(page, pageSize, total))
}

// GetDelivery 配送单详情
func (h *Handler) GetDelivery(c *gin.Context) {
	deliveryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || deliveryID == 0 {
		respondError(c, response.CodeBadRequest, "invalid delivery id", nil)
		return
	}

	delivery, err := h.DeliveryService.GetDelivery(uint(deliveryID))
	if err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			respondError(c, response.CodeNotFound, "delivery not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to load delivery", err)
		return
	}
	response.Success(c, delivery)
}

// UpdateDeliveryRequest 编辑配送单请求，零值字段不更新
type UpdateDeliveryRequest struct {
	DeliveryAddress *string          `json:"delivery_address"`
	Priority        *string          `json:"priority"`
	Weight          *decimal.Decimal `json:"weight"`
	Notes           *string          `json:"notes"`
}

// UpdateDelivery 编辑配送单可变字段
func (h *Handler) UpdateDelivery(c *gin.Context) {
	deliveryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || deliveryID == 0 {
		respondError(c, response.CodeBadRequest, "invalid delivery id", nil)
		return
	}

	var req UpdateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	delivery, err := h.DeliveryService.UpdateDelivery(uint(deliveryID), service.UpdateDeliveryInput{
		DeliveryAddress: req.DeliveryAddress,
		Priority:        req.Priority,
		Weight:          req.Weight,
		Notes:           req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryNotFound):
			respondError(c, response.CodeNotFound, "delivery not found", nil)
		case errors.Is(err, service.ErrDeliveryTerminal),
			errors.Is(err, service.ErrPriorityInvalid),
			errors.Is(err, service.ErrWeightInvalid):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to update delivery", err)
		}
		return
	}
	response.Success(c, delivery)
}

// UpdateDeliveryStatusRequest 配送单状态流转请求
type UpdateDeliveryStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateDeliveryStatus 配送单状态流转。
// 拒绝的流转不产生任何写入，返回具体原因。
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	deliveryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || deliveryID == 0 {
		respondError(c, response.CodeBadRequest, "invalid delivery id", nil)
		return
	}

	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	delivery, changes, err := h.AssignmentService.AdvanceStatus(uint(deliveryID), req.Status, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryNotFound):
			respondError(c, response.CodeNotFound, "delivery not found", nil)
		case errors.Is(err, service.ErrAdminOnlyTransition):
			respondError(c, response.CodeForbidden, err.Error(), nil)
		case errors.Is(err, service.ErrDeliveryStatusInvalid),
			errors.Is(err, service.ErrDeliveryTerminal),
			errors.Is(err, service.ErrDelivererRequired),
			errors.Is(err, service.ErrTransitionNotAllowed):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to update delivery status", err)
		}
		return
	}

	response.Success(c, gin.H{
		"delivery":       delivery,
		"status_changes": changes,
	})
}

// AssignDeliveryRequest 指派配送员请求
type AssignDeliveryRequest struct {
	DelivererID uint `json:"deliverer_id" binding:"required"`
}

// AssignDelivery 为配送单指派配送员
func (h *Handler) AssignDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	deliveryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || deliveryID == 0 {
		respondError(c, response.CodeBadRequest, "invalid delivery id", nil)
		return
	}

	var req AssignDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	delivery, changes, err := h.AssignmentService.Assign(uint(deliveryID), req.DelivererID, actor)
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
			respondError(c, response.CodeInternal, "failed to assign deliverer", err)
		}
		return
	}

	response.Success(c, gin.H{
		"delivery":       delivery,
		"status_changes": changes,
	})
}

// UnassignDelivery 取消配送单的配送员指派
func (h *Handler) UnassignDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	deliveryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || deliveryID == 0 {
		respondError(c, response.CodeBadRequest, "invalid delivery id", nil)
		return
	}

	delivery, changes, err := h.AssignmentService.Unassign(uint(deliveryID), actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryNotFound):
			respondError(c, response.CodeNotFound, "delivery not found", nil)
		case errors.Is(err, service.ErrDeliveryNotAssigned),
			errors.Is(err, service.ErrDeliveryTerminal),
			errors.Is(err, service.ErrDeliveryInTransit):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "failed to unassign deliverer", err)
		}
		return
	}

	response.Success(c, gin.H{
		"delivery":       delivery,
		"status_changes": changes,
	})
}
