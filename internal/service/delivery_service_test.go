package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newDeliveryTestService(t *testing.T, db *gorm.DB) *DeliveryService {
	t.Helper()
	deliveryRepo := repository.NewDeliveryRepository(db)
	return NewDeliveryService(deliveryRepo, newAssignmentTestService(t, db))
}

func TestIsFutureCalendarDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)
	cases := []struct {
		name     string
		estimate time.Time
		want     bool
	}{
		{"zero time", time.Time{}, false},
		{"yesterday", now.AddDate(0, 0, -1), false},
		{"today earlier hour", time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local), false},
		{"today later hour", time.Date(2026, 3, 10, 23, 59, 0, 0, time.Local), false},
		{"tomorrow midnight", time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local), true},
		{"next week", now.AddDate(0, 0, 7), true},
	}
	for _, c := range cases {
		if got := isFutureCalendarDay(c.estimate, now); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestCreateDeliveryDefaultsAndOrderNo(t *testing.T) {
	db := newAssignmentTestDB(t, "create_delivery")
	svc := newDeliveryTestService(t, db)

	delivery, changes, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "  Acme Corp  ",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 2),
		Weight:              decimal.NewFromFloat(12.5),
	}, Actor{AdminID: 7, Role: constants.AdminRoleOperator})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if changes != nil {
		t.Fatalf("expected no status changes without initial assignment, got %+v", changes)
	}
	if delivery.Customer != "Acme Corp" {
		t.Fatalf("expected trimmed customer, got %q", delivery.Customer)
	}
	if delivery.Status != constants.DeliveryStatusPending {
		t.Fatalf("expected pending, got %s", delivery.Status)
	}
	if delivery.Priority != constants.DeliveryPriorityMedium {
		t.Fatalf("expected default medium priority, got %s", delivery.Priority)
	}
	if !strings.HasPrefix(delivery.OrderNo, "DD") || len(delivery.OrderNo) != 2+14+6 {
		t.Fatalf("unexpected order no format: %s", delivery.OrderNo)
	}
	if delivery.CreatedBy != 7 {
		t.Fatalf("expected created_by 7, got %d", delivery.CreatedBy)
	}
}

func TestCreateDeliveryRejectsMissingCustomer(t *testing.T) {
	db := newAssignmentTestDB(t, "create_no_customer")
	svc := newDeliveryTestService(t, db)

	_, _, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "   ",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
	}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
	if !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
}

func TestCreateDeliveryRejectsNonFutureEstimate(t *testing.T) {
	db := newAssignmentTestDB(t, "create_estimate")
	svc := newDeliveryTestService(t, db)

	for _, estimate := range []time.Time{
		{},
		time.Now().Add(-time.Hour),
		time.Now(), // 当天任意时刻都不算未来
	} {
		_, _, err := svc.CreateDelivery(CreateDeliveryInput{
			Customer:            "Acme Corp",
			EstimatedDeliveryAt: estimate,
		}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
		if !errors.Is(err, ErrEstimatedDateNotFuture) {
			t.Fatalf("estimate %v: expected ErrEstimatedDateNotFuture, got %v", estimate, err)
		}
	}
}

func TestCreateDeliveryRejectsUnknownPriority(t *testing.T) {
	db := newAssignmentTestDB(t, "create_priority")
	svc := newDeliveryTestService(t, db)

	_, _, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "Acme Corp",
		Priority:            "critical",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
	}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
	if !errors.Is(err, ErrPriorityInvalid) {
		t.Fatalf("expected ErrPriorityInvalid, got %v", err)
	}
}

func TestCreateDeliveryWithDelivererRequiresAdmin(t *testing.T) {
	db := newAssignmentTestDB(t, "create_assign_role")
	svc := newDeliveryTestService(t, db)

	deliverer := seedDeliverer(t, db, constants.DelivererStatusAvailable, true)

	_, _, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "Acme Corp",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
		DelivererID:         &deliverer.ID,
	}, Actor{AdminID: 2, Role: constants.AdminRoleOperator})
	if !errors.Is(err, ErrAssignAdminOnly) {
		t.Fatalf("expected ErrAssignAdminOnly, got %v", err)
	}
}

func TestCreateDeliveryRejectsUnknownDelivererWithoutWrite(t *testing.T) {
	db := newAssignmentTestDB(t, "create_assign_missing")
	svc := newDeliveryTestService(t, db)

	missing := uint(9999)
	_, _, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "Acme Corp",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
		DelivererID:         &missing,
	}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
	if !errors.Is(err, ErrDelivererNotFound) {
		t.Fatalf("expected ErrDelivererNotFound, got %v", err)
	}

	// 前置校验失败时不产生配送单
	var count int64
	if err := db.Model(&models.Delivery{}).Count(&count).Error; err != nil {
		t.Fatalf("count deliveries failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no delivery persisted, got %d", count)
	}
}

func TestCreateDeliveryRejectsInactiveDelivererWithoutWrite(t *testing.T) {
	db := newAssignmentTestDB(t, "create_assign_inactive")
	svc := newDeliveryTestService(t, db)

	deliverer := seedDeliverer(t, db, constants.DelivererStatusAvailable, false)

	_, _, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "Acme Corp",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
		DelivererID:         &deliverer.ID,
	}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
	if !errors.Is(err, ErrDelivererInactive) {
		t.Fatalf("expected ErrDelivererInactive, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Delivery{}).Count(&count).Error; err != nil {
		t.Fatalf("count deliveries failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no delivery persisted, got %d", count)
	}
}

func TestCreateDeliveryWithInitialAssignment(t *testing.T) {
	db := newAssignmentTestDB(t, "create_assign")
	svc := newDeliveryTestService(t, db)

	deliverer := seedDeliverer(t, db, constants.DelivererStatusAvailable, true)

	delivery, changes, err := svc.CreateDelivery(CreateDeliveryInput{
		Customer:            "Acme Corp",
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
		DelivererID:         &deliverer.ID,
	}, Actor{AdminID: 1, Role: constants.AdminRoleAdmin})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if delivery.DelivererID == nil || *delivery.DelivererID != deliverer.ID {
		t.Fatalf("expected assigned deliverer %d, got %v", deliverer.ID, delivery.DelivererID)
	}
	if changes == nil || changes.Deliverer == nil || changes.Deliverer.To != constants.DelivererStatusBusy {
		t.Fatalf("expected deliverer busy change, got %+v", changes)
	}
}

func TestUpdateDeliveryRejectsTerminal(t *testing.T) {
	db := newAssignmentTestDB(t, "update_terminal")
	svc := newDeliveryTestService(t, db)

	delivery := seedDelivery(t, db, constants.DeliveryStatusCanceled, nil)

	notes := "new notes"
	_, err := svc.UpdateDelivery(delivery.ID, UpdateDeliveryInput{Notes: &notes})
	if !errors.Is(err, ErrDeliveryTerminal) {
		t.Fatalf("expected ErrDeliveryTerminal, got %v", err)
	}
}

func TestUpdateDeliveryFields(t *testing.T) {
	db := newAssignmentTestDB(t, "update_fields")
	svc := newDeliveryTestService(t, db)

	delivery := seedDelivery(t, db, constants.DeliveryStatusPending, nil)

	priority := constants.DeliveryPriorityUrgent
	notes := "fragile"
	updated, err := svc.UpdateDelivery(delivery.ID, UpdateDeliveryInput{Priority: &priority, Notes: &notes})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Priority != constants.DeliveryPriorityUrgent {
		t.Fatalf("expected urgent priority, got %s", updated.Priority)
	}
	if updated.Notes != "fragile" {
		t.Fatalf("expected notes updated, got %q", updated.Notes)
	}
	if updated.OrderNo != delivery.OrderNo {
		t.Fatalf("order no must be immutable")
	}
}

func TestListDeliveriesRejectsUnknownStatusFilter(t *testing.T) {
	db := newAssignmentTestDB(t, "list_filter")
	svc := newDeliveryTestService(t, db)

	_, _, err := svc.ListDeliveries(repository.DeliveryListFilter{Status: "shipped"})
	if !errors.Is(err, ErrDeliveryStatusInvalid) {
		t.Fatalf("expected ErrDeliveryStatusInvalid, got %v", err)
	}

	seedDelivery(t, db, constants.DeliveryStatusPending, nil)
	items, total, err := svc.ListDeliveries(repository.DeliveryListFilter{Status: constants.DeliveryStatusPending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one pending delivery, got total=%d len=%d", total, len(items))
	}
}
