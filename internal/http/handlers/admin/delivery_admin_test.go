package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/provider"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

func setupDeliveryHandlerTest(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:delivery_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Deliverer{},
		&models.Delivery{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	deliveryRepo := repository.NewDeliveryRepository(db)
	delivererRepo := repository.NewDelivererRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, service.NewEmailService(nil), nil)
	assignmentService := service.NewAssignmentService(deliveryRepo, delivererRepo, notificationService)
	deliveryService := service.NewDeliveryService(deliveryRepo, assignmentService)
	delivererService := service.NewDelivererService(delivererRepo, deliveryRepo)

	h := &Handler{Container: &provider.Container{
		DeliveryRepo:        deliveryRepo,
		DelivererRepo:       delivererRepo,
		NotificationRepo:    notificationRepo,
		NotificationService: notificationService,
		AssignmentService:   assignmentService,
		DeliveryService:     deliveryService,
		DelivererService:    delivererService,
	}}
	return h, db
}

func newAdminContext(t *testing.T, method, url, body string, role string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, url, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("admin_id", uint(1))
	c.Set("admin_role", role)
	return c, w
}

type deliveryHandlerResponse struct {
	StatusCode int                    `json:"status_code"`
	Msg        string                 `json:"msg"`
	Data       map[string]interface{} `json:"data"`
}

func decodeDeliveryResponse(t *testing.T, w *httptest.ResponseRecorder) deliveryHandlerResponse {
	t.Helper()
	var resp deliveryHandlerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp
}

func TestCreateDeliveryDefaultsAndOrderNo(t *testing.T) {
	h, _ := setupDeliveryHandlerTest(t)

	estimate := time.Now().AddDate(0, 0, 2).Format(time.RFC3339)
	body := fmt.Sprintf(`{"customer":"Acme Logistics","estimated_delivery_at":%q}`, estimate)
	c, w := newAdminContext(t, http.MethodPost, "/admin/deliveries", body, constants.AdminRoleOperator)

	h.CreateDelivery(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	delivery, ok := resp.Data["delivery"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing delivery: %+v", resp.Data)
	}
	if delivery["status"] != constants.DeliveryStatusPending {
		t.Fatalf("status want pending got %v", delivery["status"])
	}
	if delivery["priority"] != constants.DeliveryPriorityMedium {
		t.Fatalf("priority want medium got %v", delivery["priority"])
	}
	orderNo, _ := delivery["order_no"].(string)
	if !strings.HasPrefix(orderNo, "DD") || len(orderNo) != 22 {
		t.Fatalf("unexpected order_no %q", orderNo)
	}
}

func TestCreateDeliveryRejectsPastEstimate(t *testing.T) {
	h, _ := setupDeliveryHandlerTest(t)

	estimate := time.Now().AddDate(0, 0, -1).Format(time.RFC3339)
	body := fmt.Sprintf(`{"customer":"Acme Logistics","estimated_delivery_at":%q}`, estimate)
	c, w := newAdminContext(t, http.MethodPost, "/admin/deliveries", body, constants.AdminRoleAdmin)

	h.CreateDelivery(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestCreateDeliveryWithDelivererRequiresAdmin(t *testing.T) {
	h, db := setupDeliveryHandlerTest(t)

	deliverer := models.Deliverer{
		Name:     "Marco",
		Email:    "marco@example.com",
		Status:   constants.DelivererStatusAvailable,
		IsActive: true,
	}
	if err := db.Create(&deliverer).Error; err != nil {
		t.Fatalf("create deliverer failed: %v", err)
	}

	estimate := time.Now().AddDate(0, 0, 2).Format(time.RFC3339)
	body := fmt.Sprintf(`{"customer":"Acme","estimated_delivery_at":%q,"deliverer_id":%d}`, estimate, deliverer.ID)

	c, w := newAdminContext(t, http.MethodPost, "/admin/deliveries", body, constants.AdminRoleOperator)
	h.CreateDelivery(c)
	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 403 {
		t.Fatalf("operator assignment status_code want 403 got %d", resp.StatusCode)
	}

	c2, w2 := newAdminContext(t, http.MethodPost, "/admin/deliveries", body, constants.AdminRoleAdmin)
	h.CreateDelivery(c2)
	resp2 := decodeDeliveryResponse(t, w2)
	if resp2.StatusCode != 0 {
		t.Fatalf("admin assignment status_code want 0 got %d (msg %s)", resp2.StatusCode, resp2.Msg)
	}

	var updated models.Deliverer
	if err := db.First(&updated, deliverer.ID).Error; err != nil {
		t.Fatalf("load deliverer failed: %v", err)
	}
	if updated.Status != constants.DelivererStatusBusy {
		t.Fatalf("deliverer status want busy got %s", updated.Status)
	}
}

func TestUpdateDeliveryStatusDeniedWritesNothing(t *testing.T) {
	h, db := setupDeliveryHandlerTest(t)

	delivery := models.Delivery{
		OrderNo:             "DD20260101000000000001",
		Customer:            "Acme",
		Status:              constants.DeliveryStatusPending,
		Priority:            constants.DeliveryPriorityMedium,
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 2),
	}
	if err := db.Create(&delivery).Error; err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}

	// 未指派配送员不可进入在途
	body := `{"status":"in_transit"}`
	c, w := newAdminContext(t, http.MethodPatch, "/admin/deliveries/1/status", body, constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(delivery.ID)}}
	h.UpdateDeliveryStatus(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}

	var reloaded models.Delivery
	if err := db.First(&reloaded, delivery.ID).Error; err != nil {
		t.Fatalf("load delivery failed: %v", err)
	}
	if reloaded.Status != constants.DeliveryStatusPending {
		t.Fatalf("denied transition must not change status, got %s", reloaded.Status)
	}
}

func TestUpdateDeliveryStatusDeliveredReleasesDeliverer(t *testing.T) {
	h, db := setupDeliveryHandlerTest(t)

	deliverer := models.Deliverer{
		Name:     "Ana",
		Email:    "ana@example.com",
		Status:   constants.DelivererStatusBusy,
		IsActive: true,
	}
	if err := db.Create(&deliverer).Error; err != nil {
		t.Fatalf("create deliverer failed: %v", err)
	}
	delivery := models.Delivery{
		OrderNo:             "DD20260101000000000002",
		Customer:            "Acme",
		Status:              constants.DeliveryStatusInTransit,
		Priority:            constants.DeliveryPriorityHigh,
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
		DelivererID:         &deliverer.ID,
	}
	if err := db.Create(&delivery).Error; err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}

	body := `{"status":"delivered"}`
	c, w := newAdminContext(t, http.MethodPatch, "/admin/deliveries/1/status", body, constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(delivery.ID)}}
	h.UpdateDeliveryStatus(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	changes, ok := resp.Data["status_changes"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing status_changes: %+v", resp.Data)
	}
	if changes["deliverer"] == nil {
		t.Fatalf("expected deliverer status change in response")
	}

	var reloadedDelivery models.Delivery
	if err := db.First(&reloadedDelivery, delivery.ID).Error; err != nil {
		t.Fatalf("load delivery failed: %v", err)
	}
	if reloadedDelivery.Status != constants.DeliveryStatusDelivered {
		t.Fatalf("delivery status want delivered got %s", reloadedDelivery.Status)
	}
	if reloadedDelivery.ActualDeliveryAt == nil {
		t.Fatalf("actual_delivery_at should be stamped")
	}

	var reloadedDeliverer models.Deliverer
	if err := db.First(&reloadedDeliverer, deliverer.ID).Error; err != nil {
		t.Fatalf("load deliverer failed: %v", err)
	}
	if reloadedDeliverer.Status != constants.DelivererStatusAvailable {
		t.Fatalf("deliverer status want available got %s", reloadedDeliverer.Status)
	}
}

func TestAssignDeliveryHandler(t *testing.T) {
	h, db := setupDeliveryHandlerTest(t)

	deliverer := models.Deliverer{
		Name:     "Rui",
		Email:    "rui@example.com",
		Status:   constants.DelivererStatusAvailable,
		IsActive: true,
	}
	if err := db.Create(&deliverer).Error; err != nil {
		t.Fatalf("create deliverer failed: %v", err)
	}
	delivery := models.Delivery{
		OrderNo:             "DD20260101000000000003",
		Customer:            "Acme",
		Status:              constants.DeliveryStatusPending,
		Priority:            constants.DeliveryPriorityMedium,
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 2),
	}
	if err := db.Create(&delivery).Error; err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}

	body := fmt.Sprintf(`{"deliverer_id":%d}`, deliverer.ID)
	c, w := newAdminContext(t, http.MethodPatch, "/admin/deliveries/1/assign", body, constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(delivery.ID)}}
	h.AssignDelivery(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}

	var reloaded models.Delivery
	if err := db.First(&reloaded, delivery.ID).Error; err != nil {
		t.Fatalf("load delivery failed: %v", err)
	}
	if reloaded.DelivererID == nil || *reloaded.DelivererID != deliverer.ID {
		t.Fatalf("delivery should reference deliverer %d", deliverer.ID)
	}

	// 重复指派同一配送员直接拒绝
	c2, w2 := newAdminContext(t, http.MethodPatch, "/admin/deliveries/1/assign", body, constants.AdminRoleAdmin)
	c2.Params = gin.Params{{Key: "id", Value: fmt.Sprint(delivery.ID)}}
	h.AssignDelivery(c2)
	resp2 := decodeDeliveryResponse(t, w2)
	if resp2.StatusCode != 400 {
		t.Fatalf("duplicate assignment status_code want 400 got %d", resp2.StatusCode)
	}
}

func TestAssignDelivererHandler(t *testing.T) {
	h, db := setupDeliveryHandlerTest(t)

	deliverer := models.Deliverer{
		Name:     "Ana",
		Email:    "ana@example.com",
		Status:   constants.DelivererStatusAvailable,
		IsActive: true,
	}
	if err := db.Create(&deliverer).Error; err != nil {
		t.Fatalf("create deliverer failed: %v", err)
	}
	delivery := models.Delivery{
		OrderNo:             "DD20260101000000000004",
		Customer:            "Globex",
		Status:              constants.DeliveryStatusPending,
		Priority:            constants.DeliveryPriorityHigh,
		EstimatedDeliveryAt: time.Now().AddDate(0, 0, 1),
	}
	if err := db.Create(&delivery).Error; err != nil {
		t.Fatalf("create delivery failed: %v", err)
	}

	body := fmt.Sprintf(`{"delivery_id":%d}`, delivery.ID)
	c, w := newAdminContext(t, http.MethodPatch, "/admin/deliverers/1/assign", body, constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(deliverer.ID)}}
	h.AssignDeliverer(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	changes, ok := resp.Data["status_changes"].(map[string]interface{})
	if !ok {
		t.Fatalf("status_changes missing in response: %v", resp.Data)
	}
	if changes["deliverer"] == nil {
		t.Fatalf("deliverer status change should be reported")
	}

	var reloadedDeliverer models.Deliverer
	if err := db.First(&reloadedDeliverer, deliverer.ID).Error; err != nil {
		t.Fatalf("load deliverer failed: %v", err)
	}
	if reloadedDeliverer.Status != constants.DelivererStatusBusy {
		t.Fatalf("deliverer status want busy got %s", reloadedDeliverer.Status)
	}
}

func TestGetDeliveriesRejectsUnknownStatusFilter(t *testing.T) {
	h, _ := setupDeliveryHandlerTest(t)

	c, w := newAdminContext(t, http.MethodGet, "/admin/deliveries?status=shipped", "", constants.AdminRoleAdmin)
	h.GetDeliveries(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestGetDeliveryNotFound(t *testing.T) {
	h, _ := setupDeliveryHandlerTest(t)

	c, w := newAdminContext(t, http.MethodGet, "/admin/deliveries/999", "", constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	h.GetDelivery(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}
}
