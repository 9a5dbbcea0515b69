package admin

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/jobs"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/provider"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

func setupJobHandlerTest(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:job_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Deliverer{},
		&models.Delivery{},
		&models.Notification{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	deliveryRepo := repository.NewDeliveryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, service.NewEmailService(nil), nil)
	settingService := service.NewSettingService(settingRepo, nil)

	jobsCfg := &config.JobsConfig{AutoStart: false}
	manager := jobs.NewManager(jobsCfg, jobs.ManagerDeps{
		DeliveryRepo:        deliveryRepo,
		NotificationRepo:    notificationRepo,
		DashboardRepo:       dashboardRepo,
		NotificationService: notificationService,
		SettingService:      settingService,
	})

	return &Handler{Container: &provider.Container{
		SettingService:      settingService,
		NotificationService: notificationService,
		JobManager:          manager,
	}}
}

func TestRunJobHandler(t *testing.T) {
	h := setupJobHandlerTest(t)

	c, w := newAdminContext(t, http.MethodPost, "/admin/jobs/run/healthCheck", "", constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "jobName", Value: constants.JobHealthCheck}}
	h.RunJob(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	if skipped, ok := resp.Data["skipped"].(bool); !ok || skipped {
		t.Fatalf("run should not be skipped, data %+v", resp.Data)
	}

	record, ok := resp.Data["record"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing record: %+v", resp.Data)
	}
	if success, _ := record["success_count"].(float64); success != 1 {
		t.Fatalf("success_count want 1 got %v", record["success_count"])
	}
}

func TestRunJobHandlerUnknownJob(t *testing.T) {
	h := setupJobHandlerTest(t)

	c, w := newAdminContext(t, http.MethodPost, "/admin/jobs/run/nope", "", constants.AdminRoleAdmin)
	c.Params = gin.Params{{Key: "jobName", Value: "nope"}}
	h.RunJob(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}
}

func TestStartStopJobsHandler(t *testing.T) {
	h := setupJobHandlerTest(t)

	c, w := newAdminContext(t, http.MethodPost, "/admin/jobs/start", "", constants.AdminRoleAdmin)
	h.StartJobs(c)
	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("start status_code want 0 got %d", resp.StatusCode)
	}
	if running, _ := resp.Data["scheduler_running"].(bool); !running {
		t.Fatalf("scheduler should be running after start")
	}

	c2, w2 := newAdminContext(t, http.MethodPost, "/admin/jobs/stop", "", constants.AdminRoleAdmin)
	h.StopJobs(c2)
	resp2 := decodeDeliveryResponse(t, w2)
	if running, _ := resp2.Data["scheduler_running"].(bool); running {
		t.Fatalf("scheduler should be stopped after stop")
	}

	// 调度停止后手动触发仍可用
	c3, w3 := newAdminContext(t, http.MethodPost, "/admin/jobs/run/healthCheck", "", constants.AdminRoleAdmin)
	c3.Params = gin.Params{{Key: "jobName", Value: constants.JobHealthCheck}}
	h.RunJob(c3)
	resp3 := decodeDeliveryResponse(t, w3)
	if resp3.StatusCode != 0 {
		t.Fatalf("manual run while stopped want 0 got %d", resp3.StatusCode)
	}
}

func TestJobPolicyHandlers(t *testing.T) {
	h := setupJobHandlerTest(t)

	c, w := newAdminContext(t, http.MethodGet, "/admin/jobs/policy", "", constants.AdminRoleAdmin)
	h.GetJobPolicy(c)
	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("get policy status_code want 0 got %d", resp.StatusCode)
	}
	if hours, _ := resp.Data["overdue_critical_hours"].(float64); hours != 48 {
		t.Fatalf("default overdue_critical_hours want 48 got %v", resp.Data["overdue_critical_hours"])
	}

	body := `{"overdue_critical_hours":24,"notification_batch_size":10,"notification_max_attempts":5,"cleanup_retention_days":30}`
	c2, w2 := newAdminContext(t, http.MethodPut, "/admin/jobs/policy", body, constants.AdminRoleAdmin)
	h.UpdateJobPolicy(c2)
	resp2 := decodeDeliveryResponse(t, w2)
	if resp2.StatusCode != 0 {
		t.Fatalf("update policy status_code want 0 got %d (msg %s)", resp2.StatusCode, resp2.Msg)
	}

	c3, w3 := newAdminContext(t, http.MethodGet, "/admin/jobs/policy", "", constants.AdminRoleAdmin)
	h.GetJobPolicy(c3)
	resp3 := decodeDeliveryResponse(t, w3)
	if hours, _ := resp3.Data["overdue_critical_hours"].(float64); hours != 24 {
		t.Fatalf("updated overdue_critical_hours want 24 got %v", resp3.Data["overdue_critical_hours"])
	}

	bad := `{"overdue_critical_hours":-1,"notification_batch_size":10,"notification_max_attempts":5,"cleanup_retention_days":30}`
	c4, w4 := newAdminContext(t, http.MethodPut, "/admin/jobs/policy", bad, constants.AdminRoleAdmin)
	h.UpdateJobPolicy(c4)
	resp4 := decodeDeliveryResponse(t, w4)
	if resp4.StatusCode != 400 {
		t.Fatalf("invalid policy status_code want 400 got %d", resp4.StatusCode)
	}
}

func TestGetJobsDashboardHandler(t *testing.T) {
	h := setupJobHandlerTest(t)

	c, w := newAdminContext(t, http.MethodGet, "/admin/jobs/dashboard", "", constants.AdminRoleAdmin)
	h.GetJobsDashboard(c)

	resp := decodeDeliveryResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	jobsRaw, ok := resp.Data["jobs"].([]interface{})
	if !ok {
		t.Fatalf("dashboard missing jobs: %+v", resp.Data)
	}
	if len(jobsRaw) != 5 {
		t.Fatalf("dashboard jobs want 5 got %d", len(jobsRaw))
	}
}
