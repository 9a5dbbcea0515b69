package service

import (
	"testing"
	"time"

	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"

	"gorm.io/gorm"
)

func newNotificationTestService(t *testing.T, db *gorm.DB) *NotificationService {
	t.Helper()
	return NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		NewEmailService(nil), // 邮件未配置，email 渠道必然失败
		nil,
	)
}

func seedNotification(t *testing.T, db *gorm.DB, channel string) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		EventType: constants.NotificationEventStatusChanged,
		Channel:   channel,
		Recipient: "ops@example.com",
		Status:    constants.NotificationStatusPending,
		Payload:   models.JSON{"order_no": "DD20260301120000123456", "to_status": constants.DeliveryStatusDelivered},
	}
	if err := db.Create(notification).Error; err != nil {
		t.Fatalf("seed notification failed: %v", err)
	}
	return notification
}

func TestDispatchPendingMarksSuccess(t *testing.T) {
	db := newAssignmentTestDB(t, "notify_success")
	svc := newNotificationTestService(t, db)

	notification := seedNotification(t, db, constants.NotificationChannelPush)

	result, err := svc.DispatchPending(10, 3)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Picked != 1 || result.Succeeded != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var stored models.Notification
	if err := db.First(&stored, notification.ID).Error; err != nil {
		t.Fatalf("load notification failed: %v", err)
	}
	if stored.Status != constants.NotificationStatusProcessed {
		t.Fatalf("expected processed, got %s", stored.Status)
	}
	if stored.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}
}

func TestDispatchPendingRetriesUntilCap(t *testing.T) {
	db := newAssignmentTestDB(t, "notify_retry_cap")
	svc := newNotificationTestService(t, db)

	notification := seedNotification(t, db, constants.NotificationChannelEmail)

	for i := 1; i <= 3; i++ {
		result, err := svc.DispatchPending(10, 3)
		if err != nil {
			t.Fatalf("dispatch round %d failed: %v", i, err)
		}
		if result.Failed != 1 {
			t.Fatalf("round %d: expected one failure, got %+v", i, result)
		}

		var stored models.Notification
		if err := db.First(&stored, notification.ID).Error; err != nil {
			t.Fatalf("load notification failed: %v", err)
		}
		if stored.Attempts != i {
			t.Fatalf("round %d: expected attempts %d, got %d", i, i, stored.Attempts)
		}
		if i < 3 && stored.Status != constants.NotificationStatusPending {
			t.Fatalf("round %d: expected still pending, got %s", i, stored.Status)
		}
		if i == 3 && stored.Status != constants.NotificationStatusFailed {
			t.Fatalf("expected permanent failure at cap, got %s", stored.Status)
		}
		if stored.LastError == "" {
			t.Fatalf("expected last_error recorded")
		}
	}

	// 永久失败后不再被选中
	result, err := svc.DispatchPending(10, 3)
	if err != nil {
		t.Fatalf("dispatch after cap failed: %v", err)
	}
	if result.Picked != 0 {
		t.Fatalf("expected exhausted notification to be skipped, got %+v", result)
	}
}

func TestDispatchPendingIsolatesFailures(t *testing.T) {
	db := newAssignmentTestDB(t, "notify_isolation")
	svc := newNotificationTestService(t, db)

	failing := seedNotification(t, db, constants.NotificationChannelEmail)
	time.Sleep(time.Millisecond)
	succeeding := seedNotification(t, db, constants.NotificationChannelSMS)

	result, err := svc.DispatchPending(10, 3)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Picked != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var storedFail, storedOK models.Notification
	if err := db.First(&storedFail, failing.ID).Error; err != nil {
		t.Fatalf("load failing notification: %v", err)
	}
	if err := db.First(&storedOK, succeeding.ID).Error; err != nil {
		t.Fatalf("load succeeding notification: %v", err)
	}
	if storedFail.Status != constants.NotificationStatusPending {
		t.Fatalf("expected failing item back to pending, got %s", storedFail.Status)
	}
	if storedOK.Status != constants.NotificationStatusProcessed {
		t.Fatalf("expected succeeding item processed, got %s", storedOK.Status)
	}
}

func TestDispatchByIDSkipsNonPending(t *testing.T) {
	db := newAssignmentTestDB(t, "notify_by_id")
	svc := newNotificationTestService(t, db)

	notification := seedNotification(t, db, constants.NotificationChannelPush)
	now := time.Now()
	if err := db.Model(notification).Updates(map[string]interface{}{
		"status":       constants.NotificationStatusProcessed,
		"processed_at": now,
	}).Error; err != nil {
		t.Fatalf("mark processed failed: %v", err)
	}

	if err := svc.DispatchByID(notification.ID, 3); err != nil {
		t.Fatalf("expected nil for already processed notification, got %v", err)
	}
}
