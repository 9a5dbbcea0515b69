package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加创建人用户
	users := []models.User{
		{Email: "dispatch@dispatchdesk.local", DisplayName: "Dispatch Desk", Status: "active"},
		{Email: "ops@dispatchdesk.local", DisplayName: "Operations", Status: "active"},
	}
	for _, user := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", user.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", user.Email, err)
			} else {
				stdLog.Printf("Created user: %s", user.Email)
			}
		} else {
			stdLog.Printf("User already exists: %s", user.Email)
		}
	}

	// 添加配送员
	deliverers := []models.Deliverer{
		{
			Name:        "Marco Silva",
			Email:       "marco.silva@dispatchdesk.local",
			Phone:       "+351-912-000-101",
			Status:      constants.DelivererStatusAvailable,
			VehicleType: "van",
			IsActive:    true,
		},
		{
			Name:        "Ana Costa",
			Email:       "ana.costa@dispatchdesk.local",
			Phone:       "+351-912-000-102",
			Status:      constants.DelivererStatusAvailable,
			VehicleType: "motorcycle",
			IsActive:    true,
		},
		{
			Name:        "Rui Ferreira",
			Email:       "rui.ferreira@dispatchdesk.local",
			Phone:       "+351-912-000-103",
			Status:      constants.DelivererStatusOffline,
			VehicleType: "bicycle",
			IsActive:    true,
		},
	}
	delivererIDs := map[string]uint{}
	for _, deliverer := range deliverers {
		var existing models.Deliverer
		if err := models.DB.Where("email = ?", deliverer.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&deliverer).Error; err != nil {
				stdLog.Printf("Failed to create deliverer %s: %v", deliverer.Email, err)
				continue
			}
			stdLog.Printf("Created deliverer: %s", deliverer.Email)
			delivererIDs[deliverer.Email] = deliverer.ID
		} else {
			stdLog.Printf("Deliverer already exists: %s", deliverer.Email)
			delivererIDs[deliverer.Email] = existing.ID
		}
	}

	// 添加配送单
	now := time.Now()
	marcoID := delivererIDs["marco.silva@dispatchdesk.local"]
	deliveries := []models.Delivery{
		{
			OrderNo:             fmt.Sprintf("DD%s%06d", now.Format("20060102150405"), 100001),
			Customer:            "Padaria Central",
			DeliveryAddress:     "Rua Augusta 120, Lisboa",
			Status:              constants.DeliveryStatusPending,
			Priority:            constants.DeliveryPriorityHigh,
			Weight:              models.NewDecimal(decimal.NewFromFloat(12.5)),
			EstimatedDeliveryAt: now.AddDate(0, 0, 2),
		},
		{
			OrderNo:             fmt.Sprintf("DD%s%06d", now.Format("20060102150405"), 100002),
			Customer:            "Mercearia do Porto",
			DeliveryAddress:     "Avenida dos Aliados 45, Porto",
			Status:              constants.DeliveryStatusPending,
			Priority:            constants.DeliveryPriorityMedium,
			Weight:              models.NewDecimal(decimal.NewFromFloat(3.2)),
			EstimatedDeliveryAt: now.AddDate(0, 0, 3),
		},
		{
			OrderNo:             fmt.Sprintf("DD%s%06d", now.Format("20060102150405"), 100003),
			Customer:            "Farmacia Moderna",
			DeliveryAddress:     "Praca da Republica 8, Braga",
			Status:              constants.DeliveryStatusInTransit,
			Priority:            constants.DeliveryPriorityUrgent,
			Weight:              models.NewDecimal(decimal.NewFromFloat(0.8)),
			EstimatedDeliveryAt: now.AddDate(0, 0, 1),
			DelivererID:         &marcoID,
		},
	}
	for _, delivery := range deliveries {
		var existing models.Delivery
		if err := models.DB.Where("customer = ?", delivery.Customer).First(&existing).Error; err != nil {
			if err := models.DB.Create(&delivery).Error; err != nil {
				stdLog.Printf("Failed to create delivery %s: %v", delivery.OrderNo, err)
			} else {
				stdLog.Printf("Created delivery: %s", delivery.OrderNo)
			}
		} else {
			stdLog.Printf("Delivery already exists for customer: %s", delivery.Customer)
		}
	}

	// 指派过配送单的配送员标记为 busy
	if marcoID != 0 {
		if err := models.DB.Model(&models.Deliverer{}).Where("id = ?", marcoID).
			Update("status", constants.DelivererStatusBusy).Error; err != nil {
			stdLog.Printf("Failed to update deliverer status: %v", err)
		}
	}

	stdLog.Printf("Seed finished")
}
