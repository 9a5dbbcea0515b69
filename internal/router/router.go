package router

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dispatchdesk/internal/cache"
	"github.com/dispatchdesk/internal/config"
	adminhandlers "github.com/dispatchdesk/internal/http/handlers/admin"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/provider"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "dd"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.GET("/me", adminHandler.GetAdminProfile)
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				// 配送单管理
				authorized.POST("/deliveries", adminHandler.CreateDelivery)
				authorized.GET("/deliveries", adminHandler.GetDeliveries)
				authorized.GET("/deliveries/:id", adminHandler.GetDelivery)
				authorized.PUT("/deliveries/:id", adminHandler.UpdateDelivery)
				authorized.PATCH("/deliveries/:id/status", adminHandler.UpdateDeliveryStatus)
				authorized.PATCH("/deliveries/:id/assign", RequireAdminRole(), adminHandler.AssignDelivery)
				authorized.PATCH("/deliveries/:id/unassign", RequireAdminRole(), adminHandler.UnassignDelivery)

				// 配送员管理
				authorized.POST("/deliverers", adminHandler.CreateDeliverer)
				authorized.GET("/deliverers", adminHandler.GetDeliverers)
				authorized.GET("/deliverers/:id", adminHandler.GetDeliverer)
				authorized.PUT("/deliverers/:id", adminHandler.UpdateDeliverer)
				authorized.PATCH("/deliverers/:id/status", adminHandler.UpdateDelivererStatus)
				authorized.PATCH("/deliverers/:id/assign", RequireAdminRole(), adminHandler.AssignDeliverer)
				authorized.GET("/deliverers/:id/deliveries", adminHandler.GetDelivererDeliveries)

				// 后台任务
				authorized.GET("/jobs/dashboard", adminHandler.GetJobsDashboard)
				authorized.GET("/jobs", adminHandler.GetJobs)
				authorized.POST("/jobs/run/:jobName", adminHandler.RunJob)
				authorized.POST("/jobs/start", RequireAdminRole(), adminHandler.StartJobs)
				authorized.POST("/jobs/stop", RequireAdminRole(), adminHandler.StopJobs)
				authorized.GET("/jobs/policy", adminHandler.GetJobPolicy)
				authorized.PUT("/jobs/policy", RequireAdminRole(), adminHandler.UpdateJobPolicy)

				// 通知事件
				authorized.GET("/notifications", adminHandler.GetNotifications)
				authorized.POST("/notifications/dispatch", adminHandler.DispatchNotifications)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
