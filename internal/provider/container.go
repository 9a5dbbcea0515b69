package provider

import (
	"github.com/dispatchdesk/internal/cache"
	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/jobs"
	"github.com/dispatchdesk/internal/logger"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/queue"
	"github.com/dispatchdesk/internal/repository"
	"github.com/dispatchdesk/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo        repository.AdminRepository
	UserRepo         repository.UserRepository
	DeliveryRepo     repository.DeliveryRepository
	DelivererRepo    repository.DelivererRepository
	NotificationRepo repository.NotificationRepository
	SettingRepo      repository.SettingRepository
	DashboardRepo    repository.DashboardRepository

	// Services
	AuthService         *service.AuthService
	EmailService        *service.EmailService
	SettingService      *service.SettingService
	NotificationService *service.NotificationService
	AssignmentService   *service.AssignmentService
	DeliveryService     *service.DeliveryService
	DelivererService    *service.DelivererService

	// Jobs
	JobManager *jobs.Manager
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()
	c.initJobs()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.DeliveryRepo = repository.NewDeliveryRepository(db)
	c.DelivererRepo = repository.NewDelivererRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.DashboardRepo = repository.NewDashboardRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.SettingService = service.NewSettingService(c.SettingRepo, c.Config)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.UserRepo, c.EmailService, c.QueueClient)
	c.AssignmentService = service.NewAssignmentService(c.DeliveryRepo, c.DelivererRepo, c.NotificationService)
	c.DeliveryService = service.NewDeliveryService(c.DeliveryRepo, c.AssignmentService)
	c.DelivererService = service.NewDelivererService(c.DelivererRepo, c.DeliveryRepo)
}

func (c *Container) initJobs() {
	c.JobManager = jobs.NewManager(&c.Config.Jobs, jobs.ManagerDeps{
		DeliveryRepo:        c.DeliveryRepo,
		NotificationRepo:    c.NotificationRepo,
		DashboardRepo:       c.DashboardRepo,
		NotificationService: c.NotificationService,
		SettingService:      c.SettingService,
	})
}
