package service

import (
	"errors"

	"github.com/dispatchdesk/internal/config"
	"github.com/dispatchdesk/internal/constants"
	"github.com/dispatchdesk/internal/models"
	"github.com/dispatchdesk/internal/repository"
)

var ErrJobPolicyInvalid = errors.New("invalid job policy values")

// JobPolicy 后台任务运行参数，可在运行时通过设置覆盖配置文件
type JobPolicy struct {
	OverdueCriticalHours    int `json:"overdue_critical_hours"`
	NotificationBatchSize   int `json:"notification_batch_size"`
	NotificationMaxAttempts int `json:"notification_max_attempts"`
	CleanupRetentionDays    int `json:"cleanup_retention_days"`
}

// SettingService 系统设置服务
type SettingService struct {
	settingRepo repository.SettingRepository
	cfg         *config.Config
}

// NewSettingService 创建设置服务
func NewSettingService(settingRepo repository.SettingRepository, cfg *config.Config) *SettingService {
	return &SettingService{settingRepo: settingRepo, cfg: cfg}
}

// GetJobPolicy 读取任务策略，未覆盖的字段回退到配置文件默认值
func (s *SettingService) GetJobPolicy() (JobPolicy, error) {
	policy := s.defaultJobPolicy()

	setting, err := s.settingRepo.GetByKey(constants.SettingKeyJobPolicy)
	if err != nil {
		return policy, err
	}
	if setting == nil || setting.ValueJSON == nil {
		return policy, nil
	}

	if v, ok := numberField(setting.ValueJSON, "overdue_critical_hours"); ok && v > 0 {
		policy.OverdueCriticalHours = v
	}
	if v, ok := numberField(setting.ValueJSON, "notification_batch_size"); ok && v > 0 {
		policy.NotificationBatchSize = v
	}
	if v, ok := numberField(setting.ValueJSON, "notification_max_attempts"); ok && v > 0 {
		policy.NotificationMaxAttempts = v
	}
	if v, ok := numberField(setting.ValueJSON, "cleanup_retention_days"); ok && v > 0 {
		policy.CleanupRetentionDays = v
	}
	return policy, nil
}

// UpdateJobPolicy 保存任务策略覆盖
func (s *SettingService) UpdateJobPolicy(policy JobPolicy) error {
	if policy.OverdueCriticalHours <= 0 ||
		policy.NotificationBatchSize <= 0 ||
		policy.NotificationMaxAttempts <= 0 ||
		policy.CleanupRetentionDays <= 0 {
		return ErrJobPolicyInvalid
	}
	return s.settingRepo.Upsert(&models.Setting{
		Key: constants.SettingKeyJobPolicy,
		ValueJSON: models.JSON{
			"overdue_critical_hours":    policy.OverdueCriticalHours,
			"notification_batch_size":   policy.NotificationBatchSize,
			"notification_max_attempts": policy.NotificationMaxAttempts,
			"cleanup_retention_days":    policy.CleanupRetentionDays,
		},
	})
}

func (s *SettingService) defaultJobPolicy() JobPolicy {
	policy := JobPolicy{
		OverdueCriticalHours:    48,
		NotificationBatchSize:   50,
		NotificationMaxAttempts: 3,
		CleanupRetentionDays:    90,
	}
	if s.cfg == nil {
		return policy
	}
	if s.cfg.Jobs.Overdue.CriticalHours > 0 {
		policy.OverdueCriticalHours = s.cfg.Jobs.Overdue.CriticalHours
	}
	if s.cfg.Jobs.Notification.BatchSize > 0 {
		policy.NotificationBatchSize = s.cfg.Jobs.Notification.BatchSize
	}
	if s.cfg.Jobs.Notification.MaxAttempts > 0 {
		policy.NotificationMaxAttempts = s.cfg.Jobs.Notification.MaxAttempts
	}
	if s.cfg.Jobs.Cleanup.RetentionDays > 0 {
		policy.CleanupRetentionDays = s.cfg.Jobs.Cleanup.RetentionDays
	}
	return policy
}

// 设置 JSON 反序列化后数字是 float64，直接读 int 会拿不到
func numberField(payload models.JSON, key string) (int, bool) {
	raw, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
