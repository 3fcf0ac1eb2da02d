package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

const (
	settingsCacheKeyAll    = "settings:all"
	settingsCacheKeyPublic = "settings:public"
	settingsCachePattern   = "settings:*"
)

type settingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	List(ctx context.Context, publicOnly bool) ([]models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// UpdateSettingRequest carries a setting write.
type UpdateSettingRequest struct {
	Key    string `json:"key" validate:"required"`
	Value  string `json:"value" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=string number boolean json"`
	Public bool   `json:"public"`
}

// SettingService manages typed admin settings with a Redis cache in front
// of the settings table. Writes invalidate the cache.
type SettingService struct {
	repo      settingRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingService constructs SettingService.
func NewSettingService(repo settingRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SettingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SettingService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns all settings (admin view), cache-aside.
func (s *SettingService) List(ctx context.Context) ([]models.Setting, error) {
	return s.list(ctx, settingsCacheKeyAll, false)
}

// ListPublic returns the public subset shown to unauthenticated clients.
func (s *SettingService) ListPublic(ctx context.Context) ([]models.Setting, error) {
	return s.list(ctx, settingsCacheKeyPublic, true)
}

func (s *SettingService) list(ctx context.Context, cacheKey string, publicOnly bool) ([]models.Setting, error) {
	var cached []models.Setting
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	settings, err := s.repo.List(ctx, publicOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	if err := s.cache.Set(ctx, cacheKey, settings, s.cacheTTL); err != nil {
		s.logger.Warn("settings cache fill failed", zap.Error(err))
	}
	return settings, nil
}

// Get returns a single setting by key.
func (s *SettingService) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	return setting, nil
}

// Update validates the typed value and writes it, invalidating the cache.
func (s *SettingService) Update(ctx context.Context, updatedBy string, req UpdateSettingRequest) (*models.Setting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting payload")
	}
	if err := validateSettingValue(models.SettingType(req.Type), req.Value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "setting value does not match declared type")
	}
	setting := &models.Setting{
		Key:       req.Key,
		Value:     req.Value,
		Type:      models.SettingType(req.Type),
		Public:    req.Public,
		UpdatedBy: &updatedBy,
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save setting")
	}
	if err := s.cache.Invalidate(ctx, settingsCachePattern); err != nil {
		s.logger.Warn("settings cache invalidation failed", zap.Error(err))
	}
	return setting, nil
}

func validateSettingValue(settingType models.SettingType, value string) error {
	switch settingType {
	case models.SettingTypeNumber:
		_, err := strconv.ParseFloat(value, 64)
		return err
	case models.SettingTypeBool:
		_, err := strconv.ParseBool(value)
		return err
	case models.SettingTypeJSON:
		return json.Unmarshal([]byte(value), new(interface{}))
	default:
		return nil
	}
}
