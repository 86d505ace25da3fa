package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormPlatformSettingRepository implements PlatformSettingRepository using GORM
type GormPlatformSettingRepository struct {
	db *gorm.DB
}

// NewGormPlatformSettingRepository creates a new GORM platform setting repository
func NewGormPlatformSettingRepository(db *gorm.DB) *GormPlatformSettingRepository {
	return &GormPlatformSettingRepository{db: db}
}

// Get retrieves a setting by key
func (r *GormPlatformSettingRepository) Get(ctx context.Context, key string) (*domain.PlatformSetting, error) {
	var setting domain.PlatformSetting
	if err := r.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("platform setting %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get platform setting: %w", err)
	}

	return &setting, nil
}

// GetAll retrieves all settings
func (r *GormPlatformSettingRepository) GetAll(ctx context.Context) ([]*domain.PlatformSetting, error) {
	var settings []*domain.PlatformSetting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to get platform settings: %w", err)
	}

	return settings, nil
}

// Set inserts or updates a setting
func (r *GormPlatformSettingRepository) Set(ctx context.Context, key, value string) (*domain.PlatformSetting, error) {
	setting := &domain.PlatformSetting{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return nil, fmt.Errorf("failed to set platform setting: %w", err)
	}

	return setting, nil
}
