package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormTelephonyConfigRepository implements TelephonyConfigRepository using GORM
type GormTelephonyConfigRepository struct {
	db *gorm.DB
}

// NewGormTelephonyConfigRepository creates a new GORM telephony config repository
func NewGormTelephonyConfigRepository(db *gorm.DB) *GormTelephonyConfigRepository {
	return &GormTelephonyConfigRepository{db: db}
}

// Create creates a new telephony config
func (r *GormTelephonyConfigRepository) Create(ctx context.Context, cfg *domain.TelephonyConfig) error {
	if err := r.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create telephony config: %w", err)
	}
	return nil
}

// GetByAgentID retrieves the telephony config attached to an agent
func (r *GormTelephonyConfigRepository) GetByAgentID(ctx context.Context, agentID string) (*domain.TelephonyConfig, error) {
	var cfg domain.TelephonyConfig
	if err := r.db.WithContext(ctx).First(&cfg, "agent_id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("telephony config for agent %s: %w", agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get telephony config: %w", err)
	}

	return &cfg, nil
}

// GetByPhoneNumber retrieves a telephony config by its canonical phone number
func (r *GormTelephonyConfigRepository) GetByPhoneNumber(ctx context.Context, number string) (*domain.TelephonyConfig, error) {
	var cfg domain.TelephonyConfig
	if err := r.db.WithContext(ctx).First(&cfg, "phone_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("telephony config for number %s: %w", number, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get telephony config by number: %w", err)
	}

	return &cfg, nil
}

// GetAll retrieves all telephony configs
func (r *GormTelephonyConfigRepository) GetAll(ctx context.Context) ([]*domain.TelephonyConfig, error) {
	var configs []*domain.TelephonyConfig
	if err := r.db.WithContext(ctx).Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to get telephony configs: %w", err)
	}

	return configs, nil
}

// Delete removes a telephony config
func (r *GormTelephonyConfigRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.TelephonyConfig{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete telephony config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("telephony config %s: %w", id, ErrNotFound)
	}

	return nil
}
