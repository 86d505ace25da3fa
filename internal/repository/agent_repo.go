package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormAgentConfigRepository implements AgentConfigRepository using GORM
type GormAgentConfigRepository struct {
	db *gorm.DB
}

// NewGormAgentConfigRepository creates a new GORM agent config repository
func NewGormAgentConfigRepository(db *gorm.DB) *GormAgentConfigRepository {
	return &GormAgentConfigRepository{db: db}
}

// Create creates a new agent config
func (r *GormAgentConfigRepository) Create(ctx context.Context, agent *domain.AgentConfig) error {
	if err := r.db.WithContext(ctx).Create(agent).Error; err != nil {
		return fmt.Errorf("failed to create agent config: %w", err)
	}
	return nil
}

// GetByID retrieves an agent config by ID
func (r *GormAgentConfigRepository) GetByID(ctx context.Context, id string) (*domain.AgentConfig, error) {
	var agent domain.AgentConfig
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent config %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get agent config: %w", err)
	}

	return &agent, nil
}

// GetByShareCode retrieves a public agent config by its share code.
// Only records that are currently public resolve; a code left over from a
// since-unshared agent behaves like a miss.
func (r *GormAgentConfigRepository) GetByShareCode(ctx context.Context, code string) (*domain.AgentConfig, error) {
	var agent domain.AgentConfig
	err := r.db.WithContext(ctx).
		Where("share_code = ? AND is_public = ?", code, true).
		First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("share code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get agent config by share code: %w", err)
	}

	return &agent, nil
}

// GetByUserID retrieves all agent configs owned by a user
func (r *GormAgentConfigRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.AgentConfig, error) {
	var agents []*domain.AgentConfig
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get agent configs by user ID: %w", err)
	}

	return agents, nil
}

// Update persists the full agent config record. Callers mutate the struct
// returned by GetByID and save it back, so nil-able columns (share_code)
// are written even when cleared.
func (r *GormAgentConfigRepository) Update(ctx context.Context, agent *domain.AgentConfig) error {
	result := r.db.WithContext(ctx).
		Model(&domain.AgentConfig{}).
		Where("id = ?", agent.ID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(agent)
	if result.Error != nil {
		return fmt.Errorf("failed to update agent config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent config %s: %w", agent.ID, ErrNotFound)
	}

	return nil
}

// Delete removes an agent config
func (r *GormAgentConfigRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.AgentConfig{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete agent config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent config %s: %w", id, ErrNotFound)
	}

	return nil
}
