package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormCallRecordRepository implements CallRecordRepository using GORM
type GormCallRecordRepository struct {
	db *gorm.DB
}

// NewGormCallRecordRepository creates a new GORM call record repository
func NewGormCallRecordRepository(db *gorm.DB) *GormCallRecordRepository {
	return &GormCallRecordRepository{db: db}
}

// Create creates a new call record
func (r *GormCallRecordRepository) Create(ctx context.Context, rec *domain.CallRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create call record: %w", err)
	}
	return nil
}

// GetByID retrieves a call record by ID
func (r *GormCallRecordRepository) GetByID(ctx context.Context, id string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}

	return &rec, nil
}

// GetByRoomName retrieves the newest call record bound to a room
func (r *GormCallRecordRepository) GetByRoomName(ctx context.Context, roomName string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := r.db.WithContext(ctx).
		Where("room_name = ?", roomName).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call record for room %s: %w", roomName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get call record by room: %w", err)
	}

	return &rec, nil
}

// GetByAgentID lists recent call records for an agent, newest first
func (r *GormCallRecordRepository) GetByAgentID(ctx context.Context, agentID string, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []*domain.CallRecord
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get call records by agent ID: %w", err)
	}

	return records, nil
}

// Update applies a partial update to a call record
func (r *GormCallRecordRepository) Update(ctx context.Context, id string, req *domain.UpdateCallRecordRequest) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find call record: %w", err)
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.RoomName != nil {
		updates["room_name"] = *req.RoomName
	}
	if req.EndedAt != nil {
		updates["ended_at"] = *req.EndedAt
	}
	if req.Duration != nil {
		updates["duration"] = *req.Duration
	}
	if req.Transcript != nil {
		updates["transcript"] = *req.Transcript
	}

	if len(updates) == 0 {
		return &rec, nil // No changes
	}

	if err := r.db.WithContext(ctx).Model(&rec).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update call record: %w", err)
	}

	return &rec, nil
}
