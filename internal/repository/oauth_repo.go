package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormOAuthConnectionRepository implements OAuthConnectionRepository using GORM
type GormOAuthConnectionRepository struct {
	db *gorm.DB
}

// NewGormOAuthConnectionRepository creates a new GORM OAuth connection repository
func NewGormOAuthConnectionRepository(db *gorm.DB) *GormOAuthConnectionRepository {
	return &GormOAuthConnectionRepository{db: db}
}

// Upsert inserts or replaces the connection for (user, provider). Reconnecting
// overwrites stale tokens in place.
func (r *GormOAuthConnectionRepository) Upsert(ctx context.Context, conn *domain.OAuthConnection) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "expiry", "scope", "connected_email", "updated_at",
		}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("failed to upsert oauth connection: %w", err)
	}

	return nil
}

// Get retrieves the connection for a user and provider
func (r *GormOAuthConnectionRepository) Get(ctx context.Context, userID, provider string) (*domain.OAuthConnection, error) {
	var conn domain.OAuthConnection
	err := r.db.WithContext(ctx).
		First(&conn, "user_id = ? AND provider = ?", userID, provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("oauth connection %s/%s: %w", userID, provider, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get oauth connection: %w", err)
	}

	return &conn, nil
}

// Delete removes the connection for a user and provider
func (r *GormOAuthConnectionRepository) Delete(ctx context.Context, userID, provider string) error {
	result := r.db.WithContext(ctx).
		Delete(&domain.OAuthConnection{}, "user_id = ? AND provider = ?", userID, provider)
	if result.Error != nil {
		return fmt.Errorf("failed to delete oauth connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("oauth connection %s/%s: %w", userID, provider, ErrNotFound)
	}

	return nil
}
