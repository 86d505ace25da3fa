package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/voxlane/voice-platform/internal/domain"
)

// GormKnowledgeDocumentRepository implements KnowledgeDocumentRepository using GORM
type GormKnowledgeDocumentRepository struct {
	db *gorm.DB
}

// NewGormKnowledgeDocumentRepository creates a new GORM knowledge document repository
func NewGormKnowledgeDocumentRepository(db *gorm.DB) *GormKnowledgeDocumentRepository {
	return &GormKnowledgeDocumentRepository{db: db}
}

// Create creates a new knowledge document row
func (r *GormKnowledgeDocumentRepository) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create knowledge document: %w", err)
	}
	return nil
}

// GetByID retrieves a knowledge document by ID
func (r *GormKnowledgeDocumentRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	var doc domain.KnowledgeDocument
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("knowledge document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get knowledge document: %w", err)
	}

	return &doc, nil
}

// GetByAgentID lists the documents indexed for an agent
func (r *GormKnowledgeDocumentRepository) GetByAgentID(ctx context.Context, agentID string) ([]*domain.KnowledgeDocument, error) {
	var docs []*domain.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge documents by agent ID: %w", err)
	}

	return docs, nil
}

// Delete removes a knowledge document row
func (r *GormKnowledgeDocumentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.KnowledgeDocument{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete knowledge document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge document %s: %w", id, ErrNotFound)
	}

	return nil
}
