package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/indexing"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// ErrKnowledgeBaseDisabled means the agent has knowledge lookups turned off.
var ErrKnowledgeBaseDisabled = errors.New("knowledge base disabled for agent")

// maxDocumentBytes caps uploads; the indexing vendor rejects larger files.
const maxDocumentBytes = 20 << 20

// Indexer is the managed indexing vendor surface used by the service.
type Indexer interface {
	UploadFile(ctx context.Context, name string, content []byte) (string, error)
	AttachFile(ctx context.Context, pipelineID, fileID string) error
	GetFileStatus(ctx context.Context, pipelineID, fileID string) (*indexing.FileStatus, error)
	DeleteFile(ctx context.Context, pipelineID, fileID string) error
	Retrieve(ctx context.Context, pipelineID, query string, topK int) ([]domain.KnowledgeChunk, error)
}

// PipelineResolver maps agents to vendor pipelines.
type PipelineResolver interface {
	PipelineFor(ctx context.Context, agentID string) (string, error)
}

// BlobStore keeps a raw copy of each uploaded document.
type BlobStore interface {
	Upload(ctx context.Context, objectPath string, contentType string, content io.Reader) (string, error)
	Delete(ctx context.Context, uri string) error
}

// Service manages an agent's knowledge base: document ingestion into the
// vendor pipeline with a raw copy in blob storage, retrieval queries, and
// deletion that removes the document vendor-side as well.
type Service struct {
	repos     repository.RepositoryManager
	indexer   Indexer
	pipelines PipelineResolver
	blobs     BlobStore
}

// NewService creates a new knowledge service
func NewService(repos repository.RepositoryManager, indexer Indexer, pipelines PipelineResolver, blobs BlobStore) *Service {
	return &Service{
		repos:     repos,
		indexer:   indexer,
		pipelines: pipelines,
		blobs:     blobs,
	}
}

// Upload ingests a document for an agent. The raw bytes are copied to blob
// storage first, then uploaded and attached to the agent's pipeline, and
// finally recorded in the database.
func (s *Service) Upload(ctx context.Context, agent *domain.AgentConfig, name, contentType string, content []byte) (*domain.KnowledgeDocument, error) {
	if !agent.KnowledgeBaseEnabled {
		return nil, ErrKnowledgeBaseDisabled
	}
	if len(content) == 0 {
		return nil, errors.New("document is empty")
	}
	if len(content) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d byte limit", maxDocumentBytes)
	}

	pipelineID, err := s.pipelines.PipelineFor(ctx, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pipeline: %w", err)
	}

	objectName := fmt.Sprintf("knowledge/%s/%s", agent.ID, name)
	storageURI, err := s.blobs.Upload(ctx, objectName, contentType, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to store raw document: %w", err)
	}

	fileID, err := s.indexer.UploadFile(ctx, name, content)
	if err != nil {
		s.cleanupBlob(ctx, storageURI)
		return nil, fmt.Errorf("failed to upload document to indexer: %w", err)
	}

	if err := s.indexer.AttachFile(ctx, pipelineID, fileID); err != nil {
		s.cleanupBlob(ctx, storageURI)
		return nil, fmt.Errorf("failed to attach document to pipeline: %w", err)
	}

	// The chunk count comes from the vendor's ingestion status. A slow or
	// failed status read only costs the count, not the upload.
	chunkCount := 0
	if status, err := s.indexer.GetFileStatus(ctx, pipelineID, fileID); err != nil {
		logger.L().Warn("failed to read ingestion status",
			zap.String("vendor_file_id", fileID),
			zap.Error(err))
	} else {
		chunkCount = status.ChunkCount
	}

	doc := &domain.KnowledgeDocument{
		AgentID:      agent.ID,
		Name:         name,
		ContentType:  contentType,
		SizeBytes:    int64(len(content)),
		ChunkCount:   chunkCount,
		VendorFileID: fileID,
		StorageURI:   storageURI,
	}
	if err := s.repos.KnowledgeDocument().Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	return doc, nil
}

// List returns the documents indexed for an agent.
func (s *Service) List(ctx context.Context, agentID string) ([]*domain.KnowledgeDocument, error) {
	return s.repos.KnowledgeDocument().GetByAgentID(ctx, agentID)
}

// Delete removes a document everywhere: the vendor pipeline, blob storage
// and the database. Vendor and blob failures after the vendor copy is gone
// are logged, not fatal, so a partially deleted document cannot stick around
// in listings.
func (s *Service) Delete(ctx context.Context, agentID, documentID string) error {
	doc, err := s.repos.KnowledgeDocument().GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.AgentID != agentID {
		return fmt.Errorf("knowledge document %s: %w", documentID, repository.ErrNotFound)
	}

	// Remote cleanup is attempted first but never blocks the local delete,
	// same posture as telephony teardown. A document that lingers in the
	// vendor pipeline is recoverable; one stuck in listings is not.
	pipelineID, err := s.pipelines.PipelineFor(ctx, agentID)
	if err != nil {
		logger.L().Warn("failed to resolve pipeline for document delete",
			zap.String("agent_id", agentID),
			zap.String("document_id", documentID),
			zap.Error(err))
	} else if err := s.indexer.DeleteFile(ctx, pipelineID, doc.VendorFileID); err != nil {
		logger.L().Warn("failed to delete document from indexer",
			zap.String("document_id", documentID),
			zap.String("vendor_file_id", doc.VendorFileID),
			zap.Error(err))
	}

	if doc.StorageURI != "" {
		if err := s.blobs.Delete(ctx, doc.StorageURI); err != nil {
			logger.L().Warn("failed to delete raw document copy",
				zap.String("document_id", documentID),
				zap.String("uri", doc.StorageURI),
				zap.Error(err))
		}
	}

	return s.repos.KnowledgeDocument().Delete(ctx, documentID)
}

// Query runs a similarity search against the agent's pipeline.
func (s *Service) Query(ctx context.Context, agent *domain.AgentConfig, req *domain.KnowledgeQueryRequest) ([]domain.KnowledgeChunk, error) {
	if !agent.KnowledgeBaseEnabled {
		return nil, ErrKnowledgeBaseDisabled
	}
	if req.Query == "" {
		return nil, errors.New("query is required")
	}

	pipelineID, err := s.pipelines.PipelineFor(ctx, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pipeline: %w", err)
	}

	return s.indexer.Retrieve(ctx, pipelineID, req.Query, req.TopK)
}

func (s *Service) cleanupBlob(ctx context.Context, uri string) {
	if err := s.blobs.Delete(ctx, uri); err != nil {
		logger.L().Warn("failed to clean up raw document copy", zap.String("uri", uri), zap.Error(err))
	}
}
