package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/adapters/indexing"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
)

type fakeDocRepo struct {
	docs   map[string]*domain.KnowledgeDocument
	nextID int
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]*domain.KnowledgeDocument)}
}

func (f *fakeDocRepo) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	f.nextID++
	doc.ID = fmt.Sprintf("doc-%d", f.nextID)
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocRepo) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocRepo) GetByAgentID(ctx context.Context, agentID string) ([]*domain.KnowledgeDocument, error) {
	var docs []*domain.KnowledgeDocument
	for _, d := range f.docs {
		if d.AgentID == agentID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (f *fakeDocRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

type fakeRepos struct {
	repository.RepositoryManager
	docs *fakeDocRepo
}

func (f *fakeRepos) KnowledgeDocument() repository.KnowledgeDocumentRepository {
	return f.docs
}

type fakeIndexer struct {
	uploadErr    error
	attachErr    error
	statusErr    error
	deleteErr    error
	uploaded     []string
	attached     []string
	deletedFiles []string
	chunkCount   int
	chunks       []domain.KnowledgeChunk
}

func (f *fakeIndexer) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, name)
	return fmt.Sprintf("file-%d", len(f.uploaded)), nil
}

func (f *fakeIndexer) AttachFile(ctx context.Context, pipelineID, fileID string) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, fileID)
	return nil
}

func (f *fakeIndexer) GetFileStatus(ctx context.Context, pipelineID, fileID string) (*indexing.FileStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &indexing.FileStatus{Status: "SUCCESS", ChunkCount: f.chunkCount}, nil
}

func (f *fakeIndexer) DeleteFile(ctx context.Context, pipelineID, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *fakeIndexer) Retrieve(ctx context.Context, pipelineID, query string, topK int) ([]domain.KnowledgeChunk, error) {
	return f.chunks, nil
}

type fakePipelines struct{}

func (f *fakePipelines) PipelineFor(ctx context.Context, agentID string) (string, error) {
	return "pipe-" + agentID, nil
}

type fakeBlobs struct {
	uploads []string
	deletes []string
}

func (f *fakeBlobs) Upload(ctx context.Context, objectPath string, contentType string, content io.Reader) (string, error) {
	f.uploads = append(f.uploads, objectPath)
	return "gs://bucket/" + objectPath, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, uri string) error {
	f.deletes = append(f.deletes, uri)
	return nil
}

func kbAgent() *domain.AgentConfig {
	return &domain.AgentConfig{ID: "agent-1", UserID: "user-1", KnowledgeBaseEnabled: true}
}

func TestUpload_Success(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	indexer := &fakeIndexer{chunkCount: 12}
	blobs := &fakeBlobs{}
	svc := NewService(repos, indexer, &fakePipelines{}, blobs)

	doc, err := svc.Upload(context.Background(), kbAgent(), "faq.pdf", "application/pdf", []byte("content"))
	require.NoError(t, err)

	assert.Equal(t, "faq.pdf", doc.Name)
	assert.Equal(t, "file-1", doc.VendorFileID)
	assert.Equal(t, "gs://bucket/knowledge/agent-1/faq.pdf", doc.StorageURI)
	assert.Equal(t, int64(7), doc.SizeBytes)
	assert.Equal(t, []string{"file-1"}, indexer.attached)

	// The vendor's ingestion chunk count lands on the stored row.
	assert.Equal(t, 12, doc.ChunkCount)
	assert.Equal(t, 12, repos.docs.docs[doc.ID].ChunkCount)
}

func TestUpload_StatusFailureKeepsDocument(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	indexer := &fakeIndexer{statusErr: errors.New("status timeout")}
	svc := NewService(repos, indexer, &fakePipelines{}, &fakeBlobs{})

	doc, err := svc.Upload(context.Background(), kbAgent(), "faq.pdf", "application/pdf", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Len(t, repos.docs.docs, 1)
}

func TestUpload_KnowledgeBaseDisabled(t *testing.T) {
	svc := NewService(&fakeRepos{docs: newFakeDocRepo()}, &fakeIndexer{}, &fakePipelines{}, &fakeBlobs{})

	agent := kbAgent()
	agent.KnowledgeBaseEnabled = false

	_, err := svc.Upload(context.Background(), agent, "faq.pdf", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrKnowledgeBaseDisabled)
}

func TestUpload_IndexerFailureCleansUpBlob(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	indexer := &fakeIndexer{uploadErr: errors.New("vendor 500")}
	blobs := &fakeBlobs{}
	svc := NewService(repos, indexer, &fakePipelines{}, blobs)

	_, err := svc.Upload(context.Background(), kbAgent(), "faq.pdf", "application/pdf", []byte("content"))
	require.Error(t, err)

	// The orphaned raw copy must be removed.
	assert.Equal(t, []string{"gs://bucket/knowledge/agent-1/faq.pdf"}, blobs.deletes)
	assert.Empty(t, repos.docs.docs)
}

func TestDelete_CascadesToVendorAndBlob(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	repos.docs.docs["doc-1"] = &domain.KnowledgeDocument{
		ID:           "doc-1",
		AgentID:      "agent-1",
		VendorFileID: "file-9",
		StorageURI:   "gs://bucket/knowledge/agent-1/faq.pdf",
	}
	indexer := &fakeIndexer{}
	blobs := &fakeBlobs{}
	svc := NewService(repos, indexer, &fakePipelines{}, blobs)

	err := svc.Delete(context.Background(), "agent-1", "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"file-9"}, indexer.deletedFiles)
	assert.Equal(t, []string{"gs://bucket/knowledge/agent-1/faq.pdf"}, blobs.deletes)
	assert.Empty(t, repos.docs.docs)
}

func TestDelete_VendorFailureStillRemovesLocalRow(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	repos.docs.docs["doc-1"] = &domain.KnowledgeDocument{
		ID:           "doc-1",
		AgentID:      "agent-1",
		VendorFileID: "file-9",
	}
	indexer := &fakeIndexer{deleteErr: errors.New("vendor 500")}
	svc := NewService(repos, indexer, &fakePipelines{}, &fakeBlobs{})

	// A vendor outage must not leave the document stuck in listings.
	err := svc.Delete(context.Background(), "agent-1", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, repos.docs.docs)
}

func TestDelete_WrongAgentLooksLikeMissing(t *testing.T) {
	repos := &fakeRepos{docs: newFakeDocRepo()}
	repos.docs.docs["doc-1"] = &domain.KnowledgeDocument{
		ID:      "doc-1",
		AgentID: "agent-1",
	}
	svc := NewService(repos, &fakeIndexer{}, &fakePipelines{}, &fakeBlobs{})

	err := svc.Delete(context.Background(), "someone-else", "doc-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestQuery(t *testing.T) {
	indexer := &fakeIndexer{chunks: []domain.KnowledgeChunk{
		{Text: "refunds take 5 days", Score: 0.92},
	}}
	svc := NewService(&fakeRepos{docs: newFakeDocRepo()}, indexer, &fakePipelines{}, &fakeBlobs{})

	chunks, err := svc.Query(context.Background(), kbAgent(), &domain.KnowledgeQueryRequest{Query: "refund policy"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "refunds take 5 days", chunks[0].Text)

	_, err = svc.Query(context.Background(), kbAgent(), &domain.KnowledgeQueryRequest{})
	assert.Error(t, err)
}
