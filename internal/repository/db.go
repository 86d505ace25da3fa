package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voxlane/voice-platform/internal/domain"
)

// UserRepository defines the interface for user operations
type UserRepository interface {
	UpsertByEmail(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AgentConfigRepository defines the interface for agent config operations
type AgentConfigRepository interface {
	Create(ctx context.Context, agent *domain.AgentConfig) error
	GetByID(ctx context.Context, id string) (*domain.AgentConfig, error)
	GetByShareCode(ctx context.Context, code string) (*domain.AgentConfig, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.AgentConfig, error)
	Update(ctx context.Context, agent *domain.AgentConfig) error
	Delete(ctx context.Context, id string) error
}

// TelephonyConfigRepository defines the interface for telephony config operations
type TelephonyConfigRepository interface {
	Create(ctx context.Context, cfg *domain.TelephonyConfig) error
	GetByAgentID(ctx context.Context, agentID string) (*domain.TelephonyConfig, error)
	GetByPhoneNumber(ctx context.Context, number string) (*domain.TelephonyConfig, error)
	GetAll(ctx context.Context) ([]*domain.TelephonyConfig, error)
	Delete(ctx context.Context, id string) error
}

// OAuthConnectionRepository defines the interface for OAuth token storage
type OAuthConnectionRepository interface {
	Upsert(ctx context.Context, conn *domain.OAuthConnection) error
	Get(ctx context.Context, userID, provider string) (*domain.OAuthConnection, error)
	Delete(ctx context.Context, userID, provider string) error
}

// KnowledgeDocumentRepository defines the interface for knowledge document rows
type KnowledgeDocumentRepository interface {
	Create(ctx context.Context, doc *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
	GetByAgentID(ctx context.Context, agentID string) ([]*domain.KnowledgeDocument, error)
	Delete(ctx context.Context, id string) error
}

// PlatformSettingRepository defines the interface for global settings
type PlatformSettingRepository interface {
	Get(ctx context.Context, key string) (*domain.PlatformSetting, error)
	GetAll(ctx context.Context) ([]*domain.PlatformSetting, error)
	Set(ctx context.Context, key, value string) (*domain.PlatformSetting, error)
}

// CallRecordRepository defines the interface for call record operations
type CallRecordRepository interface {
	Create(ctx context.Context, rec *domain.CallRecord) error
	GetByID(ctx context.Context, id string) (*domain.CallRecord, error)
	GetByRoomName(ctx context.Context, roomName string) (*domain.CallRecord, error)
	GetByAgentID(ctx context.Context, agentID string, limit int) ([]*domain.CallRecord, error)
	Update(ctx context.Context, id string, req *domain.UpdateCallRecordRequest) (*domain.CallRecord, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	User() UserRepository
	AgentConfig() AgentConfigRepository
	TelephonyConfig() TelephonyConfigRepository
	OAuthConnection() OAuthConnectionRepository
	KnowledgeDocument() KnowledgeDocumentRepository
	PlatformSetting() PlatformSettingRepository
	CallRecord() CallRecordRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db            *gorm.DB
	userRepo      *GormUserRepository
	agentRepo     *GormAgentConfigRepository
	telephonyRepo *GormTelephonyConfigRepository
	oauthRepo     *GormOAuthConnectionRepository
	knowledgeRepo *GormKnowledgeDocumentRepository
	settingRepo   *GormPlatformSettingRepository
	callRepo      *GormCallRecordRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:            db,
		userRepo:      NewGormUserRepository(db),
		agentRepo:     NewGormAgentConfigRepository(db),
		telephonyRepo: NewGormTelephonyConfigRepository(db),
		oauthRepo:     NewGormOAuthConnectionRepository(db),
		knowledgeRepo: NewGormKnowledgeDocumentRepository(db),
		settingRepo:   NewGormPlatformSettingRepository(db),
		callRepo:      NewGormCallRecordRepository(db),
	}
}

// User returns the user repository
func (m *GormRepositoryManager) User() UserRepository {
	return m.userRepo
}

// AgentConfig returns the agent config repository
func (m *GormRepositoryManager) AgentConfig() AgentConfigRepository {
	return m.agentRepo
}

// TelephonyConfig returns the telephony config repository
func (m *GormRepositoryManager) TelephonyConfig() TelephonyConfigRepository {
	return m.telephonyRepo
}

// OAuthConnection returns the OAuth connection repository
func (m *GormRepositoryManager) OAuthConnection() OAuthConnectionRepository {
	return m.oauthRepo
}

// KnowledgeDocument returns the knowledge document repository
func (m *GormRepositoryManager) KnowledgeDocument() KnowledgeDocumentRepository {
	return m.knowledgeRepo
}

// PlatformSetting returns the platform setting repository
func (m *GormRepositoryManager) PlatformSetting() PlatformSettingRepository {
	return m.settingRepo
}

// CallRecord returns the call record repository
func (m *GormRepositoryManager) CallRecord() CallRecordRepository {
	return m.callRepo
}

// WithTx executes a function within a database transaction
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
